package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jo-ticketing/internal/config"
	"github.com/iliyamo/jo-ticketing/internal/middleware"
	"github.com/iliyamo/jo-ticketing/internal/model"
	"github.com/iliyamo/jo-ticketing/internal/repository"
	"github.com/iliyamo/jo-ticketing/internal/service"
	"github.com/iliyamo/jo-ticketing/internal/utils"
)

const jwtSecret = "handler-test-secret"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// store is a single in-memory backend for reservations and tickets.
type store struct {
	mu           sync.Mutex
	reservations []*model.Reservation
	tickets      []*model.Ticket
}

func (s *store) Create(_ context.Context, r *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uint64(len(s.reservations) + 1)
	r.CreatedAt = time.Now().UTC()
	cp := *r
	s.reservations = append(s.reservations, &cp)
	return nil
}

func (s *store) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 || id > uint64(len(s.reservations)) {
		return nil, repository.ErrNotFound
	}
	cp := *s.reservations[id-1]
	return &cp, nil
}

func (s *store) GetForUser(ctx context.Context, id, uid uint64) (*model.Reservation, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil || r.UserID != uid {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

// ticketStore wraps store to expose the ticket methods under their names.
type ticketStore struct{ s *store }

func (t ticketStore) Create(_ context.Context, tk *model.Ticket) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, x := range t.s.tickets {
		if x.ReservationID == tk.ReservationID {
			return repository.ErrDuplicate
		}
	}
	tk.ID = uint64(len(t.s.tickets) + 1)
	tk.CreatedAt = time.Now().UTC()
	cp := *tk
	t.s.tickets = append(t.s.tickets, &cp)
	return nil
}

func (t ticketStore) find(match func(*model.Ticket) bool) (*model.Ticket, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, x := range t.s.tickets {
		if match(x) {
			cp := *x
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t ticketStore) GetByReservation(_ context.Context, rid uint64) (*model.Ticket, error) {
	return t.find(func(x *model.Ticket) bool { return x.ReservationID == rid })
}

func (t ticketStore) GetByID(_ context.Context, id uint64) (*model.Ticket, error) {
	return t.find(func(x *model.Ticket) bool { return x.ID == id })
}

func (t ticketStore) GetForUser(_ context.Context, id, uid uint64) (*model.Ticket, error) {
	return t.find(func(x *model.Ticket) bool { return x.ID == id && x.UserID == uid })
}

func (t ticketStore) SetQRImage(_ context.Context, id uint64, path string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, x := range t.s.tickets {
		if x.ID == id {
			x.QRImage = path
			return nil
		}
	}
	return repository.ErrNotFound
}

func (t ticketStore) ListByUser(_ context.Context, uid uint64) ([]model.Ticket, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := []model.Ticket{}
	for i := len(t.s.tickets) - 1; i >= 0; i-- {
		if t.s.tickets[i].UserID == uid {
			out = append(out, *t.s.tickets[i])
		}
	}
	return out, nil
}

type keys map[uint64]string

func (k keys) AccountKey(_ context.Context, uid uint64) (string, error) { return k[uid], nil }

type nopArtifacts struct{}

func (nopArtifacts) Save(rel string, _ []byte) (string, error) { return rel, nil }

func newTestServer(t *testing.T, debug bool) *echo.Echo {
	t.Helper()
	s := &store{}
	ts := ticketStore{s: s}
	signer := utils.NewTicketSigner("ticket-secret", "ticket")
	k := keys{7: strings.Repeat("a", 64), 8: strings.Repeat("b", 64)}

	th := &TicketHandler{
		Issuer:   service.NewTicketIssuer(s, ts, k, signer, nopArtifacts{}, nil, discard),
		Verifier: service.NewTicketVerifier(ts, s, signer, discard),
		Reader:   service.NewTicketReader(ts),
		URLs:     URLs{BaseURL: "https://api.jo.example", MediaURL: "/media/"},
		Debug:    debug,
		Logger:   discard,
	}
	rh := NewReservationHandler(service.NewReservationService(s, discard), discard)

	e := echo.New()
	e.Validator = NewValidator()
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.POST("/reservations", rh.Create)
	g.GET("/reservations/:id", rh.Get)
	g.POST("/checkout", th.Checkout)
	g.GET("/tickets/:id", th.Get)
	g.GET("/tickets/:id/opaque", th.Opaque)
	g.GET("/my-tickets", th.MyTickets)
	e.POST("/v1/verify", th.Verify)
	return e
}

func bearer(t *testing.T, uid uint64) string {
	t.Helper()
	tok, err := utils.NewAccessToken(jwtSecret, uid, model.RoleCustomer, 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	return tok.Token
}

func do(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

const cartBody = `{
	"client": {"nom": "Dupont", "prenom": "Marie", "email": "marie@example.com"},
	"panier": [{"id": "offer_1", "titre": "Solo", "prix": "10.00", "qty": 1}],
	"total": "10.00",
	"places": 1
}`

func TestPurchaseFlow(t *testing.T) {
	e := newTestServer(t, false)
	alice := bearer(t, 7)

	rec := do(e, http.MethodPost, "/v1/reservations", alice, cartBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create reservation: %d %s", rec.Code, rec.Body)
	}
	resID := decode(t, rec)["reservation_id"].(float64)
	if resID != 1 {
		t.Fatalf("reservation_id = %v", resID)
	}

	rec = do(e, http.MethodPost, "/v1/checkout", alice, `{"reservation_id": 1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: %d %s", rec.Code, rec.Body)
	}
	first := decode(t, rec)
	if first["status"] != "paid" {
		t.Fatalf("status = %v", first["status"])
	}
	ticket := first["ticket"].(map[string]any)
	if ticket["qr_url"] != "https://api.jo.example/media/tickets/ticket_1.png" {
		t.Fatalf("qr_url = %v", ticket["qr_url"])
	}
	summary := ticket["summary"].(map[string]any)
	if summary["client"] != "Marie Dupont" || summary["total"] != "10.00" || summary["places"].(float64) != 1 {
		t.Fatalf("summary = %v", summary)
	}
	if strings.Contains(rec.Body.String(), strings.Repeat("a", 64)) || strings.Contains(rec.Body.String(), "ticket_key") {
		t.Fatal("checkout response leaks key material")
	}

	// string id form, replay
	rec = do(e, http.MethodPost, "/v1/checkout", alice, `{"reservation_id": "1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("replay: %d %s", rec.Code, rec.Body)
	}
	replay := decode(t, rec)
	if replay["status"] != "already_paid" || replay["ticket"].(map[string]any)["id"] != ticket["id"] {
		t.Fatalf("replay body = %v", replay)
	}

	rec = do(e, http.MethodGet, "/v1/my-tickets", alice, "")
	list := decode(t, rec)
	if rec.Code != http.StatusOK || list["count"].(float64) != 1 {
		t.Fatalf("my-tickets: %d %v", rec.Code, list)
	}
	item := list["results"].([]any)[0].(map[string]any)
	if item["qr_url"] != ticket["qr_url"] || item["created"] == nil {
		t.Fatalf("my-tickets item = %v", item)
	}

	// other users see nothing
	bob := bearer(t, 8)
	for _, path := range []string{"/v1/reservations/1", "/v1/tickets/1"} {
		if rec := do(e, http.MethodGet, path, bob, ""); rec.Code != http.StatusNotFound {
			t.Errorf("bob GET %s: %d, want 404", path, rec.Code)
		}
	}
	if rec := do(e, http.MethodPost, "/v1/checkout", bob, `{"reservation_id": 1}`); rec.Code != http.StatusNotFound {
		t.Errorf("bob checkout: %d, want 404", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/v1/my-tickets", bob, ""); decode(t, rec)["count"].(float64) != 0 {
		t.Errorf("bob my-tickets not empty: %s", rec.Body)
	}
}

func TestReservationValidation(t *testing.T) {
	e := newTestServer(t, false)
	alice := bearer(t, 7)
	cases := map[string]struct {
		body string
		code string
	}{
		"total mismatch": {strings.Replace(cartBody, `"total": "10.00"`, `"total": "12.00"`, 1), "inconsistent_cart"},
		"places mismatch": {strings.Replace(cartBody, `"places": 1`, `"places": 3`, 1), "inconsistent_cart"},
		"empty cart":      {`{"client":{"nom":"a","prenom":"b","email":"a@b.c"},"panier":[],"total":"0","places":1}`, "validation_failed"},
		"bad email":       {strings.Replace(cartBody, "marie@example.com", "nope", 1), "validation_failed"},
		"zero qty":        {strings.Replace(cartBody, `"qty": 1`, `"qty": 0`, 1), "validation_failed"},
		"not json":        {`{`, "invalid_body"},
	}
	for name, tc := range cases {
		rec := do(e, http.MethodPost, "/v1/reservations", alice, tc.body)
		if rec.Code != http.StatusBadRequest || decode(t, rec)["code"] != tc.code {
			t.Errorf("%s: %d %s, want 400 %s", name, rec.Code, rec.Body, tc.code)
		}
	}
	numericID := strings.Replace(cartBody, `"id": "offer_1"`, `"id": 42`, 1)
	if rec := do(e, http.MethodPost, "/v1/reservations", alice, numericID); rec.Code != http.StatusCreated {
		t.Errorf("numeric offer id: %d %s", rec.Code, rec.Body)
	}
	if rec := do(e, http.MethodPost, "/v1/reservations", "", cartBody); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: %d", rec.Code)
	}
}

func TestCheckoutMissingReservationID(t *testing.T) {
	e := newTestServer(t, false)
	for _, body := range []string{`{}`, `{"reservation_id": null}`, `{"reservation_id": ""}`} {
		rec := do(e, http.MethodPost, "/v1/checkout", bearer(t, 7), body)
		if rec.Code != http.StatusBadRequest || decode(t, rec)["code"] != "missing_reservation_id" {
			t.Errorf("%s: %d %s", body, rec.Code, rec.Body)
		}
	}
}

func TestCheckoutWithoutAccountKey(t *testing.T) {
	e := newTestServer(t, false)
	carol := bearer(t, 9) // no key provisioned
	if rec := do(e, http.MethodPost, "/v1/reservations", carol, cartBody); rec.Code != http.StatusCreated {
		t.Fatalf("reserve: %d", rec.Code)
	}
	rec := do(e, http.MethodPost, "/v1/checkout", carol, `{"reservation_id": 1}`)
	if rec.Code != http.StatusBadRequest || decode(t, rec)["code"] != "missing_account_key" {
		t.Fatalf("checkout: %d %s", rec.Code, rec.Body)
	}
}

func TestOpaqueAndVerify(t *testing.T) {
	e := newTestServer(t, true)
	alice := bearer(t, 7)
	do(e, http.MethodPost, "/v1/reservations", alice, cartBody)
	do(e, http.MethodPost, "/v1/checkout", alice, `{"reservation_id": 1}`)

	rec := do(e, http.MethodGet, "/v1/tickets/1/opaque", alice, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("opaque: %d %s", rec.Code, rec.Body)
	}
	op := decode(t, rec)
	token := op["token"].(string)
	if op["uri"] != utils.TicketURIPrefix+token {
		t.Fatalf("uri = %v", op["uri"])
	}
	if rec := do(e, http.MethodGet, "/v1/tickets/1/opaque", bearer(t, 8), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign opaque: %d", rec.Code)
	}

	body, _ := json.Marshal(map[string]string{"qr": utils.TicketURI(token)})
	rec = do(e, http.MethodPost, "/v1/verify", "", string(body))
	v := decode(t, rec)
	if rec.Code != http.StatusOK || v["valid"] != true {
		t.Fatalf("verify qr: %d %v", rec.Code, v)
	}
	meta := v["meta"].(map[string]any)
	if meta["ticket_id"].(float64) != 1 || meta["reservation_id"].(float64) != 1 || meta["email"] != "marie@example.com" {
		t.Fatalf("meta = %v", meta)
	}

	cases := []struct {
		body   string
		status int
		reason string
	}{
		{`{}`, http.StatusBadRequest, "missing_token"},
		{`not json`, http.StatusBadRequest, "missing_token"},
		{`{"token": 12}`, http.StatusOK, "missing_token"},
		{`{"token": ""}`, http.StatusOK, "missing_token"},
		{`{"qr": "jo://ticket/"}`, http.StatusOK, "missing_token"},
		{`{"token": "abc.def.ghi"}`, http.StatusOK, "bad_signature"},
		// token takes precedence over qr
		{`{"token": "forged", "qr": "` + utils.TicketURI(token) + `"}`, http.StatusOK, "bad_signature"},
	}
	for _, tc := range cases {
		rec := do(e, http.MethodPost, "/v1/verify", "", tc.body)
		got := decode(t, rec)
		if rec.Code != tc.status || got["valid"] != false || got["reason"] != tc.reason {
			t.Errorf("verify %s: %d %v, want %d %s", tc.body, rec.Code, got, tc.status, tc.reason)
		}
		if _, ok := got["meta"]; ok {
			t.Errorf("verify %s disclosed meta", tc.body)
		}
	}
}

func TestOpaqueDisabledOutsideDebug(t *testing.T) {
	e := newTestServer(t, false)
	alice := bearer(t, 7)
	do(e, http.MethodPost, "/v1/reservations", alice, cartBody)
	do(e, http.MethodPost, "/v1/checkout", alice, `{"reservation_id": 1}`)
	if rec := do(e, http.MethodGet, "/v1/tickets/1/opaque", alice, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("opaque without debug: %d", rec.Code)
	}
}

// fakeUsers and fakeTokens back the auth handler tests.
type fakeUsers struct {
	roles map[string]string
}

func (f *fakeUsers) Create(_ context.Context, email, _, role string, _ int) (uint64, error) {
	if f.roles == nil {
		f.roles = map[string]string{}
	}
	if _, ok := f.roles[email]; ok {
		return 0, repository.ErrEmailExists
	}
	f.roles[email] = role
	return uint64(len(f.roles)), nil
}
func (f *fakeUsers) GetByEmail(context.Context, string) (model.User, error) { return model.User{}, nil }
func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	return model.User{ID: id, Role: model.RoleCustomer, IsActive: true}, nil
}

type fakeTokens struct{ stored int }

func (f *fakeTokens) StoreRefresh(context.Context, uint64, string, time.Time) error {
	f.stored++
	return nil
}
func (f *fakeTokens) ValidateRefresh(context.Context, string) (uint64, error) {
	return 0, repository.ErrNotFound
}
func (f *fakeTokens) Rotate(context.Context, uint64, string, string, time.Time) error { return nil }
func (f *fakeTokens) RevokeByHash(context.Context, string) error                     { return nil }
func (f *fakeTokens) RevokeAllForUser(context.Context, uint64) error                 { return nil }

func TestRegister(t *testing.T) {
	users, toks := &fakeUsers{}, &fakeTokens{}
	cfg := config.Config{JWTSecret: jwtSecret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4,
		AdminEmails: map[string]bool{"boss@jo.example": true}}
	h := NewAuthHandler(cfg, users, toks, discard)
	e := echo.New()
	e.Validator = NewValidator()
	e.POST("/register", h.Register)
	e.POST("/refresh", h.Refresh)

	cases := []struct {
		body   string
		status int
		code   string
	}{
		{`{"email":"not-an-email","password":"Sup3r$ecretPass"}`, http.StatusBadRequest, "validation_failed"},
		{`{"email":"a@jo.example","password":"short"}`, http.StatusBadRequest, "weak_password"},
		{`{"email":"a@jo.example","password":"password"}`, http.StatusBadRequest, "weak_password"},
		{`{"email":"a@jo.example","password":"Sup3r$ecretPass"}`, http.StatusCreated, ""},
	}
	for _, tc := range cases {
		rec := do(e, http.MethodPost, "/register", "", tc.body)
		if rec.Code != tc.status {
			t.Fatalf("%s: %d %s", tc.body, rec.Code, rec.Body)
		}
		if tc.code != "" && decode(t, rec)["code"] != tc.code {
			t.Fatalf("%s: body %s, want code %s", tc.body, rec.Body, tc.code)
		}
	}
	rec := do(e, http.MethodPost, "/register", "", `{"email":"Boss@JO.example","password":"Sup3r$ecretPass"}`)
	if rec.Code != http.StatusCreated || decode(t, rec)["user"].(map[string]any)["role"] != model.RoleAdmin {
		t.Fatalf("admin register: %d %s", rec.Code, rec.Body)
	}
	if toks.stored != 2 {
		t.Fatalf("stored %d refresh tokens, want 2", toks.stored)
	}
	if rec := do(e, http.MethodPost, "/register", "", `{"email":"a@jo.example","password":"Sup3r$ecretPass"}`); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: %d", rec.Code)
	}

	if rec := do(e, http.MethodPost, "/refresh", "", `{"refresh_token":"nope"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown refresh: %d", rec.Code)
	}
}
