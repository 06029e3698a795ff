package service

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/iliyamo/jo-ticketing/internal/media"
	"github.com/iliyamo/jo-ticketing/internal/model"
	"github.com/iliyamo/jo-ticketing/internal/repository"
)

// memOffers is an in-memory OfferStore with unique names and slugs.
type memOffers struct {
	nextID uint64
	rows   map[uint64]model.Offer
}

func (m *memOffers) list(active bool) []model.Offer {
	out := []model.Offer{}
	for _, o := range m.rows {
		if !active || o.IsActive {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memOffers) ListActive(context.Context) ([]model.Offer, error) { return m.list(true), nil }
func (m *memOffers) ListAll(context.Context) ([]model.Offer, error)    { return m.list(false), nil }

func (m *memOffers) GetByID(_ context.Context, id uint64) (*model.Offer, error) {
	o, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (m *memOffers) clash(o *model.Offer) bool {
	for id, r := range m.rows {
		if id != o.ID && (r.Name == o.Name || r.Slug == o.Slug) {
			return true
		}
	}
	return false
}

func (m *memOffers) Create(_ context.Context, o *model.Offer) error {
	if m.rows == nil {
		m.rows = map[uint64]model.Offer{}
	}
	if m.clash(o) {
		return repository.ErrDuplicate
	}
	m.nextID++
	o.ID = m.nextID
	m.rows[o.ID] = *o
	return nil
}

func (m *memOffers) Update(_ context.Context, o *model.Offer) error {
	if _, ok := m.rows[o.ID]; !ok {
		return repository.ErrNotFound
	}
	if m.clash(o) {
		return repository.ErrDuplicate
	}
	m.rows[o.ID] = *o
	return nil
}

func (m *memOffers) Delete(_ context.Context, id uint64) error {
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Offre Été Famille":  "offre-ete-famille",
		"  Duo -- Premium! ": "duo-premium",
		"Pass 2024":          "pass-2024",
		"!!!":                "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCatalogLifecyclePublishesChanges(t *testing.T) {
	store := &memOffers{}
	events := &recordingEvents{}
	svc := NewCatalogService(store, events, discardLogger())
	ctx := context.Background()

	o, err := svc.Create(ctx, OfferInput{Name: "Offre Été", Price: dec("25.5"), IsActive: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if o.Slug != "offre-ete" || o.Titre != "Offre Été" || o.Category != model.CategorySolo || o.Persons != 1 {
		t.Fatalf("defaults not applied: %+v", o)
	}
	if _, err := svc.Create(ctx, OfferInput{Name: "Offre Été"}); !errors.Is(err, ErrOfferExists) {
		t.Fatalf("duplicate: err = %v", err)
	}

	if _, err := svc.Update(ctx, o.ID, OfferInput{Name: "Offre Été", Category: "duo", IsActive: false}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := svc.Get(ctx, o.ID, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("inactive offer visible publicly: %v", err)
	}
	if _, err := svc.Get(ctx, o.ID, true); err != nil {
		t.Fatalf("admin Get: %v", err)
	}
	if err := svc.Delete(ctx, o.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, o.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete: err = %v", err)
	}

	var reasons []string
	for _, ev := range events.offers {
		reasons = append(reasons, ev.Reason)
	}
	if len(reasons) != 3 || reasons[0] != "created" || reasons[1] != "updated" || reasons[2] != "deleted" {
		t.Fatalf("published reasons = %v", reasons)
	}
}

func TestCatalogRejectsBadInput(t *testing.T) {
	svc := NewCatalogService(&memOffers{}, nil, discardLogger())
	for _, in := range []OfferInput{
		{Name: " "},
		{Name: "x", Price: dec("-1")},
		{Name: "x", Category: "vip"},
		{Name: "???"},
	} {
		if _, err := svc.Create(context.Background(), in); !errors.Is(err, ErrInvalidOffer) {
			t.Errorf("Create(%+v): err = %v, want ErrInvalidOffer", in, err)
		}
	}
}

func TestTicketReaderScopesToOwner(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	a := f.reserve(t, 7)
	b := f.reserve(t, 7)
	other := f.reserve(t, 8)
	for _, r := range []struct{ res, user uint64 }{{a.ID, 7}, {b.ID, 7}, {other.ID, 8}} {
		if _, err := f.issuer.Checkout(ctx, r.res, r.user); err != nil {
			t.Fatalf("Checkout: %v", err)
		}
	}
	reader := NewTicketReader(f.tickets)

	mine, err := reader.ListMine(ctx, 7)
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(mine) != 2 || mine[0].ID < mine[1].ID {
		t.Fatalf("ListMine = %+v, want 2 tickets newest first", mine)
	}
	none, err := reader.ListMine(ctx, 99)
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("empty list = %#v, %v", none, err)
	}

	if _, err := reader.GetMine(ctx, mine[0].ID, 8); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign GetMine: err = %v", err)
	}

	resolve := media.Resolver{BaseURL: "http://localhost:8000", MediaURL: "/media/"}.Resolve
	items := ViewList(mine, resolve)
	for _, it := range items {
		if it.QRURL == "" || resolve(it.QRURL) != it.QRURL {
			t.Fatalf("qr_url %q is not a stable absolute URL", it.QRURL)
		}
	}
}
