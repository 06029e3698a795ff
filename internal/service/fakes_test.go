package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/jo-ticketing/internal/model"
	"github.com/iliyamo/jo-ticketing/internal/queue"
	"github.com/iliyamo/jo-ticketing/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memReservations is an in-memory reservation store.
type memReservations struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]*model.Reservation
}

func newMemReservations() *memReservations {
	return &memReservations{rows: map[uint64]*model.Reservation{}}
}

func (m *memReservations) Create(_ context.Context, res *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	res.ID = m.nextID
	res.CreatedAt = time.Now().UTC()
	cp := *res
	m.rows[res.ID] = &cp
	return nil
}

func (m *memReservations) GetForUser(ctx context.Context, id, userID uint64) (*model.Reservation, error) {
	res, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return res, nil
}

func (m *memReservations) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

// memTickets enforces one ticket per reservation like the unique index.
// blindLookups makes the first n GetByReservation calls miss, which lets a
// test force two checkouts past the existence check.
type memTickets struct {
	mu           sync.Mutex
	nextID       uint64
	rows         map[uint64]*model.Ticket
	blindLookups int
	setQRErr     error
}

func newMemTickets() *memTickets {
	return &memTickets{rows: map[uint64]*model.Ticket{}}
}

func (m *memTickets) Create(_ context.Context, t *model.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ReservationID == t.ReservationID || r.TicketKey == t.TicketKey {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = time.Now().UTC()
	cp := *t
	m.rows[t.ID] = &cp
	return nil
}

func (m *memTickets) GetByReservation(_ context.Context, reservationID uint64) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blindLookups > 0 {
		m.blindLookups--
		return nil, repository.ErrNotFound
	}
	for _, r := range m.rows {
		if r.ReservationID == reservationID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memTickets) SetQRImage(_ context.Context, id uint64, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setQRErr != nil {
		return m.setQRErr
	}
	r, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.QRImage = path
	return nil
}

func (m *memTickets) GetByID(_ context.Context, id uint64) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memTickets) GetForUser(ctx context.Context, id, userID uint64) (*model.Ticket, error) {
	t, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

func (m *memTickets) ListByUser(_ context.Context, userID uint64) ([]model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Ticket{}
	for id := m.nextID; id > 0; id-- {
		if r, ok := m.rows[id]; ok && r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memTickets) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type keyFunc func(ctx context.Context, userID uint64) (string, error)

func (f keyFunc) AccountKey(ctx context.Context, userID uint64) (string, error) { return f(ctx, userID) }

func staticKey(k string) keyFunc {
	return func(context.Context, uint64) (string, error) { return k, nil }
}

// memArtifacts records saved files.
type memArtifacts struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (m *memArtifacts) Save(rel string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[rel] = data
	return rel, nil
}

// recordingEvents captures published events.
type recordingEvents struct {
	mu     sync.Mutex
	issued []queue.TicketIssuedEvent
	offers []queue.OfferChangedEvent
	err    error
}

func (r *recordingEvents) PublishTicketIssued(_ context.Context, ev queue.TicketIssuedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued = append(r.issued, ev)
	return r.err
}

func (r *recordingEvents) PublishOfferChanged(_ context.Context, ev queue.OfferChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers = append(r.offers, ev)
	return r.err
}

var errBoom = errors.New("boom")
