package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/iliyamo/jo-ticketing/internal/model"
	"github.com/iliyamo/jo-ticketing/internal/queue"
	"github.com/iliyamo/jo-ticketing/internal/repository"
)

// OfferStore is the catalog persistence used by CatalogService.
type OfferStore interface {
	ListActive(ctx context.Context) ([]model.Offer, error)
	ListAll(ctx context.Context) ([]model.Offer, error)
	GetByID(ctx context.Context, id uint64) (*model.Offer, error)
	Create(ctx context.Context, o *model.Offer) error
	Update(ctx context.Context, o *model.Offer) error
	Delete(ctx context.Context, id uint64) error
}

// OfferEvents receives catalog change notifications.
type OfferEvents interface {
	PublishOfferChanged(ctx context.Context, ev queue.OfferChangedEvent) error
}

// OfferInput carries the editable fields of an offer.  Empty Slug and Titre
// default from Name; an empty Category means solo.
type OfferInput struct {
	Name        string
	Slug        string
	Description string
	Price       decimal.Decimal
	Persons     uint16
	IsActive    bool
	SortOrder   uint32
	Category    string
	Titre       string
	BtnLabel    string
	Alt         string
	ImagePath   string
}

// CatalogService manages offers and announces every change on
// offers.changed so the front-end export can be rebuilt.
type CatalogService struct {
	store  OfferStore
	events OfferEvents
	logger *slog.Logger
}

func NewCatalogService(store OfferStore, events OfferEvents, logger *slog.Logger) *CatalogService {
	return &CatalogService{store: store, events: events, logger: logger}
}

// List returns active offers, or every offer when includeInactive is set.
func (s *CatalogService) List(ctx context.Context, includeInactive bool) ([]model.Offer, error) {
	if includeInactive {
		return s.store.ListAll(ctx)
	}
	return s.store.ListActive(ctx)
}

// Get returns one offer.  Inactive offers are hidden unless includeInactive.
func (s *CatalogService) Get(ctx context.Context, id uint64, includeInactive bool) (*model.Offer, error) {
	o, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !o.IsActive && !includeInactive {
		return nil, ErrNotFound
	}
	return o, nil
}

func (s *CatalogService) Create(ctx context.Context, in OfferInput) (*model.Offer, error) {
	o := &model.Offer{}
	if err := apply(o, in); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, mapOfferErr(err)
	}
	s.changed(ctx, o.ID, "created")
	return o, nil
}

func (s *CatalogService) Update(ctx context.Context, id uint64, in OfferInput) (*model.Offer, error) {
	o := &model.Offer{ID: id}
	if err := apply(o, in); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, o); err != nil {
		return nil, mapOfferErr(err)
	}
	s.changed(ctx, o.ID, "updated")
	return o, nil
}

func (s *CatalogService) Delete(ctx context.Context, id uint64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return mapOfferErr(err)
	}
	s.changed(ctx, id, "deleted")
	return nil
}

func (s *CatalogService) changed(ctx context.Context, id uint64, reason string) {
	s.logger.Info("offer changed", "offer_id", id, "reason", reason)
	if s.events == nil {
		return
	}
	ev := queue.OfferChangedEvent{OfferID: id, Reason: reason, ChangedAt: time.Now().UTC().Format(time.RFC3339)}
	if err := s.events.PublishOfferChanged(ctx, ev); err != nil {
		s.logger.Warn("publish offer changed", "offer_id", id, "err", err)
	}
}

func mapOfferErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrOfferExists
	}
	return err
}

func apply(o *model.Offer, in OfferInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidOffer)
	}
	if in.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidOffer)
	}
	cat := strings.ToLower(strings.TrimSpace(in.Category))
	switch cat {
	case "":
		cat = model.CategorySolo
	case model.CategorySolo, model.CategoryDuo, model.CategoryFamille:
	default:
		return fmt.Errorf("%w: unknown category %q", ErrInvalidOffer, in.Category)
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return fmt.Errorf("%w: name does not produce a usable slug", ErrInvalidOffer)
	}
	titre := strings.TrimSpace(in.Titre)
	if titre == "" {
		titre = name
	}
	persons := in.Persons
	if persons == 0 {
		persons = 1
	}

	o.Name = name
	o.Slug = slug
	o.Description = strings.TrimSpace(in.Description)
	o.Price = in.Price.Round(2)
	o.Persons = persons
	o.IsActive = in.IsActive
	o.SortOrder = in.SortOrder
	o.Category = cat
	o.Titre = titre
	o.BtnLabel = strings.TrimSpace(in.BtnLabel)
	o.Alt = strings.TrimSpace(in.Alt)
	o.ImagePath = strings.TrimSpace(in.ImagePath)
	return nil
}

// Slugify folds accents and keeps [a-z0-9] separated by single dashes:
// "Offre Été Famille" -> "offre-ete-famille".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
