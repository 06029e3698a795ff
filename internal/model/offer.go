package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Offer categories used by the front-end export.
const (
    CategorySolo    = "solo"
    CategoryDuo     = "duo"
    CategoryFamille = "famille"
)

// Offer is a catalog bundle curated by admins.  Reservations copy the
// fields they need into ReservationItem rather than referencing it.
type Offer struct {
    ID          uint64          `json:"id"`
    Name        string          `json:"name"`
    Slug        string          `json:"slug"`
    Description string          `json:"description"`
    Price       decimal.Decimal `json:"price"`
    Persons     uint16          `json:"persons"`
    IsActive    bool            `json:"is_active"`
    SortOrder   uint32          `json:"sort_order"`
    Category    string          `json:"category"`
    Titre       string          `json:"titre"`
    BtnLabel    string          `json:"btnLabel"`
    Alt         string          `json:"alt"`
    ImagePath   string          `json:"image_path,omitempty"`
    CreatedAt   time.Time       `json:"created_at"`
    UpdatedAt   time.Time       `json:"updated_at"`
}
