package models

import (
	"time"

	"github.com/google/uuid"
)

// Building groups all listings sharing a physical address. Created lazily
// the first time a listing address cannot be matched to an existing row;
// canonical_address carries a uniqueness constraint so concurrent creates
// race safely.
type Building struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	CanonicalAddress string     `json:"canonical_address" db:"canonical_address"`
	DisplayName      *string    `json:"display_name" db:"display_name"`
	CommunityID      *uuid.UUID `json:"community_id" db:"community_id"`
	MunicipalityID   *uuid.UUID `json:"municipality_id" db:"municipality_id"`
	AreaID           *uuid.UUID `json:"area_id" db:"area_id"`
	ListingCount     int        `json:"listing_count" db:"listing_count"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Geographic hierarchy reference entities. listing_count on each level is a
// denormalized rollup recomputed after reconciliation, never computed live.

type Community struct {
	ID             uuid.UUID `json:"id" db:"id"`
	MunicipalityID uuid.UUID `json:"municipality_id" db:"municipality_id"`
	Name           string    `json:"name" db:"name"`
	ListingCount   int       `json:"listing_count" db:"listing_count"`
}

type Municipality struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	AreaID       *uuid.UUID `json:"area_id" db:"area_id"`
	Name         string     `json:"name" db:"name"`
	ListingCount int        `json:"listing_count" db:"listing_count"`
}

type Area struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	ListingCount int       `json:"listing_count" db:"listing_count"`
}
