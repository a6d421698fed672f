package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Feed status tracks whether the provider still returns the listing.
// Listings are never deleted; a listing absent from a full snapshot is
// retired to off_feed so sale/lease history stays queryable.
const (
	FeedStatusActive  = "active"
	FeedStatusOffFeed = "off_feed"
)

// ListingRecord is one provider listing snapshot. A handful of fields the
// pipeline needs are promoted to columns; the full provider payload (rooms
// and open houses included) rides along in Fields.
type ListingRecord struct {
	ListingKey            string          `json:"listing_key" db:"listing_key"`
	BuildingID            *uuid.UUID      `json:"building_id" db:"building_id"`
	FeedStatus            string          `json:"feed_status" db:"feed_status"`
	ProviderStatus        string          `json:"provider_status" db:"provider_status"`
	PropertyType          string          `json:"property_type" db:"property_type"`
	TransactionType       string          `json:"transaction_type" db:"transaction_type"`
	UnparsedAddress       string          `json:"unparsed_address" db:"unparsed_address"`
	UnitNumber            string          `json:"unit_number" db:"unit_number"`
	City                  string          `json:"city" db:"city"`
	Neighbourhood         string          `json:"neighbourhood" db:"neighbourhood"`
	ListPrice             *float64        `json:"list_price" db:"list_price"`
	ClosePrice            *float64        `json:"close_price" db:"close_price"`
	Beds                  *int            `json:"beds" db:"beds"`
	Baths                 *int            `json:"baths" db:"baths"`
	SqFt                  *int            `json:"sqft" db:"sqft"`
	PublicRemarks         string          `json:"public_remarks" db:"public_remarks"`
	ModificationTimestamp time.Time       `json:"modification_timestamp" db:"modification_timestamp"`
	Fields                json.RawMessage `json:"fields" db:"fields"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" db:"updated_at"`
}
