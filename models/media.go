package models

import (
	"time"

	"github.com/google/uuid"
)

// Variant tags assigned by the deduplicator. At most one of each per
// distinct photo token survives deduplication.
const (
	VariantThumbnail = "thumbnail"
	VariantLarge     = "large"
)

// Mirror status for the background worker that copies assets into object
// storage.
const (
	MirrorStatusPending  = "pending"
	MirrorStatusMirrored = "mirrored"
	MirrorStatusFailed   = "failed"
)

// MediaAsset is one stored media row. PhotoToken identifies the logical
// photo; (listing_key, photo_token, variant) is unique.
type MediaAsset struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ListingKey   string    `json:"listing_key" db:"listing_key"`
	PhotoToken   string    `json:"photo_token" db:"photo_token"`
	Variant      string    `json:"variant" db:"variant"`
	SourceURL    string    `json:"source_url" db:"source_url"`
	Order        int       `json:"display_order" db:"display_order"`
	MirrorKey    *string   `json:"mirror_key" db:"mirror_key"`
	ContentHash  string    `json:"content_hash" db:"content_hash"`
	MirrorStatus string    `json:"mirror_status" db:"mirror_status"`
	Attempts     int       `json:"attempts" db:"attempts"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
