package provider

import (
	"encoding/json"
	"fmt"
	"time"
)

// PropertyRecord is one listing row from the provider's Property resource.
// Only the fields the pipeline acts on are promoted; Raw keeps the full
// payload for storage.
type PropertyRecord struct {
	ListingKey            string   `json:"ListingKey"`
	StandardStatus        string   `json:"StandardStatus"`
	PropertyType          string   `json:"PropertyType"`
	TransactionType       string   `json:"TransactionType"`
	UnparsedAddress       string   `json:"UnparsedAddress"`
	UnitNumber            string   `json:"UnitNumber"`
	City                  string   `json:"City"`
	CityRegion            string   `json:"CityRegion"`
	ListPrice             *float64 `json:"ListPrice"`
	ClosePrice            *float64 `json:"ClosePrice"`
	BedroomsTotal         *int     `json:"BedroomsTotal"`
	BathroomsTotal        *int     `json:"BathroomsTotalInteger"`
	LivingArea            *float64 `json:"LivingArea"`
	PublicRemarks         string   `json:"PublicRemarks"`
	ModificationTimestamp string   `json:"ModificationTimestamp"`

	Raw json.RawMessage `json:"-"`
}

// ModTime parses the provider modification timestamp. A missing or
// malformed value is a data-shape error; the record gets skipped, not the
// run aborted.
func (r *PropertyRecord) ModTime() (time.Time, error) {
	if r.ModificationTimestamp == "" {
		return time.Time{}, fmt.Errorf("listing %s: missing ModificationTimestamp", r.ListingKey)
	}
	t, err := time.Parse(time.RFC3339, r.ModificationTimestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("listing %s: bad ModificationTimestamp %q: %w", r.ListingKey, r.ModificationTimestamp, err)
	}
	return t, nil
}

// RoomRecord is one row from the room-layout sub-resource.
type RoomRecord struct {
	RoomKey        string `json:"RoomKey"`
	ListingKey     string `json:"ListingKey"`
	RoomType       string `json:"RoomType"`
	RoomLevel      string `json:"RoomLevel"`
	RoomDimensions string `json:"RoomDimensions"`
	RoomFeatures   string `json:"RoomFeatures"`
}

// MediaRecord is one raw media variant row. The provider returns several
// resolution variants per logical photo; the deduplicator collapses them.
type MediaRecord struct {
	MediaKey             string `json:"MediaKey"`
	ResourceRecordKey    string `json:"ResourceRecordKey"`
	MediaURL             string `json:"MediaURL"`
	Order                *int   `json:"Order"`
	ImageSizeDescription string `json:"ImageSizeDescription"`
	MediaCategory        string `json:"MediaCategory"`
}

// OpenHouseRecord is one open-house event row.
type OpenHouseRecord struct {
	OpenHouseKey       string `json:"OpenHouseKey"`
	ListingKey         string `json:"ListingKey"`
	OpenHouseDate      string `json:"OpenHouseDate"`
	OpenHouseStartTime string `json:"OpenHouseStartTime"`
	OpenHouseEndTime   string `json:"OpenHouseEndTime"`
	OpenHouseRemarks   string `json:"OpenHouseRemarks"`
}

func parseProperty(raw json.RawMessage) (PropertyRecord, error) {
	var rec PropertyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("decode property: %w", err)
	}
	rec.Raw = raw
	if rec.ListingKey == "" {
		return rec, fmt.Errorf("property record missing ListingKey")
	}
	return rec, nil
}
