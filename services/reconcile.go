package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"condosync/mediadedup"
	"condosync/models"
	"condosync/provider"
)

// ReconcileResult carries the classification counts for one pass plus the
// set of buildings whose rollups need recomputing.
type ReconcileResult struct {
	Found     int
	Added     int
	Updated   int
	Unchanged int
	Removed   int
	Skipped   int

	TouchedBuildings []uuid.UUID
	Errors           []models.RunError
}

// Reconciler diffs a fetched, enriched listing batch against persisted
// state and applies the upserts and retirements. Listings are never hard
// deleted; a listing absent from a full snapshot is retired to off_feed.
type Reconciler struct {
	store    Store
	resolver *BuildingResolver
}

func NewReconciler(store Store, resolver *BuildingResolver) *Reconciler {
	return &Reconciler{store: store, resolver: resolver}
}

// Reconcile classifies every fetched listing as added, updated or unchanged
// and, in full mode only, retires persisted in-scope listings missing from
// the fetched set. Incremental fetches are not complete snapshots, so
// absence there is not evidence of removal.
func (r *Reconciler) Reconcile(ctx context.Context, scope ListingScope, mode models.SyncMode, listings []provider.EnrichedListing) (*ReconcileResult, error) {
	res := &ReconcileResult{Found: len(listings)}
	touched := make(map[uuid.UUID]bool)
	fetchedKeys := make(map[string]bool, len(listings))

	for i := range listings {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		enriched := &listings[i]
		key := enriched.Property.ListingKey
		fetchedKeys[key] = true

		if err := r.reconcileOne(ctx, enriched, res, touched); err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, models.RunError{
				Scope:   key,
				Stage:   "reconcile",
				Message: err.Error(),
			})
			log.Printf("Warning: skipping listing %s: %v", key, err)
		}
	}

	if mode == models.SyncModeFull {
		if err := r.retireMissing(ctx, scope, fetchedKeys, res, touched); err != nil {
			return res, fmt.Errorf("retire missing listings: %w", err)
		}
	}

	for id := range touched {
		res.TouchedBuildings = append(res.TouchedBuildings, id)
	}
	return res, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, enriched *provider.EnrichedListing, res *ReconcileResult, touched map[uuid.UUID]bool) error {
	rec := &enriched.Property

	modTime, err := rec.ModTime()
	if err != nil {
		return err
	}

	var building *models.Building
	building, err = r.resolver.Resolve(ctx, rec)
	if err != nil {
		// A listing with no matchable building still syncs; buildingId
		// stays null until a later pass resolves it.
		log.Printf("Warning: building unresolved for %s: %v", rec.ListingKey, err)
		res.Errors = append(res.Errors, models.RunError{
			Scope:   rec.ListingKey,
			Stage:   "resolve",
			Message: err.Error(),
		})
	}

	existing, err := r.store.GetListing(ctx, rec.ListingKey)
	if err != nil {
		return fmt.Errorf("get listing: %w", err)
	}

	now := time.Now()

	switch {
	case existing == nil:
		row := buildRecord(enriched, building, modTime, now)
		row.CreatedAt = now
		if err := r.store.UpsertListing(ctx, row); err != nil {
			return fmt.Errorf("insert listing: %w", err)
		}
		if err := r.storeMedia(ctx, enriched, now); err != nil {
			log.Printf("Warning: media store failed for %s: %v", rec.ListingKey, err)
		}
		res.Added++
		markTouched(touched, row.BuildingID)

	case modTime.After(existing.ModificationTimestamp):
		row := buildRecord(enriched, building, modTime, now)
		row.CreatedAt = existing.CreatedAt
		if row.BuildingID == nil {
			row.BuildingID = existing.BuildingID
		}
		if err := r.store.UpsertListing(ctx, row); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		if err := r.storeMedia(ctx, enriched, now); err != nil {
			log.Printf("Warning: media store failed for %s: %v", rec.ListingKey, err)
		}
		res.Updated++
		markTouched(touched, existing.BuildingID)
		markTouched(touched, row.BuildingID)

	case existing.FeedStatus == models.FeedStatusOffFeed:
		// The provider is returning a previously retired listing again
		// at the same timestamp; reactivate without touching fields.
		existing.FeedStatus = models.FeedStatusActive
		existing.UpdatedAt = now
		if err := r.store.UpsertListing(ctx, existing); err != nil {
			return fmt.Errorf("reactivate listing: %w", err)
		}
		res.Updated++
		markTouched(touched, existing.BuildingID)

	default:
		// Same or older modification timestamp: last-write-wins keyed on
		// the timestamp, so a stale fetched row is a no-op even when
		// individual fields differ.
		res.Unchanged++
	}

	return nil
}

func (r *Reconciler) retireMissing(ctx context.Context, scope ListingScope, fetchedKeys map[string]bool, res *ReconcileResult, touched map[uuid.UUID]bool) error {
	persisted, err := r.store.ListFeedActive(ctx, scope)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, ref := range persisted {
		if fetchedKeys[ref.Key] {
			continue
		}
		if err := r.store.RetireListing(ctx, ref.Key, now); err != nil {
			return fmt.Errorf("retire %s: %w", ref.Key, err)
		}
		res.Removed++
		markTouched(touched, ref.BuildingID)
	}
	return nil
}

func (r *Reconciler) storeMedia(ctx context.Context, enriched *provider.EnrichedListing, now time.Time) error {
	assets := mediadedup.Dedupe(enriched.Property.ListingKey, enriched.Media, now)
	return r.store.ReplaceListingMedia(ctx, enriched.Property.ListingKey, assets)
}

func markTouched(touched map[uuid.UUID]bool, id *uuid.UUID) {
	if id != nil {
		touched[*id] = true
	}
}

// buildRecord maps an enriched provider listing onto the stored row. The
// full payload plus sub-resources rides along in Fields.
func buildRecord(enriched *provider.EnrichedListing, building *models.Building, modTime, now time.Time) *models.ListingRecord {
	rec := &enriched.Property

	row := &models.ListingRecord{
		ListingKey:            rec.ListingKey,
		FeedStatus:            models.FeedStatusActive,
		ProviderStatus:        rec.StandardStatus,
		PropertyType:          rec.PropertyType,
		TransactionType:       rec.TransactionType,
		UnparsedAddress:       rec.UnparsedAddress,
		UnitNumber:            rec.UnitNumber,
		City:                  rec.City,
		Neighbourhood:         rec.CityRegion,
		ListPrice:             rec.ListPrice,
		ClosePrice:            rec.ClosePrice,
		Beds:                  rec.BedroomsTotal,
		Baths:                 rec.BathroomsTotal,
		PublicRemarks:         rec.PublicRemarks,
		ModificationTimestamp: modTime,
		UpdatedAt:             now,
	}

	if building != nil {
		row.BuildingID = &building.ID
	}
	if rec.LivingArea != nil {
		sqft := int(*rec.LivingArea)
		row.SqFt = &sqft
	}

	fields, err := json.Marshal(map[string]interface{}{
		"property":   rec.Raw,
		"rooms":      enriched.Rooms,
		"openHouses": enriched.OpenHouses,
	})
	if err == nil {
		row.Fields = fields
	}

	return row
}
