package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"condosync/address"
	"condosync/models"
	"condosync/provider"
)

// BuildingResolver finds or creates the building that owns a listing's
// address. Matching is fuzzy: the canonical form is tried first, then the
// alternate spellings. Creation is idempotent under the canonical-address
// uniqueness constraint; the loser of a concurrent create re-reads the
// winner's row.
type BuildingResolver struct {
	store Store
}

func NewBuildingResolver(store Store) *BuildingResolver {
	return &BuildingResolver{store: store}
}

// Resolve returns the owning building for a property record, creating one
// when no existing building matches any spelling of the address.
func (r *BuildingResolver) Resolve(ctx context.Context, rec *provider.PropertyRecord) (*models.Building, error) {
	canonical := address.StripUnit(address.Canonical(rec.UnparsedAddress))
	if canonical == "" {
		return nil, fmt.Errorf("listing %s: unresolvable address %q", rec.ListingKey, rec.UnparsedAddress)
	}

	b, err := r.store.GetBuildingByCanonicalAddress(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("building lookup: %w", err)
	}
	if b != nil {
		return b, nil
	}

	for _, alt := range address.Alternates(rec.UnparsedAddress) {
		alt = address.StripUnit(alt)
		if alt == canonical {
			continue
		}
		b, err = r.store.GetBuildingByCanonicalAddress(ctx, alt)
		if err != nil {
			return nil, fmt.Errorf("building alternate lookup: %w", err)
		}
		if b != nil {
			return b, nil
		}
	}

	return r.create(ctx, canonical, rec)
}

func (r *BuildingResolver) create(ctx context.Context, canonical string, rec *provider.PropertyRecord) (*models.Building, error) {
	now := time.Now()
	b := &models.Building{
		ID:               uuid.New(),
		CanonicalAddress: canonical,
		DisplayName:      address.DisplayName(rec.UnparsedAddress),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if rec.City != "" {
		muni, err := r.store.EnsureMunicipality(ctx, rec.City)
		if err != nil {
			log.Printf("Warning: municipality lookup failed for %q: %v", rec.City, err)
		} else if muni != nil {
			b.MunicipalityID = &muni.ID
			b.AreaID = muni.AreaID

			if rec.CityRegion != "" {
				community, err := r.store.EnsureCommunity(ctx, muni.ID, rec.CityRegion)
				if err != nil {
					log.Printf("Warning: community lookup failed for %q: %v", rec.CityRegion, err)
				} else if community != nil {
					b.CommunityID = &community.ID
				}
			}
		}
	}

	inserted, err := r.store.CreateBuilding(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("create building: %w", err)
	}
	if inserted {
		return b, nil
	}

	// Lost the create race; the uniqueness constraint kept one winner.
	winner, err := r.store.GetBuildingByCanonicalAddress(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("re-read building after conflict: %w", err)
	}
	if winner == nil {
		return nil, fmt.Errorf("building %q vanished after create conflict", canonical)
	}
	return winner, nil
}
