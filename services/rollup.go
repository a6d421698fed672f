package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Aggregator recomputes the denormalized listing counts up the geographic
// hierarchy. Counts are always recounted from the listings table, never
// incremented, so a rerun converges on the same numbers regardless of what
// the previous pass wrote.
type Aggregator struct {
	store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// RecomputeForBuildings walks each touched building bottom-up. Parents are
// deduplicated so a run touching twenty buildings in one community recounts
// that community once.
func (a *Aggregator) RecomputeForBuildings(ctx context.Context, buildingIDs []uuid.UUID) error {
	communities := make(map[uuid.UUID]bool)
	municipalities := make(map[uuid.UUID]bool)
	areas := make(map[uuid.UUID]bool)

	for _, id := range buildingIDs {
		b, err := a.store.GetBuilding(ctx, id)
		if err != nil {
			return fmt.Errorf("get building %s: %w", id, err)
		}
		if b == nil {
			continue
		}

		count, err := a.store.CountListingsByBuilding(ctx, id)
		if err != nil {
			return fmt.Errorf("count building %s: %w", id, err)
		}
		if err := a.store.SetBuildingListingCount(ctx, id, count); err != nil {
			return fmt.Errorf("set building count %s: %w", id, err)
		}

		if b.CommunityID != nil {
			communities[*b.CommunityID] = true
		}
		if b.MunicipalityID != nil {
			municipalities[*b.MunicipalityID] = true
		}
		if b.AreaID != nil {
			areas[*b.AreaID] = true
		}
	}

	for id := range communities {
		count, err := a.store.CountListingsByCommunity(ctx, id)
		if err != nil {
			return fmt.Errorf("count community %s: %w", id, err)
		}
		if err := a.store.SetCommunityListingCount(ctx, id, count); err != nil {
			return fmt.Errorf("set community count %s: %w", id, err)
		}
	}

	for id := range municipalities {
		count, err := a.store.CountListingsByMunicipality(ctx, id)
		if err != nil {
			return fmt.Errorf("count municipality %s: %w", id, err)
		}
		if err := a.store.SetMunicipalityListingCount(ctx, id, count); err != nil {
			return fmt.Errorf("set municipality count %s: %w", id, err)
		}
	}

	for id := range areas {
		count, err := a.store.CountListingsByArea(ctx, id)
		if err != nil {
			return fmt.Errorf("count area %s: %w", id, err)
		}
		if err := a.store.SetAreaListingCount(ctx, id, count); err != nil {
			return fmt.Errorf("set area count %s: %w", id, err)
		}
	}

	return nil
}
