package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"condosync/models"
)

func TestRecomputeForBuildings(t *testing.T) {
	store := newMemStore()

	areaID := uuid.New()
	store.areas[areaID] = &models.Area{ID: areaID, Name: "Central Toronto"}
	muni, _ := store.EnsureMunicipality(context.Background(), "Toronto")
	store.municipalities["Toronto"].AreaID = &areaID
	community, _ := store.EnsureCommunity(context.Background(), muni.ID, "St. Lawrence")

	b1 := seedBuilding(store, "88 scott st")
	b1.CommunityID = &community.ID
	b1.MunicipalityID = &muni.ID
	b1.AreaID = &areaID

	b2 := seedBuilding(store, "25 the esplanade")
	b2.CommunityID = &community.ID
	b2.MunicipalityID = &muni.ID
	b2.AreaID = &areaID

	ts := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	seedListing(store, "A", b1.ID, ts, models.FeedStatusActive)
	seedListing(store, "B", b1.ID, ts, models.FeedStatusActive)
	seedListing(store, "C", b1.ID, ts, models.FeedStatusOffFeed) // retired, not counted
	seedListing(store, "D", b2.ID, ts, models.FeedStatusActive)

	a := NewAggregator(store)
	if err := a.RecomputeForBuildings(context.Background(), []uuid.UUID{b1.ID, b2.ID}); err != nil {
		t.Fatalf("recompute failed: %v", err)
	}

	if got := store.buildingCounts[b1.ID]; got != 2 {
		t.Fatalf("expected building 1 count 2, got %d", got)
	}
	if got := store.buildingCounts[b2.ID]; got != 1 {
		t.Fatalf("expected building 2 count 1, got %d", got)
	}
	if got := store.communityCounts[community.ID]; got != 3 {
		t.Fatalf("expected community count 3, got %d", got)
	}
	if got := store.municipalityCounts[muni.ID]; got != 3 {
		t.Fatalf("expected municipality count 3, got %d", got)
	}
	if got := store.areaCounts[areaID]; got != 3 {
		t.Fatalf("expected area count 3, got %d", got)
	}
}

func TestRecomputeForBuildings_Converges(t *testing.T) {
	store := newMemStore()
	b := seedBuilding(store, "88 scott st")

	// Seed a wrong denormalized count; a recompute must overwrite it from
	// the listings, not increment it.
	store.buildings[b.ID].ListingCount = 99

	ts := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	seedListing(store, "A", b.ID, ts, models.FeedStatusActive)

	a := NewAggregator(store)
	for i := 0; i < 3; i++ {
		if err := a.RecomputeForBuildings(context.Background(), []uuid.UUID{b.ID}); err != nil {
			t.Fatalf("recompute failed: %v", err)
		}
	}

	if got := store.buildingCounts[b.ID]; got != 1 {
		t.Fatalf("expected count 1 after repeated recomputes, got %d", got)
	}
}

func TestRecomputeForBuildings_UnknownBuildingSkipped(t *testing.T) {
	store := newMemStore()

	a := NewAggregator(store)
	if err := a.RecomputeForBuildings(context.Background(), []uuid.UUID{uuid.New()}); err != nil {
		t.Fatalf("expected unknown building skipped, got error: %v", err)
	}
}
