package services

import (
	"context"
	"testing"

	"condosync/provider"
)

func propertyRecord(key, addr, city, region string) *provider.PropertyRecord {
	return &provider.PropertyRecord{
		ListingKey:      key,
		UnparsedAddress: addr,
		City:            city,
		CityRegion:      region,
	}
}

func TestResolve_ExactMatch(t *testing.T) {
	store := newMemStore()
	existing := seedBuilding(store, "88 scott st")

	r := NewBuildingResolver(store)
	b, err := r.Resolve(context.Background(), propertyRecord("A", "1203 - 88 Scott Street", "Toronto", ""))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if b.ID != existing.ID {
		t.Fatalf("expected existing building, got %s", b.ID)
	}
	if len(store.buildings) != 1 {
		t.Fatalf("expected no new building, got %d", len(store.buildings))
	}
}

func TestResolve_AlternateMatch(t *testing.T) {
	store := newMemStore()
	// Stored under the expanded street type rather than the abbreviation.
	existing := seedBuilding(store, "88 scott street")

	r := NewBuildingResolver(store)
	b, err := r.Resolve(context.Background(), propertyRecord("A", "88 Scott St", "Toronto", ""))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if b.ID != existing.ID {
		t.Fatalf("expected alternate spelling to match existing building")
	}
}

func TestResolve_CreatesWithHierarchy(t *testing.T) {
	store := newMemStore()

	r := NewBuildingResolver(store)
	b, err := r.Resolve(context.Background(), propertyRecord("A", "AURA - 386 Yonge Street", "Toronto", "Bay Street Corridor"))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if b.CanonicalAddress != "386 yonge st" {
		t.Fatalf("unexpected canonical address %q", b.CanonicalAddress)
	}
	if b.DisplayName == nil || *b.DisplayName != "Aura" {
		t.Fatalf("expected display name Aura, got %v", b.DisplayName)
	}
	if b.MunicipalityID == nil {
		t.Fatalf("expected municipality attached")
	}
	if b.CommunityID == nil {
		t.Fatalf("expected community attached")
	}

	muni := store.municipalities["Toronto"]
	if muni == nil || muni.ID != *b.MunicipalityID {
		t.Fatalf("expected Toronto municipality")
	}
}

func TestResolve_CreateRaceReadsWinner(t *testing.T) {
	store := newMemStore()
	store.raceAddress = "88 scott st"

	r := NewBuildingResolver(store)
	b, err := r.Resolve(context.Background(), propertyRecord("A", "88 Scott St", "Toronto", ""))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	winner := store.byAddress["88 scott st"]
	if b.ID != winner {
		t.Fatalf("expected the winning row, got %s", b.ID)
	}
	if len(store.buildings) != 1 {
		t.Fatalf("expected a single building after the race, got %d", len(store.buildings))
	}
}

func TestResolve_EmptyAddress(t *testing.T) {
	store := newMemStore()

	r := NewBuildingResolver(store)
	if _, err := r.Resolve(context.Background(), propertyRecord("A", "", "Toronto", "")); err == nil {
		t.Fatalf("expected error for empty address")
	}
	if len(store.buildings) != 0 {
		t.Fatalf("expected no building created")
	}
}

func TestResolve_NoCityStillCreates(t *testing.T) {
	store := newMemStore()

	r := NewBuildingResolver(store)
	b, err := r.Resolve(context.Background(), propertyRecord("A", "88 Scott St", "", ""))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if b.MunicipalityID != nil {
		t.Fatalf("expected no municipality without a city")
	}
	if _, ok := store.buildings[b.ID]; !ok {
		t.Fatalf("expected building persisted")
	}
}
