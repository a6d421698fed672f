package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"condosync/models"
)

// ListingScope narrows listing queries to a building or a municipality,
// optionally filtered by property type. The zero scope matches everything.
type ListingScope struct {
	BuildingID   *uuid.UUID
	City         string
	PropertyType string
}

// ListingRef is the slim projection the removal pass works from.
type ListingRef struct {
	Key        string
	BuildingID *uuid.UUID
}

// Store is the contract the pipeline expects from the persistence
// collaborator: upsert-by-key on listings, uniqueness on building canonical
// address, and count-by-foreign-key for the rollups. Implemented by
// storage.PostgresStore; tests use an in-memory fake.
type Store interface {
	// Listings. Lookups return (nil, nil) when no row exists.
	GetListing(ctx context.Context, listingKey string) (*models.ListingRecord, error)
	UpsertListing(ctx context.Context, l *models.ListingRecord) error
	ListFeedActive(ctx context.Context, scope ListingScope) ([]ListingRef, error)
	RetireListing(ctx context.Context, listingKey string, at time.Time) error
	// ReplaceListingMedia reconciles the stored media set against the
	// deduplicated fetch. Rows with an unchanged source URL keep their
	// mirror state.
	ReplaceListingMedia(ctx context.Context, listingKey string, assets []models.MediaAsset) error

	// Buildings. CreateBuilding reports false when the canonical-address
	// uniqueness constraint rejected the insert; the caller re-reads the
	// winner instead of erroring.
	GetBuilding(ctx context.Context, id uuid.UUID) (*models.Building, error)
	GetBuildingByCanonicalAddress(ctx context.Context, canonical string) (*models.Building, error)
	CreateBuilding(ctx context.Context, b *models.Building) (bool, error)
	ListBuildings(ctx context.Context) ([]models.Building, error)

	// Geographic hierarchy.
	GetMunicipality(ctx context.Context, id uuid.UUID) (*models.Municipality, error)
	EnsureMunicipality(ctx context.Context, name string) (*models.Municipality, error)
	EnsureCommunity(ctx context.Context, municipalityID uuid.UUID, name string) (*models.Community, error)

	// Rollup counts over feed-active listings.
	CountListingsByBuilding(ctx context.Context, id uuid.UUID) (int, error)
	CountListingsByCommunity(ctx context.Context, id uuid.UUID) (int, error)
	CountListingsByMunicipality(ctx context.Context, id uuid.UUID) (int, error)
	CountListingsByArea(ctx context.Context, id uuid.UUID) (int, error)
	SetBuildingListingCount(ctx context.Context, id uuid.UUID, count int) error
	SetCommunityListingCount(ctx context.Context, id uuid.UUID, count int) error
	SetMunicipalityListingCount(ctx context.Context, id uuid.UUID, count int) error
	SetAreaListingCount(ctx context.Context, id uuid.UUID, count int) error

	// Sync runs.
	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	SealSyncRun(ctx context.Context, run *models.SyncRun) error
	GetRunningRun(ctx context.Context, scope, propertyType string) (*models.SyncRun, error)
	LastSuccessfulRunStart(ctx context.Context, scope, propertyType string) (*time.Time, error)
}
