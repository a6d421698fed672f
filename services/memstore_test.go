package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"condosync/models"
)

// memStore is the in-memory Store used across the service tests.
type memStore struct {
	listings  map[string]*models.ListingRecord
	media     map[string][]models.MediaAsset
	buildings map[uuid.UUID]*models.Building
	byAddress map[string]uuid.UUID

	municipalities map[string]*models.Municipality
	communities    map[string]*models.Community
	areas          map[uuid.UUID]*models.Area

	buildingCounts     map[uuid.UUID]int
	communityCounts    map[uuid.UUID]int
	municipalityCounts map[uuid.UUID]int
	areaCounts         map[uuid.UUID]int

	runs      []*models.SyncRun
	nextRunID int64

	// raceAddress simulates a concurrent create: the first CreateBuilding
	// for this canonical address reports a conflict after inserting a
	// different winner row.
	raceAddress string
}

func newMemStore() *memStore {
	return &memStore{
		listings:           make(map[string]*models.ListingRecord),
		media:              make(map[string][]models.MediaAsset),
		buildings:          make(map[uuid.UUID]*models.Building),
		byAddress:          make(map[string]uuid.UUID),
		municipalities:     make(map[string]*models.Municipality),
		communities:        make(map[string]*models.Community),
		areas:              make(map[uuid.UUID]*models.Area),
		buildingCounts:     make(map[uuid.UUID]int),
		communityCounts:    make(map[uuid.UUID]int),
		municipalityCounts: make(map[uuid.UUID]int),
		areaCounts:         make(map[uuid.UUID]int),
	}
}

func (s *memStore) GetListing(ctx context.Context, listingKey string) (*models.ListingRecord, error) {
	l, ok := s.listings[listingKey]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (s *memStore) UpsertListing(ctx context.Context, l *models.ListingRecord) error {
	cp := *l
	s.listings[l.ListingKey] = &cp
	return nil
}

func (s *memStore) ListFeedActive(ctx context.Context, scope ListingScope) ([]ListingRef, error) {
	var refs []ListingRef
	for _, l := range s.listings {
		if l.FeedStatus != models.FeedStatusActive {
			continue
		}
		if scope.BuildingID != nil && (l.BuildingID == nil || *l.BuildingID != *scope.BuildingID) {
			continue
		}
		if scope.City != "" && l.City != scope.City {
			continue
		}
		if scope.PropertyType != "" && l.PropertyType != scope.PropertyType {
			continue
		}
		refs = append(refs, ListingRef{Key: l.ListingKey, BuildingID: l.BuildingID})
	}
	return refs, nil
}

func (s *memStore) RetireListing(ctx context.Context, listingKey string, at time.Time) error {
	if l, ok := s.listings[listingKey]; ok {
		l.FeedStatus = models.FeedStatusOffFeed
		l.UpdatedAt = at
	}
	return nil
}

func (s *memStore) ReplaceListingMedia(ctx context.Context, listingKey string, assets []models.MediaAsset) error {
	prev := make(map[string]models.MediaAsset, len(s.media[listingKey]))
	for _, a := range s.media[listingKey] {
		prev[a.PhotoToken+":"+a.Variant] = a
	}

	next := make([]models.MediaAsset, 0, len(assets))
	for _, a := range assets {
		if old, ok := prev[a.PhotoToken+":"+a.Variant]; ok && old.SourceURL == a.SourceURL {
			a.ID = old.ID
			a.MirrorKey = old.MirrorKey
			a.ContentHash = old.ContentHash
			a.MirrorStatus = old.MirrorStatus
			a.Attempts = old.Attempts
		}
		next = append(next, a)
	}
	s.media[listingKey] = next
	return nil
}

func (s *memStore) GetBuilding(ctx context.Context, id uuid.UUID) (*models.Building, error) {
	b, ok := s.buildings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) GetBuildingByCanonicalAddress(ctx context.Context, canonical string) (*models.Building, error) {
	id, ok := s.byAddress[canonical]
	if !ok {
		return nil, nil
	}
	return s.GetBuilding(ctx, id)
}

func (s *memStore) CreateBuilding(ctx context.Context, b *models.Building) (bool, error) {
	if s.raceAddress != "" && b.CanonicalAddress == s.raceAddress {
		s.raceAddress = ""
		winner := *b
		winner.ID = uuid.New()
		s.buildings[winner.ID] = &winner
		s.byAddress[winner.CanonicalAddress] = winner.ID
		return false, nil
	}
	if _, exists := s.byAddress[b.CanonicalAddress]; exists {
		return false, nil
	}
	cp := *b
	s.buildings[b.ID] = &cp
	s.byAddress[b.CanonicalAddress] = b.ID
	return true, nil
}

func (s *memStore) ListBuildings(ctx context.Context) ([]models.Building, error) {
	var out []models.Building
	for _, b := range s.buildings {
		out = append(out, *b)
	}
	return out, nil
}

func (s *memStore) GetMunicipality(ctx context.Context, id uuid.UUID) (*models.Municipality, error) {
	for _, m := range s.municipalities {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) EnsureMunicipality(ctx context.Context, name string) (*models.Municipality, error) {
	if m, ok := s.municipalities[name]; ok {
		cp := *m
		return &cp, nil
	}
	m := &models.Municipality{ID: uuid.New(), Name: name}
	s.municipalities[name] = m
	cp := *m
	return &cp, nil
}

func (s *memStore) EnsureCommunity(ctx context.Context, municipalityID uuid.UUID, name string) (*models.Community, error) {
	key := municipalityID.String() + "/" + name
	if c, ok := s.communities[key]; ok {
		cp := *c
		return &cp, nil
	}
	c := &models.Community{ID: uuid.New(), MunicipalityID: municipalityID, Name: name}
	s.communities[key] = c
	cp := *c
	return &cp, nil
}

func (s *memStore) CountListingsByBuilding(ctx context.Context, id uuid.UUID) (int, error) {
	count := 0
	for _, l := range s.listings {
		if l.FeedStatus == models.FeedStatusActive && l.BuildingID != nil && *l.BuildingID == id {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CountListingsByCommunity(ctx context.Context, id uuid.UUID) (int, error) {
	count := 0
	for _, l := range s.listings {
		if l.FeedStatus != models.FeedStatusActive || l.BuildingID == nil {
			continue
		}
		b := s.buildings[*l.BuildingID]
		if b != nil && b.CommunityID != nil && *b.CommunityID == id {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CountListingsByMunicipality(ctx context.Context, id uuid.UUID) (int, error) {
	count := 0
	for _, l := range s.listings {
		if l.FeedStatus != models.FeedStatusActive || l.BuildingID == nil {
			continue
		}
		b := s.buildings[*l.BuildingID]
		if b != nil && b.MunicipalityID != nil && *b.MunicipalityID == id {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CountListingsByArea(ctx context.Context, id uuid.UUID) (int, error) {
	count := 0
	for _, l := range s.listings {
		if l.FeedStatus != models.FeedStatusActive || l.BuildingID == nil {
			continue
		}
		b := s.buildings[*l.BuildingID]
		if b != nil && b.AreaID != nil && *b.AreaID == id {
			count++
		}
	}
	return count, nil
}

func (s *memStore) SetBuildingListingCount(ctx context.Context, id uuid.UUID, count int) error {
	s.buildingCounts[id] = count
	if b, ok := s.buildings[id]; ok {
		b.ListingCount = count
	}
	return nil
}

func (s *memStore) SetCommunityListingCount(ctx context.Context, id uuid.UUID, count int) error {
	s.communityCounts[id] = count
	return nil
}

func (s *memStore) SetMunicipalityListingCount(ctx context.Context, id uuid.UUID, count int) error {
	s.municipalityCounts[id] = count
	return nil
}

func (s *memStore) SetAreaListingCount(ctx context.Context, id uuid.UUID, count int) error {
	s.areaCounts[id] = count
	return nil
}

func (s *memStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	s.nextRunID++
	run.ID = s.nextRunID
	cp := *run
	s.runs = append(s.runs, &cp)
	return nil
}

func (s *memStore) SealSyncRun(ctx context.Context, run *models.SyncRun) error {
	for i, r := range s.runs {
		if r.ID == run.ID {
			cp := *run
			s.runs[i] = &cp
			return nil
		}
	}
	return nil
}

func (s *memStore) GetRunningRun(ctx context.Context, scope, propertyType string) (*models.SyncRun, error) {
	for i := len(s.runs) - 1; i >= 0; i-- {
		r := s.runs[i]
		if r.Scope == scope && r.PropertyType == propertyType && r.Status == models.RunStatusRunning {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) LastSuccessfulRunStart(ctx context.Context, scope, propertyType string) (*time.Time, error) {
	var latest *time.Time
	for _, r := range s.runs {
		if r.Scope == scope && r.PropertyType == propertyType && r.Status == models.RunStatusCompleted {
			if latest == nil || r.StartedAt.After(*latest) {
				t := r.StartedAt
				latest = &t
			}
		}
	}
	return latest, nil
}
