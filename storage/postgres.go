package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"condosync/models"
	"condosync/services"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Listings
// =============================================================================

func (s *PostgresStore) GetListing(ctx context.Context, listingKey string) (*models.ListingRecord, error) {
	query := `
		SELECT listing_key, building_id, feed_status, provider_status, property_type,
			transaction_type, unparsed_address, unit_number, city, neighbourhood,
			list_price, close_price, beds, baths, sqft, public_remarks,
			modification_timestamp, fields, created_at, updated_at
		FROM listings WHERE listing_key = $1`

	var l models.ListingRecord
	err := s.pool.QueryRow(ctx, query, listingKey).Scan(
		&l.ListingKey, &l.BuildingID, &l.FeedStatus, &l.ProviderStatus, &l.PropertyType,
		&l.TransactionType, &l.UnparsedAddress, &l.UnitNumber, &l.City, &l.Neighbourhood,
		&l.ListPrice, &l.ClosePrice, &l.Beds, &l.Baths, &l.SqFt, &l.PublicRemarks,
		&l.ModificationTimestamp, &l.Fields, &l.CreatedAt, &l.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) UpsertListing(ctx context.Context, l *models.ListingRecord) error {
	query := `
		INSERT INTO listings (
			listing_key, building_id, feed_status, provider_status, property_type,
			transaction_type, unparsed_address, unit_number, city, neighbourhood,
			list_price, close_price, beds, baths, sqft, public_remarks,
			modification_timestamp, fields, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		ON CONFLICT (listing_key) DO UPDATE SET
			building_id = COALESCE(EXCLUDED.building_id, listings.building_id),
			feed_status = EXCLUDED.feed_status,
			provider_status = EXCLUDED.provider_status,
			property_type = COALESCE(NULLIF(EXCLUDED.property_type, ''), listings.property_type),
			transaction_type = COALESCE(NULLIF(EXCLUDED.transaction_type, ''), listings.transaction_type),
			unparsed_address = COALESCE(NULLIF(EXCLUDED.unparsed_address, ''), listings.unparsed_address),
			unit_number = COALESCE(NULLIF(EXCLUDED.unit_number, ''), listings.unit_number),
			city = COALESCE(NULLIF(EXCLUDED.city, ''), listings.city),
			neighbourhood = COALESCE(NULLIF(EXCLUDED.neighbourhood, ''), listings.neighbourhood),
			list_price = COALESCE(EXCLUDED.list_price, listings.list_price),
			close_price = COALESCE(EXCLUDED.close_price, listings.close_price),
			beds = COALESCE(EXCLUDED.beds, listings.beds),
			baths = COALESCE(EXCLUDED.baths, listings.baths),
			sqft = COALESCE(EXCLUDED.sqft, listings.sqft),
			public_remarks = COALESCE(NULLIF(EXCLUDED.public_remarks, ''), listings.public_remarks),
			modification_timestamp = EXCLUDED.modification_timestamp,
			fields = COALESCE(EXCLUDED.fields, listings.fields),
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		l.ListingKey, l.BuildingID, l.FeedStatus, l.ProviderStatus, l.PropertyType,
		l.TransactionType, l.UnparsedAddress, l.UnitNumber, l.City, l.Neighbourhood,
		l.ListPrice, l.ClosePrice, l.Beds, l.Baths, l.SqFt, l.PublicRemarks,
		l.ModificationTimestamp, l.Fields, l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) ListFeedActive(ctx context.Context, scope services.ListingScope) ([]services.ListingRef, error) {
	query := `SELECT listing_key, building_id FROM listings WHERE feed_status = $1`
	args := []interface{}{models.FeedStatusActive}

	if scope.BuildingID != nil {
		args = append(args, *scope.BuildingID)
		query += fmt.Sprintf(" AND building_id = $%d", len(args))
	}
	if scope.City != "" {
		args = append(args, scope.City)
		query += fmt.Sprintf(" AND city = $%d", len(args))
	}
	if scope.PropertyType != "" {
		args = append(args, scope.PropertyType)
		query += fmt.Sprintf(" AND property_type = $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []services.ListingRef
	for rows.Next() {
		var ref services.ListingRef
		if err := rows.Scan(&ref.Key, &ref.BuildingID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *PostgresStore) RetireListing(ctx context.Context, listingKey string, at time.Time) error {
	query := `UPDATE listings SET feed_status = $2, updated_at = $3 WHERE listing_key = $1`
	_, err := s.pool.Exec(ctx, query, listingKey, models.FeedStatusOffFeed, at)
	return err
}

// =============================================================================
// Media Assets
// =============================================================================

// ReplaceListingMedia reconciles the stored media set for a listing against
// the deduplicated fetch in one transaction. Rows absent from the new set are
// deleted; surviving rows keep their mirror state when the source URL is
// unchanged, so already-mirrored photos are not re-downloaded.
func (s *PostgresStore) ReplaceListingMedia(ctx context.Context, listingKey string, assets []models.MediaAsset) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	keep := make([]string, len(assets))
	for i := range assets {
		keep[i] = assets[i].PhotoToken + ":" + assets[i].Variant
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM media_assets
		WHERE listing_key = $1 AND photo_token || ':' || variant <> ALL($2)`,
		listingKey, keep,
	); err != nil {
		return fmt.Errorf("prune media: %w", err)
	}

	insert := `
		INSERT INTO media_assets (
			id, listing_key, photo_token, variant, source_url, display_order,
			mirror_key, content_hash, mirror_status, attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (listing_key, photo_token, variant) DO UPDATE SET
			display_order = EXCLUDED.display_order,
			source_url = EXCLUDED.source_url,
			mirror_key = CASE WHEN media_assets.source_url = EXCLUDED.source_url
				THEN media_assets.mirror_key ELSE NULL END,
			content_hash = CASE WHEN media_assets.source_url = EXCLUDED.source_url
				THEN media_assets.content_hash ELSE '' END,
			mirror_status = CASE WHEN media_assets.source_url = EXCLUDED.source_url
				THEN media_assets.mirror_status ELSE 'pending' END,
			attempts = CASE WHEN media_assets.source_url = EXCLUDED.source_url
				THEN media_assets.attempts ELSE 0 END`

	for i := range assets {
		a := &assets[i]
		if _, err := tx.Exec(ctx, insert,
			a.ID, a.ListingKey, a.PhotoToken, a.Variant, a.SourceURL, a.Order,
			a.MirrorKey, a.ContentHash, a.MirrorStatus, a.Attempts, a.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert media %s/%s: %w", a.PhotoToken, a.Variant, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetPendingMediaAssets(ctx context.Context, limit int) ([]models.MediaAsset, error) {
	query := `
		SELECT id, listing_key, photo_token, variant, source_url, display_order,
			mirror_key, content_hash, mirror_status, attempts, created_at
		FROM media_assets
		WHERE mirror_status = 'pending' AND attempts < 3
		ORDER BY created_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []models.MediaAsset
	for rows.Next() {
		var a models.MediaAsset
		if err := rows.Scan(
			&a.ID, &a.ListingKey, &a.PhotoToken, &a.Variant, &a.SourceURL, &a.Order,
			&a.MirrorKey, &a.ContentHash, &a.MirrorStatus, &a.Attempts, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (s *PostgresStore) UpdateMediaAssetMirror(ctx context.Context, id uuid.UUID, status string, mirrorKey *string, contentHash string, attempts int) error {
	query := `
		UPDATE media_assets
		SET mirror_status = $2, mirror_key = COALESCE($3, mirror_key),
			content_hash = COALESCE(NULLIF($4, ''), content_hash), attempts = $5
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, status, mirrorKey, contentHash, attempts)
	return err
}

// =============================================================================
// Buildings
// =============================================================================

func (s *PostgresStore) GetBuilding(ctx context.Context, id uuid.UUID) (*models.Building, error) {
	query := `
		SELECT id, canonical_address, display_name, community_id, municipality_id,
			area_id, listing_count, created_at, updated_at
		FROM buildings WHERE id = $1`

	var b models.Building
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.CanonicalAddress, &b.DisplayName, &b.CommunityID, &b.MunicipalityID,
		&b.AreaID, &b.ListingCount, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) GetBuildingByCanonicalAddress(ctx context.Context, canonical string) (*models.Building, error) {
	query := `
		SELECT id, canonical_address, display_name, community_id, municipality_id,
			area_id, listing_count, created_at, updated_at
		FROM buildings WHERE canonical_address = $1`

	var b models.Building
	err := s.pool.QueryRow(ctx, query, canonical).Scan(
		&b.ID, &b.CanonicalAddress, &b.DisplayName, &b.CommunityID, &b.MunicipalityID,
		&b.AreaID, &b.ListingCount, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) CreateBuilding(ctx context.Context, b *models.Building) (bool, error) {
	query := `
		INSERT INTO buildings (
			id, canonical_address, display_name, community_id, municipality_id,
			area_id, listing_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (canonical_address) DO NOTHING
		RETURNING id`

	err := s.pool.QueryRow(ctx, query,
		b.ID, b.CanonicalAddress, b.DisplayName, b.CommunityID, b.MunicipalityID,
		b.AreaID, b.ListingCount, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)

	if err == pgx.ErrNoRows {
		return false, nil // conflict, another create won
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) ListBuildings(ctx context.Context) ([]models.Building, error) {
	query := `
		SELECT id, canonical_address, display_name, community_id, municipality_id,
			area_id, listing_count, created_at, updated_at
		FROM buildings ORDER BY canonical_address`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buildings []models.Building
	for rows.Next() {
		var b models.Building
		if err := rows.Scan(
			&b.ID, &b.CanonicalAddress, &b.DisplayName, &b.CommunityID, &b.MunicipalityID,
			&b.AreaID, &b.ListingCount, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}
	return buildings, rows.Err()
}

// =============================================================================
// Geographic Hierarchy
// =============================================================================

func (s *PostgresStore) GetMunicipality(ctx context.Context, id uuid.UUID) (*models.Municipality, error) {
	query := `SELECT id, area_id, name, listing_count FROM municipalities WHERE id = $1`

	var m models.Municipality
	err := s.pool.QueryRow(ctx, query, id).Scan(&m.ID, &m.AreaID, &m.Name, &m.ListingCount)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) EnsureMunicipality(ctx context.Context, name string) (*models.Municipality, error) {
	query := `
		INSERT INTO municipalities (id, name, listing_count)
		VALUES ($1, $2, 0)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, area_id, name, listing_count`

	var m models.Municipality
	err := s.pool.QueryRow(ctx, query, uuid.New(), name).Scan(&m.ID, &m.AreaID, &m.Name, &m.ListingCount)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) EnsureCommunity(ctx context.Context, municipalityID uuid.UUID, name string) (*models.Community, error) {
	query := `
		INSERT INTO communities (id, municipality_id, name, listing_count)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (municipality_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, municipality_id, name, listing_count`

	var c models.Community
	err := s.pool.QueryRow(ctx, query, uuid.New(), municipalityID, name).Scan(&c.ID, &c.MunicipalityID, &c.Name, &c.ListingCount)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// =============================================================================
// Rollup Counts
// =============================================================================

func (s *PostgresStore) CountListingsByBuilding(ctx context.Context, id uuid.UUID) (int, error) {
	return s.countActive(ctx, `SELECT COUNT(*) FROM listings WHERE feed_status = $1 AND building_id = $2`, id)
}

func (s *PostgresStore) CountListingsByCommunity(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM listings l
		JOIN buildings b ON b.id = l.building_id
		WHERE l.feed_status = $1 AND b.community_id = $2`
	return s.countActive(ctx, query, id)
}

func (s *PostgresStore) CountListingsByMunicipality(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM listings l
		JOIN buildings b ON b.id = l.building_id
		WHERE l.feed_status = $1 AND b.municipality_id = $2`
	return s.countActive(ctx, query, id)
}

func (s *PostgresStore) CountListingsByArea(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM listings l
		JOIN buildings b ON b.id = l.building_id
		WHERE l.feed_status = $1 AND b.area_id = $2`
	return s.countActive(ctx, query, id)
}

func (s *PostgresStore) countActive(ctx context.Context, query string, id uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, query, models.FeedStatusActive, id).Scan(&count)
	return count, err
}

func (s *PostgresStore) SetBuildingListingCount(ctx context.Context, id uuid.UUID, count int) error {
	query := `UPDATE buildings SET listing_count = $2, updated_at = NOW() WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, count)
	return err
}

func (s *PostgresStore) SetCommunityListingCount(ctx context.Context, id uuid.UUID, count int) error {
	query := `UPDATE communities SET listing_count = $2 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, count)
	return err
}

func (s *PostgresStore) SetMunicipalityListingCount(ctx context.Context, id uuid.UUID, count int) error {
	query := `UPDATE municipalities SET listing_count = $2 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, count)
	return err
}

func (s *PostgresStore) SetAreaListingCount(ctx context.Context, id uuid.UUID, count int) error {
	query := `UPDATE areas SET listing_count = $2 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, count)
	return err
}

// =============================================================================
// Sync Runs
// =============================================================================

func (s *PostgresStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	query := `
		INSERT INTO sync_runs (scope, property_type, mode, triggered_by, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		run.Scope, run.PropertyType, run.Mode, run.TriggeredBy, run.Status, run.StartedAt,
	).Scan(&run.ID)
}

func (s *PostgresStore) SealSyncRun(ctx context.Context, run *models.SyncRun) error {
	query := `
		UPDATE sync_runs SET
			status = $2, found = $3, added = $4, updated = $5, removed = $6,
			unchanged = $7, skipped = $8, finished_at = $9, errors = $10
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.Status, run.Found, run.Added, run.Updated, run.Removed,
		run.Unchanged, run.Skipped, run.FinishedAt, run.Errors,
	)
	return err
}

func (s *PostgresStore) GetRunningRun(ctx context.Context, scope, propertyType string) (*models.SyncRun, error) {
	query := `
		SELECT id, scope, property_type, mode, triggered_by, status, found, added,
			updated, removed, unchanged, skipped, started_at, finished_at, errors
		FROM sync_runs
		WHERE scope = $1 AND property_type = $2 AND status = $3
		ORDER BY started_at DESC
		LIMIT 1`

	var run models.SyncRun
	err := s.pool.QueryRow(ctx, query, scope, propertyType, models.RunStatusRunning).Scan(
		&run.ID, &run.Scope, &run.PropertyType, &run.Mode, &run.TriggeredBy, &run.Status,
		&run.Found, &run.Added, &run.Updated, &run.Removed, &run.Unchanged, &run.Skipped,
		&run.StartedAt, &run.FinishedAt, &run.Errors,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *PostgresStore) LastSuccessfulRunStart(ctx context.Context, scope, propertyType string) (*time.Time, error) {
	query := `
		SELECT started_at FROM sync_runs
		WHERE scope = $1 AND property_type = $2 AND status = $3
		ORDER BY started_at DESC
		LIMIT 1`

	var startedAt time.Time
	err := s.pool.QueryRow(ctx, query, scope, propertyType, models.RunStatusCompleted).Scan(&startedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &startedAt, nil
}
