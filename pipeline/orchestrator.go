package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"condosync/address"
	"condosync/config"
	"condosync/models"
	"condosync/provider"
	"condosync/services"
	"condosync/storage"
)

// Orchestrator drives one sync pass end to end: fetch, enrich, reconcile,
// rollup, seal the audit row. Fleet runs walk the configured property types
// sequentially with a delay between them.
type Orchestrator struct {
	cfg        *config.Config
	store      services.Store
	ops        *storage.SQLiteStore
	client     *provider.Client
	enricher   *provider.Enricher
	reconciler *services.Reconciler
	aggregator *services.Aggregator
	runs       *services.RunRecorder

	// Flipped by the command poller, read by the schedule goroutines.
	paused atomic.Bool
}

func NewOrchestrator(
	cfg *config.Config,
	store services.Store,
	ops *storage.SQLiteStore,
	client *provider.Client,
	enricher *provider.Enricher,
	reconciler *services.Reconciler,
	aggregator *services.Aggregator,
	runs *services.RunRecorder,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		ops:        ops,
		client:     client,
		enricher:   enricher,
		reconciler: reconciler,
		aggregator: aggregator,
		runs:       runs,
	}
}

// RunAll syncs every configured property type in sequence. A failed type
// does not stop the fleet; its error lands in its own run row.
func (o *Orchestrator) RunAll(ctx context.Context, triggeredBy string) error {
	if o.paused.Load() {
		log.Println("Sync is paused, skipping run")
		return nil
	}

	for i, pt := range o.cfg.Provider.PropertyTypes {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.cfg.Sync.FleetDelay):
			}
		}
		if err := o.RunPropertyType(ctx, pt, "", triggeredBy); err != nil {
			log.Printf("Error syncing property type %s: %v", pt, err)
		}
	}

	return nil
}

// RunPropertyType syncs one property type across all buildings. An empty
// mode auto-selects: incremental when a prior successful run exists for the
// scope, full otherwise.
func (o *Orchestrator) RunPropertyType(ctx context.Context, propertyType, modeStr, triggeredBy string) error {
	mode, since, err := o.resolveMode(ctx, models.ScopeAll, propertyType, modeStr)
	if err != nil {
		return err
	}

	run, err := o.runs.Begin(ctx, models.ScopeAll, propertyType, mode, triggeredBy)
	if err != nil {
		if errors.Is(err, services.ErrRunActive) {
			log.Printf("Sync already running for %s/%s, skipping", models.ScopeAll, propertyType)
			return nil
		}
		return err
	}

	o.logRun(run.ID, "info", fmt.Sprintf("Starting %s sync for %s", mode, propertyType), models.ScopeAll)

	filter := provider.Filter{PropertyType: propertyType, ModifiedSince: since}
	records, fetchErr := o.client.FetchListings(ctx, filter)

	reconcileMode := mode
	if fetchErr != nil {
		// A truncated fetch is not a complete snapshot. Keep the partial
		// set but skip the removal pass so surviving listings are not
		// retired on bad evidence.
		log.Printf("Warning: fetch incomplete for %s: %v", propertyType, fetchErr)
		reconcileMode = models.SyncModeIncremental
	}

	res, err := o.reconcileAndRollup(ctx, services.ListingScope{PropertyType: propertyType}, reconcileMode, records)

	runErr := foldFetchError(models.ScopeAll, res, err, fetchErr)
	if sealErr := o.runs.Seal(ctx, run, res, runErr); sealErr != nil {
		log.Printf("Error sealing run %d: %v", run.ID, sealErr)
	}

	if res != nil {
		o.logRun(run.ID, "info", fmt.Sprintf(
			"Completed %s/%s: %d found, %d added, %d updated, %d removed, %d unchanged, %d skipped",
			models.ScopeAll, propertyType, res.Found, res.Added, res.Updated, res.Removed, res.Unchanged, res.Skipped,
		), models.ScopeAll)
	}

	return runErr
}

// RunBuilding syncs a single building. The provider cannot filter on our
// canonical form, so the fetch uses the house-number prefix and the results
// are narrowed locally by address match.
func (o *Orchestrator) RunBuilding(ctx context.Context, buildingRef, modeStr, triggeredBy string) error {
	building, err := o.lookupBuilding(ctx, buildingRef)
	if err != nil {
		return err
	}
	if building == nil {
		return fmt.Errorf("unknown building: %s", buildingRef)
	}

	scopeName := building.ID.String()
	mode, since, err := o.resolveMode(ctx, scopeName, "", modeStr)
	if err != nil {
		return err
	}

	run, err := o.runs.Begin(ctx, scopeName, "", mode, triggeredBy)
	if err != nil {
		if errors.Is(err, services.ErrRunActive) {
			log.Printf("Sync already running for building %s, skipping", scopeName)
			return nil
		}
		return err
	}

	o.logRun(run.ID, "info", fmt.Sprintf("Starting %s sync for building %s", mode, building.CanonicalAddress), scopeName)

	filter := provider.Filter{AddressPrefix: houseNumberPrefix(building.CanonicalAddress), ModifiedSince: since}
	records, fetchErr := o.client.FetchListings(ctx, filter)

	// Narrow the prefix fetch down to this building's address.
	matched := records[:0]
	for _, rec := range records {
		if address.SameBuilding(rec.UnparsedAddress, building.CanonicalAddress) {
			matched = append(matched, rec)
		}
	}

	reconcileMode := mode
	if fetchErr != nil {
		log.Printf("Warning: fetch incomplete for building %s: %v", scopeName, fetchErr)
		reconcileMode = models.SyncModeIncremental
	}

	res, err := o.reconcileAndRollup(ctx, services.ListingScope{BuildingID: &building.ID}, reconcileMode, matched)

	runErr := foldFetchError(scopeName, res, err, fetchErr)
	if sealErr := o.runs.Seal(ctx, run, res, runErr); sealErr != nil {
		log.Printf("Error sealing run %d: %v", run.ID, sealErr)
	}

	return runErr
}

// foldFetchError decides how a truncated fetch lands on the audit row. When
// the run still applied usable results the fetch failure is recorded on the
// result so the row seals partial; only a fetch that yielded nothing usable
// fails the run outright. A reconcile error always fails the run.
func foldFetchError(scope string, res *services.ReconcileResult, reconcileErr, fetchErr error) error {
	if reconcileErr != nil {
		return reconcileErr
	}
	if fetchErr == nil {
		return nil
	}
	if res == nil || res.Found == 0 {
		return fetchErr
	}
	res.Errors = append(res.Errors, models.RunError{
		Scope:   scope,
		Stage:   "fetch",
		Message: fetchErr.Error(),
	})
	return nil
}

func (o *Orchestrator) reconcileAndRollup(ctx context.Context, scope services.ListingScope, mode models.SyncMode, records []provider.PropertyRecord) (*services.ReconcileResult, error) {
	enriched := o.enricher.EnrichAll(ctx, records)

	res, err := o.reconciler.Reconcile(ctx, scope, mode, enriched)
	if err != nil {
		return res, err
	}

	if err := o.aggregator.RecomputeForBuildings(ctx, res.TouchedBuildings); err != nil {
		return res, fmt.Errorf("rollup: %w", err)
	}
	return res, nil
}

// resolveMode picks full vs incremental and, for incremental, computes the
// modification-timestamp lower bound.
func (o *Orchestrator) resolveMode(ctx context.Context, scope, propertyType, modeStr string) (models.SyncMode, *time.Time, error) {
	switch modeStr {
	case string(models.SyncModeFull):
		return models.SyncModeFull, nil, nil
	case string(models.SyncModeIncremental), "":
		since, err := o.runs.IncrementalSince(ctx, scope, propertyType, o.cfg.Sync.IncrementalOverlap)
		if err != nil {
			return "", nil, err
		}
		if since == nil {
			// Nothing to be incremental against.
			return models.SyncModeFull, nil, nil
		}
		return models.SyncModeIncremental, since, nil
	default:
		return "", nil, fmt.Errorf("unknown sync mode: %s", modeStr)
	}
}

func (o *Orchestrator) lookupBuilding(ctx context.Context, ref string) (*models.Building, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return o.store.GetBuilding(ctx, id)
	}
	canonical := address.StripUnit(address.Canonical(ref))
	return o.store.GetBuildingByCanonicalAddress(ctx, canonical)
}

// HandleCommand dispatches one operator command from the queue.
func (o *Orchestrator) HandleCommand(cmd *models.Command) error {
	params, err := o.ops.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	switch cmd.Command {
	case models.CmdSyncNow:
		if params.PropertyType != "" {
			return o.RunPropertyType(ctx, params.PropertyType, params.Mode, "command")
		}
		return o.RunAll(ctx, "command")
	case models.CmdSyncBuilding:
		if params.Building == "" {
			return fmt.Errorf("sync_building command missing building")
		}
		return o.RunBuilding(ctx, params.Building, params.Mode, "command")
	case models.CmdPause:
		o.paused.Store(true)
		log.Println("Sync paused")
	case models.CmdResume:
		o.paused.Store(false)
		log.Println("Sync resumed")
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused.Load()
}

func (o *Orchestrator) logRun(runID int64, level, message, scope string) {
	log.Printf("[%s] %s: %s", level, scope, message)
	if o.ops != nil {
		o.ops.Log(&runID, level, message, scope)
	}
}

// houseNumberPrefix returns the leading street-number token ("88 scott st"
// -> "88 "), broad enough for the upstream prefix filter.
func houseNumberPrefix(canonical string) string {
	for i, r := range canonical {
		if r == ' ' {
			return canonical[:i+1]
		}
	}
	return canonical
}
