package sync

import (
	"context"
	"database/sql"
	"errors"
	stdsync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tokomas/goldpos/internal/metrics"
	"github.com/tokomas/goldpos/internal/models"
	"github.com/tokomas/goldpos/internal/salesforce"
)

var (
	// ErrSyncInProgress is returned when a sync run is requested while
	// another one holds the gate.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrMissingCredentials is returned by Configure when the connected app
	// client id or secret is absent.
	ErrMissingCredentials = errors.New("salesforce client id and secret are required")
)

// Engine ties the token manager, REST client, journal and both coordinators
// together and enforces the at-most-one-sync invariant.
type Engine struct {
	db      *sql.DB
	tokens  *salesforce.TokenManager
	api     *salesforce.API
	tracker *Tracker
	pusher  *Pusher
	puller  *Puller
	logger  *logrus.Logger

	mu        stdsync.Mutex
	syncing   bool
	lastError *string
	applied   salesforce.Credentials
}

// NewEngine wires up a sync engine over the given database.
func NewEngine(db *sql.DB, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	tokens := salesforce.NewTokenManager(logger)
	api := salesforce.NewAPI(salesforce.NewClient(tokens, logger))
	tracker := NewTracker(db, logger)
	return &Engine{
		db:      db,
		tokens:  tokens,
		api:     api,
		tracker: tracker,
		pusher:  NewPusher(db, api, tracker, logger),
		puller:  NewPuller(db, api, logger),
		logger:  logger,
	}
}

// Tracker returns the change journal for business writers.
func (e *Engine) Tracker() *Tracker { return e.tracker }

// Configure validates the stored sync configuration and installs credentials
// into the token manager. The login host follows the sandbox flag; an
// explicitly stored instance URL takes precedence, since instance hosts serve
// the token endpoint too. Reapplying an unchanged configuration is a no-op so
// scheduled runs keep the cached token.
func (e *Engine) Configure(cfg *models.SyncConfig) error {
	if cfg.SfClientID == nil || *cfg.SfClientID == "" ||
		cfg.SfClientSecret == nil || *cfg.SfClientSecret == "" {
		return ErrMissingCredentials
	}

	creds := salesforce.Credentials{
		ClientID:     *cfg.SfClientID,
		ClientSecret: *cfg.SfClientSecret,
		LoginURL:     salesforce.LoginURLFor(cfg.IsSandbox),
	}
	if cfg.SfUsername != nil {
		creds.Username = *cfg.SfUsername
	}
	if cfg.SfPassword != nil {
		creds.Password = *cfg.SfPassword
	}
	if cfg.SfSecurityToken != nil {
		creds.SecurityToken = *cfg.SfSecurityToken
	}
	if cfg.SfInstanceURL != nil && *cfg.SfInstanceURL != "" {
		creds.LoginURL = *cfg.SfInstanceURL
	}

	e.mu.Lock()
	unchanged := creds == e.applied && e.tokens.HasCredentials()
	e.applied = creds
	e.mu.Unlock()
	if unchanged {
		return nil
	}

	e.tokens.SetCredentials(creds)
	e.logger.WithField("sandbox", cfg.IsSandbox).Info("Sync engine configured")
	return nil
}

// TestConnection authenticates against the configured org.
func (e *Engine) TestConnection(ctx context.Context) (string, error) {
	return e.tokens.TestConnection(ctx)
}

// GetStatus returns a snapshot of the engine state.
func (e *Engine) GetStatus() (*models.SyncStatus, error) {
	cfg, err := LoadConfig(e.db)
	if err != nil {
		return nil, err
	}

	pending, err := e.tracker.CountPending()
	if err != nil {
		return nil, err
	}
	metrics.PendingChanges.Set(float64(pending))

	var lastSyncAt *string
	if err := e.db.QueryRow(
		"SELECT MAX(last_pull_at) FROM sync_metadata",
	).Scan(&lastSyncAt); err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	e.mu.Lock()
	lastError := e.lastError
	e.mu.Unlock()

	return &models.SyncStatus{
		IsConnected:    e.tokens.HasCredentials(),
		SyncEnabled:    cfg.SyncEnabled,
		LastSyncAt:     lastSyncAt,
		PendingChanges: pending,
		ErrorMessage:   lastError,
	}, nil
}

// beginSync acquires the sync gate without blocking.
func (e *Engine) beginSync() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.syncing {
		return ErrSyncInProgress
	}
	e.syncing = true
	e.lastError = nil
	return nil
}

func (e *Engine) endSync(errs []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncing = false
	if len(errs) > 0 {
		msg := errs[0]
		e.lastError = &msg
	}
}

// RunFullSync pushes pending changes, pulls remote updates and prunes the
// journal. A concurrent call fails with ErrSyncInProgress without side
// effects.
func (e *Engine) RunFullSync(ctx context.Context) (*models.SyncResult, error) {
	if err := e.beginSync(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &models.SyncResult{}

	pushRes, err := e.pusher.PushAll(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	} else {
		result.RecordsPushed = pushRes.RecordsPushed
		result.Errors = append(result.Errors, pushRes.Errors...)
	}

	pullRes, err := e.puller.PullAll(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	} else {
		result.RecordsPulled = pullRes.RecordsPulled
		result.Errors = append(result.Errors, pullRes.Errors...)
	}

	if removed, err := e.tracker.CleanupOldRecords(); err == nil && removed > 0 {
		e.logger.WithField("removed", removed).Debug("Pruned old journal entries")
	}

	result.Success = len(result.Errors) == 0
	result.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	e.endSync(result.Errors)

	metrics.SyncDuration.Observe(time.Since(start).Seconds())
	metrics.RecordsPushed.Add(float64(result.RecordsPushed))
	metrics.RecordsPulled.Add(float64(result.RecordsPulled))
	metrics.SyncErrors.Add(float64(len(result.Errors)))
	if result.Success {
		metrics.SyncRuns.WithLabelValues("success").Inc()
	} else {
		metrics.SyncRuns.WithLabelValues("error").Inc()
	}

	e.logger.WithFields(logrus.Fields{
		"pushed":   result.RecordsPushed,
		"pulled":   result.RecordsPulled,
		"errors":   len(result.Errors),
		"duration": time.Since(start).String(),
	}).Info("Sync run completed")

	return result, nil
}

// PullGoldPrices runs the scoped gold price pull under the sync gate.
func (e *Engine) PullGoldPrices(ctx context.Context) (*models.SyncResult, error) {
	if err := e.beginSync(); err != nil {
		return nil, err
	}
	res, err := e.puller.PullGoldPrices(ctx)
	if err != nil {
		e.endSync([]string{err.Error()})
		return nil, err
	}
	e.endSync(res.Errors)
	metrics.RecordsPulled.Add(float64(res.RecordsPulled))
	return &models.SyncResult{
		Success:       len(res.Errors) == 0,
		RecordsPulled: res.RecordsPulled,
		Errors:        res.Errors,
		CompletedAt:   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// PullInventory runs the scoped inventory pull under the sync gate.
func (e *Engine) PullInventory(ctx context.Context, branchSfID string) (*models.SyncResult, error) {
	if err := e.beginSync(); err != nil {
		return nil, err
	}
	res, err := e.puller.PullInventory(ctx, branchSfID)
	if err != nil {
		e.endSync([]string{err.Error()})
		return nil, err
	}
	e.endSync(res.Errors)
	metrics.RecordsPulled.Add(float64(res.RecordsPulled))
	return &models.SyncResult{
		Success:       len(res.Errors) == 0,
		RecordsPulled: res.RecordsPulled,
		Errors:        res.Errors,
		CompletedAt:   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// StartBackgroundSync runs periodic full syncs until the context is
// canceled. Each tick re-reads the stored configuration, so interval and
// credential changes apply without a restart. A tick that finds the gate
// held fails fast and waits for the next one.
func (e *Engine) StartBackgroundSync(ctx context.Context) {
	go func() {
		interval := e.currentInterval()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		e.logger.WithField("interval", interval.String()).Info("Background sync started")

		for {
			select {
			case <-ctx.Done():
				e.logger.Info("Background sync stopped")
				return
			case <-ticker.C:
				e.tick(ctx)
				if next := e.currentInterval(); next != interval {
					interval = next
					ticker.Reset(interval)
					e.logger.WithField("interval", interval.String()).Info("Sync interval updated")
				}
			}
		}
	}()
}

func (e *Engine) tick(ctx context.Context) {
	cfg, err := LoadConfig(e.db)
	if err != nil {
		e.logger.WithError(err).Error("Failed to load sync config")
		return
	}
	if !cfg.SyncEnabled {
		return
	}
	if err := e.Configure(cfg); err != nil {
		e.logger.WithError(err).Warn("Skipping scheduled sync")
		return
	}
	if _, err := e.RunFullSync(ctx); err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			e.logger.Debug("Scheduled sync skipped, previous run still active")
			return
		}
		e.logger.WithError(err).Error("Scheduled sync failed")
	}
}

func (e *Engine) currentInterval() time.Duration {
	cfg, err := LoadConfig(e.db)
	if err != nil || cfg.SyncIntervalMinutes < 1 {
		return 30 * time.Minute
	}
	return time.Duration(cfg.SyncIntervalMinutes) * time.Minute
}
