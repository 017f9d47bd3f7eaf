package sync

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokomas/goldpos/internal/models"
)

func strptr(s string) *string { return &s }

func TestEngineConfigureRequiresClientCredentials(t *testing.T) {
	conn := newTestDB(t)
	engine := NewEngine(conn, nil)

	err := engine.Configure(&models.SyncConfig{})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	err = engine.Configure(&models.SyncConfig{SfClientID: strptr("id")})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	err = engine.Configure(&models.SyncConfig{
		SfClientID:     strptr("id"),
		SfClientSecret: strptr("secret"),
		SfUsername:     strptr("user@example.com"),
	})
	require.NoError(t, err)
}

func TestEngineSyncGateRejectsConcurrentRuns(t *testing.T) {
	conn := newTestDB(t)
	engine := NewEngine(conn, nil)

	require.NoError(t, engine.beginSync())

	_, err := engine.RunFullSync(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
	_, err = engine.PullGoldPrices(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)

	engine.endSync(nil)
}

func TestEngineGetStatusReflectsJournalAndConfig(t *testing.T) {
	conn := newTestDB(t)
	engine := NewEngine(conn, nil)

	status, err := engine.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.IsConnected)
	assert.False(t, status.SyncEnabled)
	assert.Zero(t, status.PendingChanges)
	assert.Nil(t, status.LastSyncAt)

	require.NoError(t, engine.Tracker().LogChange("products", "prod-1", "insert", nil))
	cfg, err := LoadConfig(conn)
	require.NoError(t, err)
	cfg.SyncEnabled = true
	require.NoError(t, SaveConfig(conn, cfg))

	status, err = engine.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.SyncEnabled)
	assert.Equal(t, 1, status.PendingChanges)
}

func TestEngineRunFullSyncEndToEnd(t *testing.T) {
	conn := newTestDB(t)
	sf := newFakeSF(t)
	engine := NewEngine(conn, nil)

	cfg, err := LoadConfig(conn)
	require.NoError(t, err)
	cfg.SfClientID = strptr("id")
	cfg.SfClientSecret = strptr("secret")
	cfg.SfUsername = strptr("user@example.com")
	cfg.SfPassword = strptr("pw")
	cfg.SfInstanceURL = strptr(sf.srv.URL)
	require.NoError(t, SaveConfig(conn, cfg))
	require.NoError(t, engine.Configure(cfg))

	mustExec(t, conn, `
		INSERT INTO products (id, category_id, sku, name, gold_type, gold_purity, weight_gram)
		VALUES ('prod-1', 'cat-1', 'RING-2G', 'Cincin', 'LM', 999, 2.0)
	`)
	require.NoError(t, engine.Tracker().LogChange("products", "prod-1", "insert", nil))

	sf.handleUpsert("Product__c", "SKU__c", "a02SF")
	sf.handleQuery(t, func(soql string) []interface{} { return nil })

	result, err := engine.RunFullSync(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.RecordsPushed)
	assert.Zero(t, result.RecordsPulled)
	assert.NotEmpty(t, result.CompletedAt)

	// Gate is released afterwards.
	status, err := engine.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.IsConnected)
	assert.Zero(t, status.PendingChanges)
	assert.NotNil(t, status.LastSyncAt)

	_, err = engine.RunFullSync(context.Background())
	require.NoError(t, err)
}

func TestEngineReconfigureKeepsCachedToken(t *testing.T) {
	conn := newTestDB(t)
	sf := newFakeSF(t)
	engine := NewEngine(conn, nil)

	cfg := &models.SyncConfig{
		SfClientID:     strptr("id"),
		SfClientSecret: strptr("secret"),
		SfUsername:     strptr("user@example.com"),
		SfPassword:     strptr("pw"),
		SfInstanceURL:  strptr(sf.srv.URL),
	}
	require.NoError(t, engine.Configure(cfg))
	sf.handleQuery(t, func(soql string) []interface{} { return nil })

	_, err := engine.RunFullSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&sf.tokenCalls))

	// Scheduled runs reapply the stored configuration; an unchanged one must
	// not drop the cached token.
	require.NoError(t, engine.Configure(cfg))
	_, err = engine.RunFullSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&sf.tokenCalls))

	// Changed credentials force a fresh grant.
	cfg.SfPassword = strptr("rotated")
	require.NoError(t, engine.Configure(cfg))
	_, err = engine.RunFullSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&sf.tokenCalls))
}

func TestEngineSyncFailureRecordsLastError(t *testing.T) {
	conn := newTestDB(t)
	sf := newFakeSF(t)
	engine := NewEngine(conn, nil)

	cfg := &models.SyncConfig{
		SfClientID:     strptr("id"),
		SfClientSecret: strptr("secret"),
		SfUsername:     strptr("user@example.com"),
		SfPassword:     strptr("pw"),
		SfInstanceURL:  strptr(sf.srv.URL),
	}
	require.NoError(t, engine.Configure(cfg))

	mustExec(t, conn, `
		INSERT INTO products (id, category_id, sku, name, gold_type, gold_purity, weight_gram)
		VALUES ('prod-1', 'cat-1', 'RING-2G', 'Cincin', 'LM', 999, 2.0)
	`)
	require.NoError(t, engine.Tracker().LogChange("products", "prod-1", "insert", nil))

	// No upsert handler: the push hits an unrouted path and fails.
	sf.handleQuery(t, func(soql string) []interface{} { return nil })

	result, err := engine.RunFullSync(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Errors)

	status, err := engine.GetStatus()
	require.NoError(t, err)
	require.NotNil(t, status.ErrorMessage)
}
