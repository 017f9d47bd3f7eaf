package sync

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tokomas/goldpos/internal/db"
	"github.com/tokomas/goldpos/internal/salesforce"
)

// fakeSF is a minimal Salesforce stand-in: it serves the token endpoint and
// whatever data handlers a test registers on mux.
type fakeSF struct {
	srv        *httptest.Server
	mux        *http.ServeMux
	tokenCalls int32
}

func newFakeSF(t *testing.T) *fakeSF {
	t.Helper()
	f := &fakeSF{mux: http.NewServeMux()}
	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)

	f.mux.HandleFunc("/services/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok",
			"instance_url": f.srv.URL,
			"token_type":   "Bearer",
		})
	})
	return f
}

func (f *fakeSF) api() *salesforce.API {
	tokens := salesforce.NewTokenManager(nil)
	tokens.SetCredentials(salesforce.Credentials{
		ClientID:     "id",
		ClientSecret: "secret",
		Username:     "user@example.com",
		Password:     "pw",
		LoginURL:     f.srv.URL,
	})
	return salesforce.NewAPI(salesforce.NewClient(tokens, nil))
}

// handleQuery registers a SOQL handler that answers each query with a single
// done page of the given records.
func (f *fakeSF) handleQuery(t *testing.T, answer func(soql string) []interface{}) {
	t.Helper()
	f.mux.HandleFunc("/services/data/"+salesforce.APIVersion+"/query", func(w http.ResponseWriter, r *http.Request) {
		records := answer(r.URL.Query().Get("q"))
		raw := make([]json.RawMessage, len(records))
		for i, rec := range records {
			b, err := json.Marshal(rec)
			require.NoError(t, err)
			raw[i] = b
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"totalSize": len(raw),
			"done":      true,
			"records":   raw,
		})
	})
}

// handleUpsert registers a PATCH upsert handler for one sobject/extField
// pair that assigns sequential ids.
func (f *fakeSF) handleUpsert(sobject, extField, idPrefix string) *int32 {
	var calls int32
	prefix := "/services/data/" + salesforce.APIVersion + "/sobjects/" + sobject + "/" + extField + "/"
	f.mux.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      fmt.Sprintf("%s%03d", idPrefix, n),
			"success": true,
			"created": true,
		})
	})
	return &calls
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Seed(conn))
	return conn
}

func mustExec(t *testing.T, conn *sql.DB, query string, args ...interface{}) {
	t.Helper()
	_, err := conn.Exec(query, args...)
	require.NoError(t, err)
}
