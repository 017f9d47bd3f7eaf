package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sfServer fakes a Salesforce instance: it serves the OAuth token endpoint
// and any data endpoints registered on mux. Tokens rotate per issue so
// refresh behavior is observable.
type sfServer struct {
	srv        *httptest.Server
	mux        *http.ServeMux
	tokenCalls int32
}

func newSFServer(t *testing.T) *sfServer {
	t.Helper()
	s := &sfServer{mux: http.NewServeMux()}
	s.srv = httptest.NewServer(s.mux)
	t.Cleanup(s.srv.Close)

	s.mux.HandleFunc("/services/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&s.tokenCalls, 1)
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": fmt.Sprintf("tok-%d", n),
			"instance_url": s.srv.URL,
			"token_type":   "Bearer",
		})
	})
	return s
}

func (s *sfServer) newClient() *Client {
	mgr := NewTokenManager(nil)
	mgr.SetCredentials(Credentials{
		ClientID:     "id",
		ClientSecret: "secret",
		Username:     "user@example.com",
		Password:     "pw",
		LoginURL:     s.srv.URL,
	})
	c := NewClient(mgr, nil)
	c.retryDelay = time.Millisecond
	return c
}

func TestClientQueryAllFollowsPagination(t *testing.T) {
	s := newSFServer(t)

	s.mux.HandleFunc("/services/data/"+APIVersion+"/query", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("q"), "SELECT Name FROM Product__c")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"totalSize":      3,
			"done":           false,
			"nextRecordsUrl": "/services/data/" + APIVersion + "/query/01g-2000",
			"records":        []map[string]string{{"Name": "Ring A"}, {"Name": "Ring B"}},
		})
	})
	s.mux.HandleFunc("/services/data/"+APIVersion+"/query/01g-2000", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"totalSize": 3,
			"done":      true,
			"records":   []map[string]string{{"Name": "Ring C"}},
		})
	})

	type rec struct {
		Name string `json:"Name"`
	}
	records, err := QueryAll[rec](context.Background(), s.newClient(), "SELECT Name FROM Product__c")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Ring C", records[2].Name)
}

func TestClientRetriesServerErrors(t *testing.T) {
	s := newSFServer(t)

	var calls int32
	s.mux.HandleFunc("/services/data/"+APIVersion+"/limits", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	})

	var out map[string]string
	err := s.newClient().Get(context.Background(), "/services/data/"+APIVersion+"/limits", &out)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "yes", out["ok"])
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	s := newSFServer(t)

	var calls int32
	s.mux.HandleFunc("/services/data/"+APIVersion+"/limits", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	err := s.newClient().Get(context.Background(), "/services/data/"+APIVersion+"/limits", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindAPI))
	// initial attempt + 3 retries
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestClientRefreshesTokenOn401(t *testing.T) {
	s := newSFServer(t)

	s.mux.HandleFunc("/services/data/"+APIVersion+"/limits", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	})

	c := s.newClient()
	var out map[string]string
	require.NoError(t, c.Get(context.Background(), "/services/data/"+APIVersion+"/limits", &out))
	assert.Equal(t, int32(2), atomic.LoadInt32(&s.tokenCalls))
}

func TestClientHonorsRetryAfter(t *testing.T) {
	s := newSFServer(t)

	var calls int32
	s.mux.HandleFunc("/services/data/"+APIVersion+"/limits", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	})

	start := time.Now()
	err := s.newClient().Get(context.Background(), "/services/data/"+APIVersion+"/limits", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientSurfacesStructuredAPIErrors(t *testing.T) {
	s := newSFServer(t)

	var calls int32
	s.mux.HandleFunc("/services/data/"+APIVersion+"/sobjects/Product__c", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"message": "Required fields are missing: [Name]", "errorCode": "REQUIRED_FIELD_MISSING", "fields": []string{"Name"}},
		})
	})

	_, err := s.newClient().Create(context.Background(), "Product__c", map[string]interface{}{})
	require.Error(t, err)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrKindAPI, se.Kind)
	require.Len(t, se.APIErrors, 1)
	assert.Equal(t, "REQUIRED_FIELD_MISSING", se.APIErrors[0].ErrorCode)
	// 4xx responses are not retried
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientUpsert(t *testing.T) {
	s := newSFServer(t)

	s.mux.HandleFunc("/services/data/"+APIVersion+"/sobjects/Product__c/SKU__c/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		switch r.URL.Path {
		case "/services/data/" + APIVersion + "/sobjects/Product__c/SKU__c/RING-001":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "a01SF001", "success": true, "created": true})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	c := s.newClient()

	id, err := c.Upsert(context.Background(), "Product__c", "SKU__c", "RING-001", map[string]interface{}{"Name": "Ring"})
	require.NoError(t, err)
	assert.Equal(t, "a01SF001", id)

	// Update path returns 204 without a body.
	id, err = c.Upsert(context.Background(), "Product__c", "SKU__c", "RING-002", map[string]interface{}{"Name": "Ring"})
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestClientBatchUpsertChunksAndReportsPerRecord(t *testing.T) {
	s := newSFServer(t)

	var batchSizes []int
	s.mux.HandleFunc("/services/data/"+APIVersion+"/composite", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AllOrNone        bool                  `json:"allOrNone"`
			CompositeRequest []CompositeSubrequest `json:"compositeRequest"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.AllOrNone)
		batchSizes = append(batchSizes, len(req.CompositeRequest))

		responses := make([]map[string]interface{}, len(req.CompositeRequest))
		for i, sub := range req.CompositeRequest {
			assert.Equal(t, http.MethodPatch, sub.Method)
			if sub.ReferenceID == "ref2" && len(req.CompositeRequest) == 5 {
				responses[i] = map[string]interface{}{
					"referenceId":    sub.ReferenceID,
					"httpStatusCode": 400,
					"body": []map[string]string{
						{"message": "bad barcode", "errorCode": "FIELD_INTEGRITY_EXCEPTION"},
					},
				}
				continue
			}
			responses[i] = map[string]interface{}{
				"referenceId":    sub.ReferenceID,
				"httpStatusCode": 200,
				"body":           map[string]interface{}{"id": fmt.Sprintf("inv-%s", sub.ReferenceID), "success": true},
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"compositeResponse": responses})
	})

	records := make([]BatchRecord, 30)
	for i := range records {
		records[i] = BatchRecord{
			ExternalID: fmt.Sprintf("EM-CN-%06d-0", i),
			Fields:     map[string]interface{}{"Status__c": "available"},
		}
	}

	results, err := s.newClient().BatchUpsert(context.Background(), "Inventory__c", "Barcode__c", records)
	require.NoError(t, err)
	require.Len(t, results, 30)
	assert.Equal(t, []int{25, 5}, batchSizes)

	// Record 27 maps to ref2 of the second window.
	failed := results[27]
	assert.False(t, failed.Success)
	require.Error(t, failed.Err)
	assert.Contains(t, failed.Err.Error(), "FIELD_INTEGRITY_EXCEPTION")

	ok := results[0]
	assert.True(t, ok.Success)
	assert.Equal(t, "inv-ref0", ok.ID)
}
