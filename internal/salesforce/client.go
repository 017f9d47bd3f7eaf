package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// APIVersion is the Salesforce REST API version all requests target.
	APIVersion = "v59.0"

	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
	defaultRetryAfter = 5 * time.Second
)

// Client is a Salesforce REST client with automatic token refresh, rate
// limit handling and retries. Safe for concurrent use.
type Client struct {
	tokens     *TokenManager
	httpClient *http.Client
	logger     *logrus.Logger
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a REST client on top of the given token manager.
func NewClient(tokens *TokenManager, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
}

// Tokens exposes the underlying token manager.
func (c *Client) Tokens() *TokenManager { return c.tokens }

// dataPath builds a /services/data path for the configured API version.
func dataPath(format string, args ...interface{}) string {
	return fmt.Sprintf("/services/data/"+APIVersion+format, args...)
}

// request performs one HTTP call with the full retry policy and decodes a
// JSON response into out (out may be nil; 204 and empty bodies leave it
// untouched). The endpoint must be instance-relative ("/services/...").
func (c *Client) request(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		token, instanceURL, err := c.tokens.GetToken(ctx)
		if err != nil {
			return err
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(instanceURL, "/")+endpoint, reqBody)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &Error{Kind: ErrKindNetwork, Message: fmt.Sprintf("%s %s failed", method, endpoint), Err: err}
			c.sleep(ctx, c.retryDelay*time.Duration(attempt+1))
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = &Error{Kind: ErrKindNetwork, Message: "failed to read response body", Err: readErr}
			c.sleep(ctx, c.retryDelay*time.Duration(attempt+1))
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp)
			c.logger.WithFields(logrus.Fields{
				"endpoint":    endpoint,
				"retry_after": wait,
			}).Warn("Salesforce rate limit hit, backing off")
			lastErr = &Error{Kind: ErrKindAPI, StatusCode: resp.StatusCode, Message: "rate limited"}
			c.sleep(ctx, wait)
			continue

		case resp.StatusCode == http.StatusUnauthorized:
			c.logger.WithField("endpoint", endpoint).Debug("Salesforce session expired, refreshing token")
			if _, _, err := c.tokens.RefreshToken(ctx); err != nil {
				return err
			}
			lastErr = &Error{Kind: ErrKindAuth, StatusCode: resp.StatusCode, Message: "session expired"}
			continue

		case resp.StatusCode >= 500:
			lastErr = &Error{
				Kind:       ErrKindAPI,
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("server error on %s %s", method, endpoint),
			}
			c.sleep(ctx, c.retryDelay*time.Duration(attempt+1))
			continue

		case resp.StatusCode >= 400:
			return apiError(resp.StatusCode, respBody)
		}

		// Success. 204 and empty bodies carry no payload.
		if out == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return &Error{Kind: ErrKindParse, Message: "failed to decode response", Err: err}
		}
		return nil
	}

	return lastErr
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

func apiError(status int, body []byte) error {
	var apiErrs []APIError
	if json.Unmarshal(body, &apiErrs) == nil && len(apiErrs) > 0 {
		return &Error{Kind: ErrKindAPI, StatusCode: status, Message: "request failed", APIErrors: apiErrs}
	}
	return &Error{
		Kind:       ErrKindAPI,
		StatusCode: status,
		Message:    fmt.Sprintf("request failed with status %d: %s", status, strings.TrimSpace(string(body))),
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Get performs a GET against an instance-relative endpoint.
func (c *Client) Get(ctx context.Context, endpoint string, out interface{}) error {
	return c.request(ctx, http.MethodGet, endpoint, nil, out)
}

// Post performs a POST with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body, out interface{}) error {
	return c.request(ctx, http.MethodPost, endpoint, body, out)
}

// Patch performs a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, endpoint string, body, out interface{}) error {
	return c.request(ctx, http.MethodPatch, endpoint, body, out)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string) error {
	return c.request(ctx, http.MethodDelete, endpoint, nil, nil)
}

// QueryResponse is one page of SOQL query results.
type QueryResponse struct {
	TotalSize      int               `json:"totalSize"`
	Done           bool              `json:"done"`
	NextRecordsURL string            `json:"nextRecordsUrl"`
	Records        []json.RawMessage `json:"records"`
}

// Query runs a SOQL query and returns the first page of results.
func (c *Client) Query(ctx context.Context, soql string) (*QueryResponse, error) {
	endpoint := dataPath("/query?q=%s", url.QueryEscape(soql))
	var qr QueryResponse
	if err := c.Get(ctx, endpoint, &qr); err != nil {
		return nil, err
	}
	return &qr, nil
}

// QueryMore fetches the next page of a paginated query result.
func (c *Client) QueryMore(ctx context.Context, nextRecordsURL string) (*QueryResponse, error) {
	var qr QueryResponse
	if err := c.Get(ctx, nextRecordsURL, &qr); err != nil {
		return nil, err
	}
	return &qr, nil
}

// QueryAll runs a SOQL query, follows nextRecordsUrl pagination to the end,
// and decodes every record into T.
func QueryAll[T any](ctx context.Context, c *Client, soql string) ([]T, error) {
	page, err := c.Query(ctx, soql)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, page.TotalSize)
	for {
		for _, raw := range page.Records {
			var rec T
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, &Error{Kind: ErrKindParse, Message: "failed to decode query record", Err: err}
			}
			out = append(out, rec)
		}
		if page.Done || page.NextRecordsURL == "" {
			break
		}
		page, err = c.QueryMore(ctx, page.NextRecordsURL)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SaveResult is the response body of create and upsert calls.
type SaveResult struct {
	ID      string     `json:"id"`
	Success bool       `json:"success"`
	Created bool       `json:"created"`
	Errors  []APIError `json:"errors"`
}

// Create inserts a new record and returns its id.
func (c *Client) Create(ctx context.Context, sobject string, record interface{}) (string, error) {
	var res SaveResult
	if err := c.Post(ctx, dataPath("/sobjects/%s", sobject), record, &res); err != nil {
		return "", err
	}
	if !res.Success && len(res.Errors) > 0 {
		return "", &Error{Kind: ErrKindAPI, Message: "create failed", APIErrors: res.Errors}
	}
	return res.ID, nil
}

// Upsert creates or updates a record identified by an external id field.
// Returns the record id when Salesforce reports one (created rows and
// updated rows on recent API versions; empty for a bare 204).
func (c *Client) Upsert(ctx context.Context, sobject, extField, extValue string, record interface{}) (string, error) {
	endpoint := dataPath("/sobjects/%s/%s/%s", sobject, extField, url.PathEscape(extValue))
	var res SaveResult
	if err := c.Patch(ctx, endpoint, record, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

// Update modifies an existing record by id.
func (c *Client) Update(ctx context.Context, sobject, id string, record interface{}) error {
	return c.Patch(ctx, dataPath("/sobjects/%s/%s", sobject, id), record, nil)
}

// DeleteRecord removes a record by id.
func (c *Client) DeleteRecord(ctx context.Context, sobject, id string) error {
	return c.Delete(ctx, dataPath("/sobjects/%s/%s", sobject, id))
}

// compositeLimit is the Salesforce maximum number of subrequests per
// composite call.
const compositeLimit = 25

// CompositeSubrequest is a single operation within a composite request.
type CompositeSubrequest struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	ReferenceID string      `json:"referenceId"`
	Body        interface{} `json:"body,omitempty"`
}

type compositeRequest struct {
	AllOrNone        bool                  `json:"allOrNone"`
	CompositeRequest []CompositeSubrequest `json:"compositeRequest"`
}

// CompositeSubresponse is the result of a single composite subrequest.
type CompositeSubresponse struct {
	Body           json.RawMessage `json:"body"`
	HTTPStatusCode int             `json:"httpStatusCode"`
	ReferenceID    string          `json:"referenceId"`
}

type compositeResponse struct {
	CompositeResponse []CompositeSubresponse `json:"compositeResponse"`
}

// Composite executes up to 25 subrequests in a single round trip with
// allOrNone=false, so each subrequest succeeds or fails independently.
func (c *Client) Composite(ctx context.Context, subrequests []CompositeSubrequest) ([]CompositeSubresponse, error) {
	if len(subrequests) == 0 {
		return nil, nil
	}
	if len(subrequests) > compositeLimit {
		return nil, fmt.Errorf("composite request exceeds %d subrequests", compositeLimit)
	}
	var resp compositeResponse
	req := compositeRequest{AllOrNone: false, CompositeRequest: subrequests}
	if err := c.Post(ctx, dataPath("/composite"), req, &resp); err != nil {
		return nil, err
	}
	return resp.CompositeResponse, nil
}

// BatchRecord is one record in a batched upsert, keyed by its external id.
type BatchRecord struct {
	ExternalID string
	Fields     map[string]interface{}
}

// BatchResult is the per-record outcome of a batched upsert.
type BatchResult struct {
	ExternalID string
	Success    bool
	ID         string
	Err        error
}

// BatchUpsert upserts records by external id in composite windows of 25.
// A failed window fails only the records in that window; individual
// subrequest failures fail only their record.
func (c *Client) BatchUpsert(ctx context.Context, sobject, extField string, records []BatchRecord) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(records))

	for start := 0; start < len(records); start += compositeLimit {
		end := start + compositeLimit
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		subrequests := make([]CompositeSubrequest, len(chunk))
		for i, rec := range chunk {
			subrequests[i] = CompositeSubrequest{
				Method:      http.MethodPatch,
				URL:         dataPath("/sobjects/%s/%s/%s", sobject, extField, url.PathEscape(rec.ExternalID)),
				ReferenceID: fmt.Sprintf("ref%d", i),
				Body:        rec.Fields,
			}
		}

		responses, err := c.Composite(ctx, subrequests)
		if err != nil {
			for _, rec := range chunk {
				results = append(results, BatchResult{ExternalID: rec.ExternalID, Err: err})
			}
			continue
		}

		byRef := make(map[string]CompositeSubresponse, len(responses))
		for _, r := range responses {
			byRef[r.ReferenceID] = r
		}
		for i, rec := range chunk {
			sub, ok := byRef[fmt.Sprintf("ref%d", i)]
			if !ok {
				results = append(results, BatchResult{
					ExternalID: rec.ExternalID,
					Err:        fmt.Errorf("missing composite subresponse for %s", rec.ExternalID),
				})
				continue
			}
			res := BatchResult{ExternalID: rec.ExternalID}
			if sub.HTTPStatusCode >= 200 && sub.HTTPStatusCode < 300 {
				res.Success = true
				var save SaveResult
				if len(sub.Body) > 0 && json.Unmarshal(sub.Body, &save) == nil {
					res.ID = save.ID
				}
			} else {
				res.Err = apiError(sub.HTTPStatusCode, sub.Body)
			}
			results = append(results, res)
		}
	}

	return results, nil
}

