package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtualpaper/console/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL + "/api/v1/", Timeout: 5 * time.Second}, StaticToken("secret-token"))
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:8000/api/v1/"}, nil)

	assert.Equal(t, DefaultTimeout, c.config.Timeout)
	assert.Equal(t, int64(DefaultMaxBodySize), c.config.MaxBodySize)
	assert.Equal(t, "http://localhost:8000/api/v1", c.config.BaseURL)
	assert.Equal(t, "processing/rules", c.resourcePath(domain.ResourceRules))
	assert.Equal(t, "tags", c.resourcePath("tags"))

	c = New(Config{Resources: map[string]string{domain.ResourceRules: "rules"}}, nil)
	assert.Equal(t, "rules", c.resourcePath(domain.ResourceRules))
	assert.Equal(t, "documents", c.resourcePath(domain.ResourceDocuments))
}

func TestGet_SendsBearerTokenAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/processing/rules/12", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 12, "name": "Receipts", "mode": "match_any", "triggers": ["document-create"], "conditions": [], "actions": []}`))
	})

	var rule domain.Rule
	require.NoError(t, c.Get(context.Background(), domain.ResourceRules, "12", &rule))
	assert.Equal(t, 12, rule.ID)
	assert.Equal(t, "Receipts", rule.Name)
	assert.Equal(t, domain.MatchAny, rule.Mode)
}

func TestGetList_QueryAndContentRange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "25", q.Get("page_size"))
		assert.Equal(t, "name", q.Get("sort"))
		assert.Equal(t, "DESC", q.Get("order"))
		assert.JSONEq(t, `{"q": "inv"}`, q.Get("filter"))

		w.Header().Set("Content-Range", "rules 25-49/319")
		w.Write([]byte(`[{"id": 1, "name": "a"}, {"id": 2, "name": "b"}]`))
	})

	var rules []domain.Rule
	total, err := c.GetList(context.Background(), domain.ResourceRules, domain.ListParams{
		Pagination: domain.Pagination{Page: 2, PerPage: 25},
		Sort:       domain.Sort{Field: "name", Order: "desc"},
		Filter:     map[string]any{"q": "inv"},
	}, &rules)

	require.NoError(t, err)
	assert.Equal(t, 319, total)
	assert.Len(t, rules, 2)
}

func TestGetList_TotalCountFallbackAndMissingHeader(t *testing.T) {
	withHeader := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Total-Count", "7")
		w.Write([]byte(`[]`))
	})
	total, err := withHeader.GetList(context.Background(), domain.ResourceRules, domain.ListParams{}, &[]domain.Rule{})
	require.NoError(t, err)
	assert.Equal(t, 7, total)

	without := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	_, err = without.GetList(context.Background(), domain.ResourceRules, domain.ListParams{}, &[]domain.Rule{})
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrUpstream, appErr.Code)
}

func TestGetManyReference_AddsTargetFilter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/documents", r.URL.Path)
		assert.JSONEq(t, `{"rule_id": "4", "q": "x"}`, r.URL.Query().Get("filter"))
		w.Header().Set("Content-Range", "documents 0-0/1")
		w.Write([]byte(`[{"id": "doc-1", "name": "Invoice"}]`))
	})

	var docs []domain.Document
	total, err := c.GetManyReference(context.Background(), domain.ResourceDocuments, domain.ReferenceParams{
		Target: "rule_id",
		ID:     "4",
		Filter: map[string]any{"q": "x"},
	}, &docs)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "doc-1", docs[0].ID)
}

func TestCreateUpdateDelete(t *testing.T) {
	var methods []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		if r.Method != http.MethodDelete {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), `"name":"Receipts"`)
		}
		w.Write([]byte(`{"id": 3, "name": "Receipts"}`))
	})

	ctx := context.Background()
	dto := domain.NormalizeForSubmit(domain.Rule{Name: "Receipts"})

	var created domain.Rule
	require.NoError(t, c.Create(ctx, domain.ResourceRules, dto, &created))
	assert.Equal(t, 3, created.ID)
	require.NoError(t, c.Update(ctx, domain.ResourceRules, "3", dto, nil))
	require.NoError(t, c.Delete(ctx, domain.ResourceRules, "3", nil))

	assert.Equal(t, []string{
		"POST /api/v1/processing/rules",
		"PUT /api/v1/processing/rules/3",
		"DELETE /api/v1/processing/rules/3",
	}, methods)
}

func TestErrorFieldIsSurfacedVerbatim(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"Error": "condition 2: invalid date format 'yyyy'"}`))
	})

	err := c.Update(context.Background(), domain.ResourceRules, "3", map[string]string{}, nil)
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrUpstream, appErr.Code)
	assert.Equal(t, "condition 2: invalid date format 'yyyy'", appErr.Message)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusInternalServerError, domain.ErrUpstream},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		err := c.Get(context.Background(), domain.ResourceDocuments, "x", nil)
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, tt.code, appErr.Code)
		assert.Equal(t, http.StatusText(tt.status), appErr.Message)
	}
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := New(Config{BaseURL: server.URL}, nil)
	err := c.Get(context.Background(), domain.ResourceRules, "1", nil)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrNetwork, appErr.Code)
}

func TestTestRuleAndReorder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		switch r.URL.Path {
		case "/api/v1/processing/rules/5/test":
			var req domain.TestRuleRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "doc-9", req.DocumentID)
			w.Write([]byte(`{"rule_id": 5, "matched": true, "took_ms": 3, "log": "ok",
				"conditions": [{"condition_id": 1, "condition_type": "name_is", "matched": true, "skipped": false}],
				"actions": [{"action_id": 2, "action_type": "name_set", "skipped": false}],
				"condition_output": [["matched"]], "action_output": [["renamed"]]}`))
		case "/api/v1/processing/rules/reorder":
			var body map[string][]int
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []int{3, 1, 2}, body["ids"])
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	result, err := c.TestRule(context.Background(), 5, domain.TestRuleRequest{DocumentID: "doc-9"})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, int64(3), result.TookMs)
	assert.Equal(t, [][]string{{"matched"}}, result.ConditionOutput)

	require.NoError(t, c.ReorderRules(context.Background(), []int{3, 1, 2}))
}

func TestHealthCheck(t *testing.T) {
	healthy := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/version", r.URL.Path)
		w.Write([]byte(`{"version": "0.5"}`))
	})
	assert.Equal(t, domain.HealthStatusHealthy, healthy.HealthCheck(context.Background()).Status)

	broken := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	status := broken.HealthCheck(context.Background())
	assert.Equal(t, domain.HealthStatusUnhealthy, status.Status)
	assert.Contains(t, status.Details, "error")
}

func TestTotalFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Range", "rules 0-9/*")
	_, err := totalFromHeader(h)
	assert.Error(t, err)

	h.Set("Content-Range", "0-9/10")
	total, err := totalFromHeader(h)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
}
