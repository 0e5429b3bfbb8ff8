package recordstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStoreListFollowsOffsetAndSendsFormula(t *testing.T) {
	var formulas []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pat", r.Header.Get("Authorization"))
		assert.Equal(t, "/v0/app1/Orders", r.URL.Path)
		formulas = append(formulas, r.URL.Query().Get("filterByFormula"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "" {
			_, _ = w.Write([]byte(`{"records":[{"id":"rec1","createdTime":"2024-01-02T03:04:05.000Z","fields":{"Amount":10}}],"offset":"next"}`))
			return
		}
		_, _ = w.Write([]byte(`{"records":[{"id":"rec2","createdTime":"2024-01-02T03:04:06.000Z","fields":{"Amount":20}}]}`))
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL+"/v0", "app1", "pat", time.Second)
	recs, err := s.List(context.Background(), "Orders", ListOptions{Filter: Eq("Stripe Payment ID", `pi_"x`)})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "rec1", recs[0].ID)
	amt, ok := recs[1].Fields.Float("Amount")
	assert.True(t, ok)
	assert.Equal(t, 20.0, amt)
	assert.Equal(t, 2024, recs[0].CreatedTime.Year())
	require.Len(t, formulas, 2)
	assert.Equal(t, `{Stripe Payment ID}="pi_\"x"`, formulas[0])
}

func TestHTTPStoreCreateAndUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.Method {
		case http.MethodPost:
			recs := body["records"].([]any)
			fields := recs[0].(map[string]any)["fields"]
			_ = json.NewEncoder(w).Encode(map[string]any{"records": []any{
				map[string]any{"id": "recNew", "createdTime": "2024-05-01T00:00:00.000Z", "fields": fields},
			}})
		case http.MethodPatch:
			assert.Equal(t, "/b/Users/recNew", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "recNew", "createdTime": "2024-05-01T00:00:00.000Z", "fields": body["fields"]})
		}
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "b", "pat", time.Second)
	rec, err := s.Create(context.Background(), "Users", Fields{"Email": "a@b.co"})
	require.NoError(t, err)
	assert.Equal(t, "recNew", rec.ID)
	assert.Equal(t, "a@b.co", rec.Fields.String("Email"))

	rec, err = s.Update(context.Background(), "Users", "recNew", Fields{"Name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", rec.Fields.String("Name"))
}

func TestHTTPStoreNotFoundAndAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/base/Users/missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"NOT_FOUND"}`))
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"type":"INVALID_VALUE_FOR_COLUMN","message":"bad"}}`))
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "base", "pat", time.Second)
	_, err := s.Get(context.Background(), "Users", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Create(context.Background(), "Users", Fields{"x": 1})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "INVALID_VALUE_FOR_COLUMN", apiErr.Type)
}

func TestHTTPStoreTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	s := NewHTTPStore(srv.URL, "base", "pat", 30*time.Millisecond)
	_, err := s.List(context.Background(), "Users", ListOptions{})
	assert.ErrorIs(t, err, ErrTimeout)
}
