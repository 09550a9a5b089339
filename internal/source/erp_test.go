package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

func TestConfigValidate(t *testing.T) {
	assert.ErrorIs(t, Config{}.Validate(), ErrInvalidConfig)
	assert.NoError(t, Config{BaseURL: "http://erp.local"}.Validate())
}

func TestListActive(t *testing.T) {
	var gotPath, gotAuth, gotKind string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKind = r.URL.Query().Get("kind")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"external_id":"rule-1","kind":"rule","title":"Free shipping","priority":3},
			{"external_id":"rule-2","title":"Opening hours","priority":5}
		]`))
	}))
	defer srv.Close()

	client, err := NewERPClient(Config{BaseURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)

	records, err := client.ListActive(context.Background(), "tenant-1", knowledge.KindRule)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/tenants/tenant-1/records", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "rule", gotKind)

	require.Len(t, records, 2)
	assert.Equal(t, "rule-1", records[0].ExternalID)
	assert.Equal(t, knowledge.KindRule, records[1].Kind, "missing kind is normalized to the requested one")
}

func TestListActiveMissingTenant(t *testing.T) {
	client, err := NewERPClient(Config{BaseURL: "http://erp.local"})
	require.NoError(t, err)

	_, err = client.ListActive(context.Background(), "", knowledge.KindRule)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestListActiveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewERPClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.ListActive(context.Background(), "tenant-1", knowledge.KindRule)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestListActiveTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client, err := NewERPClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.ListActive(context.Background(), "tenant-1", knowledge.KindRule)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestListActiveMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	client, err := NewERPClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.ListActive(context.Background(), "tenant-1", knowledge.KindRule)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}
