package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominatimResolve(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"display_name": "Jalan Sudirman, Jakarta, Indonesia",
			"address": {"road": "Jalan Sudirman", "city": "Jakarta"}
		}`))
	}))
	defer server.Close()

	g := NewNominatim(server.URL)
	name, err := g.Resolve(context.Background(), -6.2088, 106.8456)
	require.NoError(t, err)
	assert.Equal(t, "Jalan Sudirman", name)

	// Same rounded coordinate hits the cache, not the server.
	_, err = g.Resolve(context.Background(), -6.20881, 106.84561)
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())
}

func TestNominatimFallsBackThroughAddressKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"display_name": "somewhere", "address": {"state": "West Java"}}`))
	}))
	defer server.Close()

	g := NewNominatim(server.URL)
	name, err := g.Resolve(context.Background(), -6.9, 107.6)
	require.NoError(t, err)
	assert.Equal(t, "West Java", name)
}

func TestNominatimErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	g := NewNominatim(server.URL)
	_, err := g.Resolve(context.Background(), -6.2, 106.8)
	assert.Error(t, err)
}

func TestTripDisplayNameFallsBackToCoordinates(t *testing.T) {
	name := TripDisplayName(context.Background(), nil, -6.2088, 106.8456, -6.9175, 107.6191)
	assert.Equal(t, "-6.2088, 106.8456 → -6.9175, 107.6191", name)
}
