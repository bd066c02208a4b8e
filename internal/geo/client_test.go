package geo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestLookupResolvesPublicAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/8.8.8.8", r.URL.Path)
		require.Equal(t, "key-123", r.URL.Query().Get("apikey"))
		json.NewEncoder(w).Encode(Location{
			IP:          "8.8.8.8",
			CountryCode: "US",
			CountryName: "United States",
			City:        "Mountain View",
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "key-123"})
	require.NoError(t, err)

	loc, err := client.Lookup(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	require.Equal(t, "US", loc.CountryCode)
	require.Equal(t, "Mountain View", loc.City)
}

func TestLookupBackfillsIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Location{CountryCode: "DE"})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	loc, err := client.Lookup(context.Background(), "1.1.1.1")
	require.NoError(t, err)
	require.Equal(t, "1.1.1.1", loc.IP)
}

func TestLookupSkipsNonRoutableAddresses(t *testing.T) {
	// The base URL is unreachable on purpose: these lookups must fail
	// before any network call happens.
	client, err := NewClient(Config{BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	ctx := context.Background()

	for _, ip := range []string{"", "not-an-ip", "127.0.0.1", "10.0.0.5", "192.168.1.20"} {
		_, err := client.Lookup(ctx, ip)
		require.ErrorIs(t, err, ErrLookupUnavailable, "ip %q", ip)
	}
}

func TestLookupServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Lookup(context.Background(), "8.8.8.8")
	require.ErrorIs(t, err, ErrLookupUnavailable)
}
