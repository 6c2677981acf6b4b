package ripestat

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountryFromHolder(t *testing.T) {
	tests := []struct {
		holder string
		want   string
	}{
		{"TELIANET-SE Telia Company", "SE"},
		{"GOOGLE-FIBER-US Google Fiber", "US"},
		{"COGENT-174", ""},      // numeric suffix
		{"AKAMAI-ASN1-EU", ""},  // region code
		{"LEVEL3", ""},          // no dash
		{"", ""},
		{"x-a", ""},                // single letter suffix
		{"amazon-de Amazon", "DE"}, // case-folded
	}
	for _, tt := range tests {
		t.Run(tt.holder, func(t *testing.T) {
			require.Equal(t, tt.want, countryFromHolder(tt.holder))
		})
	}
}

func TestFetchASNInfo(t *testing.T) {
	holders := map[string]string{
		"AS6939":  "HURRICANE-US Hurricane Electric",
		"AS17494": "BTCL-BD Bangladesh Telecom",
		"AS174":   "COGENT-EU Cogent Communications",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/as-overview/data.json", func(w http.ResponseWriter, r *http.Request) {
		res := r.URL.Query().Get("resource")
		holder, ok := holders[res]
		if !ok {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"status":"ok","data":{"holder":%q,"announced":true}}`, holder)
	})
	c := newTestClient(t, mux)

	countrySet := map[string]bool{"17494": true}
	info := c.FetchASNInfo(context.Background(), []string{"6939", "17494", "174", "9999"}, countrySet, "BD", nil)

	// Holder suffix extraction.
	require.Equal(t, "US", info["6939"].Country)
	require.Equal(t, "HURRICANE-US Hurricane Electric", info["6939"].Holder)
	require.True(t, info["6939"].Announced)

	// Registry membership beats the holder suffix.
	require.Equal(t, "BD", info["17494"].Country)

	// "EU" is a region, not a country; the well-known table fills the gap.
	require.Equal(t, "US", info["174"].Country)

	// Lookup failure yields a usable fallback, never an error.
	require.Equal(t, "AS9999", info["9999"].Name)
	require.Empty(t, info["9999"].Country)
}

func TestFetchASNInfo_FallbackKeepsDomesticCountry(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	info := c.FetchASNInfo(context.Background(), []string{"24342"}, map[string]bool{"24342": true}, "BD", nil)
	require.Equal(t, "BD", info["24342"].Country)
	require.Equal(t, "AS24342", info["24342"].Name)
}
