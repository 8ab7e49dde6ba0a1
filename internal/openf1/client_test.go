package openf1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const rosterBody = `[
	{
		"driver_number": 1,
		"session_key": 9658,
		"meeting_key": 1219,
		"broadcast_name": "M VERSTAPPEN",
		"full_name": "Max VERSTAPPEN",
		"first_name": "Max",
		"last_name": "Verstappen",
		"name_acronym": "VER",
		"team_name": "Red Bull Racing",
		"team_colour": "3671C6",
		"country_code": "NED",
		"headshot_url": "https://example.com/ver.png"
	},
	{
		"driver_number": 4,
		"session_key": 9658,
		"broadcast_name": "L NORRIS",
		"name_acronym": "NOR",
		"team_name": "McLaren",
		"headshot_url": null
	}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: server.Client()})
}

func TestDriversParsesRoster(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drivers" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("session_key"); got != "9658" {
			t.Fatalf("unexpected session key: %s", got)
		}
		w.Write([]byte(rosterBody))
	})

	roster, err := client.Drivers(context.Background(), "9658")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(roster))
	}

	first := roster[0]
	if first.DriverNumber == nil || *first.DriverNumber != 1 {
		t.Fatalf("unexpected driver number: %#v", first.DriverNumber)
	}
	if first.HeadshotURL == nil || *first.HeadshotURL != "https://example.com/ver.png" {
		t.Fatalf("unexpected headshot: %#v", first.HeadshotURL)
	}

	second := roster[1]
	if second.HeadshotURL != nil {
		t.Fatalf("expected nil headshot for null field, got %#v", second.HeadshotURL)
	}
	if second.FirstName != nil {
		t.Fatalf("expected nil for absent field, got %#v", second.FirstName)
	}
}

func TestDriversDefaultsToLatestSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("session_key"); got != SessionLatest {
			t.Fatalf("expected latest session key, got %s", got)
		}
		w.Write([]byte(`[]`))
	})

	roster, err := client.Drivers(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roster) != 0 {
		t.Fatalf("expected empty roster, got %d", len(roster))
	}
}

func TestDriversReportsUpstreamStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := client.Drivers(context.Background(), SessionLatest)
	if err == nil {
		t.Fatalf("expected error for non-200 status")
	}
	if !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("expected status in error, got %v", err)
	}
}
