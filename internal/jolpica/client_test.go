package jolpica

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const scheduleBody = `{
	"MRData": {
		"RaceTable": {
			"season": "2025",
			"Races": [
				{
					"season": "2025",
					"round": "1",
					"raceName": "Australian Grand Prix",
					"date": "2025-03-16",
					"time": "04:00:00Z",
					"Circuit": {
						"circuitId": "albert_park",
						"circuitName": "Albert Park Grand Prix Circuit",
						"Location": {"locality": "Melbourne", "country": "Australia"}
					}
				},
				{
					"season": "2025",
					"round": "2",
					"raceName": "Chinese Grand Prix",
					"date": "2025-03-23",
					"Circuit": {"circuitId": "shanghai", "circuitName": "Shanghai International Circuit"}
				}
			]
		}
	}
}`

const resultsBody = `{
	"MRData": {
		"RaceTable": {
			"season": "2025",
			"Races": [
				{
					"season": "2025",
					"round": "1",
					"raceName": "Australian Grand Prix",
					"date": "2025-03-16",
					"Circuit": {"circuitId": "albert_park", "circuitName": "Albert Park Grand Prix Circuit"},
					"Results": [
						{
							"number": "4",
							"position": "1",
							"positionText": "1",
							"points": "25",
							"grid": "1",
							"laps": "57",
							"status": "Finished",
							"Driver": {"driverId": "norris", "permanentNumber": "4", "code": "NOR", "givenName": "Lando", "familyName": "Norris"},
							"Constructor": {"constructorId": "mclaren", "name": "McLaren"},
							"FastestLap": {
								"rank": "1",
								"lap": "44",
								"Time": {"time": "1:22.167"},
								"AverageSpeed": {"units": "kph", "speed": "232.173"}
							}
						}
					]
				}
			]
		}
	}
}`

const standingsBody = `{
	"MRData": {
		"StandingsTable": {
			"season": "2025",
			"StandingsLists": [
				{
					"season": "2025",
					"round": "14",
					"DriverStandings": [
						{
							"position": "1",
							"points": "284",
							"wins": "5",
							"Driver": {"driverId": "piastri", "permanentNumber": "81", "code": "PIA", "givenName": "Oscar", "familyName": "Piastri"},
							"Constructors": [{"constructorId": "mclaren", "name": "McLaren"}]
						}
					]
				}
			]
		}
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: server.Client()})
}

func TestRaceScheduleParsesResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2025.json" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(scheduleBody))
	})

	schedule, err := client.RaceSchedule(context.Background(), "2025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schedule) != 2 {
		t.Fatalf("expected 2 races, got %d", len(schedule))
	}
	if schedule[0].RaceName != "Australian Grand Prix" || schedule[0].Round != "1" {
		t.Fatalf("unexpected first race: %#v", schedule[0])
	}
	if schedule[0].Circuit == nil || schedule[0].Circuit.Location == nil {
		t.Fatalf("expected nested circuit location")
	}
	if schedule[0].Circuit.Location.Country != "Australia" {
		t.Fatalf("unexpected country: %s", schedule[0].Circuit.Location.Country)
	}
}

func TestRaceResultsParsesFastestLap(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2025/1/results.json" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(resultsBody))
	})

	race, err := client.RaceResults(context.Background(), "2025", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if race == nil || len(race.Results) != 1 {
		t.Fatalf("expected one result, got %#v", race)
	}
	result := race.Results[0]
	if result.FastestLap == nil || result.FastestLap.Time == nil {
		t.Fatalf("expected fastest lap details: %#v", result.FastestLap)
	}
	if result.FastestLap.Time.Time != "1:22.167" {
		t.Fatalf("unexpected lap time: %s", result.FastestLap.Time.Time)
	}
}

func TestRaceResultsNilWhenRoundUnknown(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MRData": {"RaceTable": {"season": "2025", "Races": []}}}`))
	})

	race, err := client.RaceResults(context.Background(), "2025", "99")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if race != nil {
		t.Fatalf("expected nil for unknown round, got %#v", race)
	}
}

func TestDriverStandingsParsesResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2025/driverStandings.json" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(standingsBody))
	})

	standings, err := client.DriverStandings(context.Background(), "2025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(standings) != 1 {
		t.Fatalf("expected 1 standing, got %d", len(standings))
	}
	if standings[0].Driver.Code != "PIA" || standings[0].Points != "284" {
		t.Fatalf("unexpected standing: %#v", standings[0])
	}
}

func TestDriverStandingsEmptyWhenSeasonHasNone(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MRData": {"StandingsTable": {"season": "2026", "StandingsLists": []}}}`))
	})

	standings, err := client.DriverStandings(context.Background(), "2026")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(standings) != 0 {
		t.Fatalf("expected no standings, got %d", len(standings))
	}
}

func TestGetJSONReportsUpstreamStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.RaceSchedule(context.Background(), "2025")
	if err == nil {
		t.Fatalf("expected error for non-200 status")
	}
	if !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("expected status in error, got %v", err)
	}
}
