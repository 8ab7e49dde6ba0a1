package races

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/parrishdev/pitwall/internal/jolpica"
	"github.com/parrishdev/pitwall/internal/stream"
	"gorm.io/gorm"
)

type fakeScheduleAPI struct {
	scheduleCalls int
	resultsCalls  int
	scheduleFn    func(season string) ([]jolpica.Race, error)
	resultsFn     func(season, round string) (*jolpica.Race, error)
}

func (f *fakeScheduleAPI) RaceSchedule(_ context.Context, season string) ([]jolpica.Race, error) {
	f.scheduleCalls++
	if f.scheduleFn == nil {
		return nil, nil
	}
	return f.scheduleFn(season)
}

func (f *fakeScheduleAPI) RaceResults(_ context.Context, season, round string) (*jolpica.Race, error) {
	f.resultsCalls++
	if f.resultsFn == nil {
		return nil, nil
	}
	return f.resultsFn(season, round)
}

func newTestStore(t *testing.T, api ScheduleAPI, clock func() time.Time) (*Store, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:races_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&RaceRow{}, &RaceResultRow{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	store, err := NewStore(StoreConfig{
		Database:   db,
		API:        api,
		Dispatcher: stream.NewDispatcher(),
		Clock:      clock,
		StaleAfter: time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	return store, db
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func scheduleFixture(season string, rounds ...string) []jolpica.Race {
	races := make([]jolpica.Race, 0, len(rounds))
	for _, round := range rounds {
		races = append(races, jolpica.Race{
			Season:   season,
			Round:    round,
			RaceName: "Race " + round,
			Date:     "2025-03-0" + round,
			Circuit:  &jolpica.Circuit{CircuitID: "circuit-" + round, CircuitName: "Circuit " + round},
		})
	}
	return races
}

func resultsFixture(season, round string, driverIDs ...string) *jolpica.Race {
	race := jolpica.Race{
		Season:   season,
		Round:    round,
		RaceName: "Grand Prix",
		Date:     "2025-03-01",
		Circuit:  &jolpica.Circuit{CircuitID: "circuit-1", CircuitName: "Circuit One"},
	}
	for index, id := range driverIDs {
		race.Results = append(race.Results, jolpica.Result{
			Position:     fmt.Sprintf("%d", index+1),
			PositionText: fmt.Sprintf("%d", index+1),
			Points:       "10",
			Driver:       jolpica.Driver{DriverID: id, Code: "DRV", GivenName: "First", FamilyName: "Last"},
			Constructor:  jolpica.Constructor{ConstructorID: "team", Name: "Team"},
			Status:       "Finished",
		})
	}
	return &race
}

func TestRefreshRacesCachesSchedule(t *testing.T) {
	now := time.Unix(1756400000, 0).UTC()
	api := &fakeScheduleAPI{
		scheduleFn: func(season string) ([]jolpica.Race, error) {
			if season != "2025" {
				t.Fatalf("unexpected season: %s", season)
			}
			return scheduleFixture("2025", "2", "1", "3"), nil
		},
	}
	store, _ := newTestStore(t, api, fixedClock(now))

	if err := store.RefreshRaces(context.Background(), 2025, false); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}

	cached, err := store.RacesForSeason(context.Background(), 2025)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if len(cached) != 3 {
		t.Fatalf("expected 3 races, got %d", len(cached))
	}
	for index, race := range cached {
		if race.Round != index+1 {
			t.Fatalf("expected rounds ascending, got %d at index %d", race.Round, index)
		}
	}
}

func TestRefreshRacesSkipsFetchWhenFresh(t *testing.T) {
	now := time.Unix(1756400000, 0).UTC()
	api := &fakeScheduleAPI{
		scheduleFn: func(string) ([]jolpica.Race, error) {
			return scheduleFixture("2025", "1"), nil
		},
	}
	store, _ := newTestStore(t, api, fixedClock(now))

	if err := store.RefreshRaces(context.Background(), 2025, false); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if err := store.RefreshRaces(context.Background(), 2025, false); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if api.scheduleCalls != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", api.scheduleCalls)
	}
}

func TestRefreshRacesForceBypassesFreshness(t *testing.T) {
	now := time.Unix(1756400000, 0).UTC()
	api := &fakeScheduleAPI{
		scheduleFn: func(string) ([]jolpica.Race, error) {
			return scheduleFixture("2025", "1"), nil
		},
	}
	store, _ := newTestStore(t, api, fixedClock(now))

	if err := store.RefreshRaces(context.Background(), 2025, false); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if err := store.RefreshRaces(context.Background(), 2025, true); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if api.scheduleCalls != 2 {
		t.Fatalf("expected two upstream fetches, got %d", api.scheduleCalls)
	}
}

func TestRefreshRacesFetchesWhenStale(t *testing.T) {
	start := time.Unix(1756400000, 0).UTC()
	current := start
	api := &fakeScheduleAPI{
		scheduleFn: func(string) ([]jolpica.Race, error) {
			return scheduleFixture("2025", "1"), nil
		},
	}
	store, _ := newTestStore(t, api, func() time.Time { return current })

	if err := store.RefreshRaces(context.Background(), 2025, false); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}

	current = start.Add(2 * time.Hour)
	if err := store.RefreshRaces(context.Background(), 2025, false); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if api.scheduleCalls != 2 {
		t.Fatalf("expected stale cache to trigger a fetch, got %d calls", api.scheduleCalls)
	}
}

func TestRefreshRacesPropagatesUpstreamError(t *testing.T) {
	upstreamErr := errors.New("boom")
	api := &fakeScheduleAPI{
		scheduleFn: func(string) ([]jolpica.Race, error) {
			return nil, upstreamErr
		},
	}
	store, _ := newTestStore(t, api, fixedClock(time.Unix(1756400000, 0).UTC()))

	err := store.RefreshRaces(context.Background(), 2025, false)
	if !errors.Is(err, upstreamErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	cached, readErr := store.RacesForSeason(context.Background(), 2025)
	if readErr != nil {
		t.Fatalf("unexpected read error: %v", readErr)
	}
	if len(cached) != 0 {
		t.Fatalf("expected empty cache after failed refresh, got %d rows", len(cached))
	}
}

func TestRaceWithResultsNilWhenNeverCached(t *testing.T) {
	store, _ := newTestStore(t, &fakeScheduleAPI{}, fixedClock(time.Unix(1756400000, 0).UTC()))

	record, err := store.RaceWithResults(context.Background(), 2025, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil for uncached race, got %#v", record)
	}
}

func TestRefreshRaceResultsReplacesResultSet(t *testing.T) {
	now := time.Unix(1756400000, 0).UTC()
	fixture := resultsFixture("2025", "1", "alpha", "beta", "gamma")
	api := &fakeScheduleAPI{
		resultsFn: func(season, round string) (*jolpica.Race, error) {
			return fixture, nil
		},
	}
	store, _ := newTestStore(t, api, fixedClock(now))

	if err := store.RefreshRaceResults(context.Background(), 2025, 1, false); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}

	record, err := store.RaceWithResults(context.Background(), 2025, 1)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if record == nil || len(record.Results) != 3 {
		t.Fatalf("expected 3 results, got %#v", record)
	}

	// The classification shrinks to two drivers; the stale row must go.
	fixture = resultsFixture("2025", "1", "alpha", "beta")
	if err := store.RefreshRaceResults(context.Background(), 2025, 1, false); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}

	record, err = store.RaceWithResults(context.Background(), 2025, 1)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if record == nil || len(record.Results) != 2 {
		t.Fatalf("expected 2 results after shrink, got %#v", record)
	}
	for _, result := range record.Results {
		if result.Driver.ID == "gamma" {
			t.Fatalf("expected dropped driver to be deleted")
		}
	}
}

func TestRefreshRaceResultsIsIdempotent(t *testing.T) {
	now := time.Unix(1756400000, 0).UTC()
	api := &fakeScheduleAPI{
		resultsFn: func(season, round string) (*jolpica.Race, error) {
			return resultsFixture("2025", "1", "alpha", "beta"), nil
		},
	}
	store, db := newTestStore(t, api, fixedClock(now))

	for i := 0; i < 3; i++ {
		if err := store.RefreshRaceResults(context.Background(), 2025, 1, false); err != nil {
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}

	var count int64
	if err := db.Model(&RaceResultRow{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count results: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 result rows after repeated refresh, got %d", count)
	}
}

func TestStreamRacesForSeasonEmitsOnRefresh(t *testing.T) {
	now := time.Unix(1756400000, 0).UTC()
	api := &fakeScheduleAPI{
		scheduleFn: func(string) ([]jolpica.Race, error) {
			return scheduleFixture("2025", "1", "2"), nil
		},
	}
	store, _ := newTestStore(t, api, fixedClock(now))

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()
	snapshots, cancel := store.StreamRacesForSeason(ctx, 2025)
	defer cancel()

	first := awaitSnapshot(t, snapshots)
	if len(first) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d races", len(first))
	}

	if err := store.RefreshRaces(context.Background(), 2025, true); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}

	second := awaitSnapshot(t, snapshots)
	if len(second) != 2 {
		t.Fatalf("expected refreshed snapshot with 2 races, got %d", len(second))
	}
}

func awaitSnapshot[T any](t *testing.T, snapshots <-chan T) T {
	t.Helper()
	select {
	case snapshot := <-snapshots:
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
		panic("unreachable")
	}
}
