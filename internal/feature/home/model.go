package home

import (
	"context"
	"errors"
	"sync"

	"github.com/parrishdev/pitwall/internal/races"
	"github.com/parrishdev/pitwall/internal/udf"
	"go.uber.org/zap"
)

const defaultErrorMessage = "Failed to load races"

var (
	errMissingStore  = errors.New("race store is required")
	errInvalidSeason = errors.New("season must be a positive year")
)

// RaceStore is the slice of the race store the home screen consumes.
type RaceStore interface {
	StreamRacesForSeason(ctx context.Context, season int) (<-chan []races.Race, func())
	RefreshRaces(ctx context.Context, season int, force bool) error
}

// DataState is the internal snapshot for the home screen: the season's race
// list plus refresh/error bookkeeping.
type DataState struct {
	Races        udf.Loadable[[]races.Race]
	IsRefreshing bool
	Error        string
}

func (s DataState) isLoading() bool {
	return !s.Races.IsLoaded() && s.Error == ""
}

func (s DataState) hasData() bool {
	return len(s.Races.Value()) > 0
}

// ViewState is the UI-ready projection: only what rendering needs.
type ViewState struct {
	IsLoading      bool
	IsRefreshing   bool
	Races          []races.Race
	ErrorMessage   string
	ShowEmptyState bool
}

func reduceViewState(s DataState) ViewState {
	return ViewState{
		IsLoading:      s.isLoading(),
		IsRefreshing:   s.IsRefreshing,
		Races:          s.Races.Or([]races.Race{}),
		ErrorMessage:   s.Error,
		ShowEmptyState: !s.isLoading() && !s.hasData() && s.Error == "",
	}
}

// Event is a one-time signal consumed by the UI.
type Event interface{ homeEvent() }

// NavigateToResults asks the UI to open a race's results.
type NavigateToResults struct {
	Season   int
	Round    int
	RaceName string
}

func (NavigateToResults) homeEvent() {}

// ShowError asks the UI to surface a transient error notice.
type ShowError struct {
	Message string
}

func (ShowError) homeEvent() {}

type ModelConfig struct {
	Store  RaceStore
	Season int
	Logger *zap.Logger
}

// Model drives the home screen: observes the cached season schedule and
// refreshes it on demand.
type Model struct {
	holder      *udf.EventHolder[DataState, ViewState, Event]
	store       RaceStore
	season      int
	logger      *zap.Logger
	observeOnce sync.Once
}

func NewModel(cfg ModelConfig) (*Model, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Season <= 0 {
		return nil, errInvalidSeason
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{
		holder: udf.NewEventHolder[DataState, ViewState, Event](DataState{}, reduceViewState),
		store:  cfg.Store,
		season: cfg.Season,
		logger: logger,
	}, nil
}

// Start performs the initial non-forced refresh without blocking the caller.
func (m *Model) Start(ctx context.Context) {
	go m.refreshRaces(ctx, false)
}

// StartObserving wires the lifecycle-gated schedule stream into the mutation
// queue. Safe to call more than once; only the first call takes effect.
// Store emissions never clear a recorded error: errors represent refresh
// failures and only a successful refresh or explicit retry clears them.
func (m *Model) StartObserving(ctx context.Context, lifecycle *udf.Lifecycle) {
	m.observeOnce.Do(func() {
		source := func(sourceCtx context.Context) (<-chan []races.Race, func()) {
			return m.store.StreamRacesForSeason(sourceCtx, m.season)
		}
		udf.Observe(ctx, lifecycle, udf.StateStarted, source, func(_ context.Context, snapshot []races.Race) {
			m.holder.Apply(func(s DataState) DataState {
				s.Races = udf.Loaded(snapshot)
				return s
			})
		})
	})
}

func (m *Model) ViewState() ViewState {
	return m.holder.ViewState()
}

func (m *Model) ViewStates(ctx context.Context) (<-chan ViewState, func()) {
	return m.holder.ViewStates(ctx)
}

func (m *Model) Events() <-chan Event {
	return m.holder.Events()
}

func (m *Model) Close() {
	m.holder.Close()
}

// OnRefresh forces a refresh; called on pull-to-refresh.
func (m *Model) OnRefresh(ctx context.Context) {
	go m.refreshRaces(ctx, true)
}

// OnRetry clears the recorded error before re-attempting, so the error view
// is never left stale after a retry completes.
func (m *Model) OnRetry(ctx context.Context) {
	m.holder.Apply(func(s DataState) DataState {
		s.Error = ""
		return s
	})
	go m.refreshRaces(ctx, true)
}

// OnRaceSelected emits the navigation event for a chosen race.
func (m *Model) OnRaceSelected(race races.Race) {
	m.holder.Emit(NavigateToResults{
		Season:   race.Season,
		Round:    race.Round,
		RaceName: race.Name,
	})
}

func (m *Model) refreshRaces(ctx context.Context, force bool) {
	m.holder.Apply(func(s DataState) DataState {
		s.IsRefreshing = force
		return s
	})
	err := m.store.RefreshRaces(ctx, m.season, force)
	if err != nil {
		message := errorMessage(err, defaultErrorMessage)
		m.logger.Warn("race refresh failed", zap.Error(err))
		m.holder.Apply(func(s DataState) DataState {
			s.Error = message
			return s
		})
		m.holder.Emit(ShowError{Message: message})
	} else {
		m.holder.Apply(func(s DataState) DataState {
			s.Error = ""
			return s
		})
	}
	m.holder.Apply(func(s DataState) DataState {
		s.IsRefreshing = false
		return s
	})
}

func errorMessage(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
