package results

import (
	"context"
	"errors"
	"sync"

	"github.com/parrishdev/pitwall/internal/races"
	"github.com/parrishdev/pitwall/internal/udf"
	"go.uber.org/zap"
)

const defaultErrorMessage = "Failed to load results"

var (
	errMissingStore = errors.New("race store is required")
	errInvalidRace  = errors.New("season and round must be positive")
)

// RaceStore is the slice of the race store the results screen consumes.
type RaceStore interface {
	StreamRaceWithResults(ctx context.Context, season, round int) (<-chan *races.RaceWithResults, func())
	RefreshRaceResults(ctx context.Context, season, round int, force bool) error
}

type DataState struct {
	Season       int
	Round        int
	Race         udf.Loadable[*races.RaceWithResults]
	IsRefreshing bool
	Error        string
}

func (s DataState) isLoading() bool {
	return !s.Race.IsLoaded() && s.Error == ""
}

type ViewState struct {
	IsLoading    bool
	IsRefreshing bool
	RaceName     string
	CircuitName  string
	Date         string
	Results      []races.RaceResult
	ErrorMessage string
}

func reduceViewState(s DataState) ViewState {
	view := ViewState{
		IsLoading:    s.isLoading(),
		IsRefreshing: s.IsRefreshing,
		Results:      []races.RaceResult{},
		ErrorMessage: s.Error,
	}
	race := s.Race.Or(nil)
	if race == nil {
		return view
	}
	view.RaceName = race.Race.Name
	view.CircuitName = race.Race.Circuit.Name
	view.Date = race.Race.Date
	view.Results = race.Results
	return view
}

type ModelConfig struct {
	Store  RaceStore
	Season int
	Round  int
	Logger *zap.Logger
}

// Model drives the race results screen for a single season/round pair.
type Model struct {
	holder      *udf.StateHolder[DataState, ViewState]
	store       RaceStore
	season      int
	round       int
	logger      *zap.Logger
	observeOnce sync.Once
}

func NewModel(cfg ModelConfig) (*Model, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Season <= 0 || cfg.Round <= 0 {
		return nil, errInvalidRace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	initial := DataState{Season: cfg.Season, Round: cfg.Round}
	return &Model{
		holder: udf.NewStateHolder(initial, reduceViewState),
		store:  cfg.Store,
		season: cfg.Season,
		round:  cfg.Round,
		logger: logger,
	}, nil
}

// Start performs the initial non-forced refresh without blocking the caller.
func (m *Model) Start(ctx context.Context) {
	go m.refreshResults(ctx, false)
}

// StartObserving wires the lifecycle-gated results stream into the mutation
// queue. Only the first call takes effect.
func (m *Model) StartObserving(ctx context.Context, lifecycle *udf.Lifecycle) {
	m.observeOnce.Do(func() {
		source := func(sourceCtx context.Context) (<-chan *races.RaceWithResults, func()) {
			return m.store.StreamRaceWithResults(sourceCtx, m.season, m.round)
		}
		udf.Observe(ctx, lifecycle, udf.StateStarted, source, func(_ context.Context, snapshot *races.RaceWithResults) {
			m.holder.Apply(func(s DataState) DataState {
				s.Race = udf.Loaded(snapshot)
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

func (m *Model) Close() {
	m.holder.Close()
}

func (m *Model) OnRefresh(ctx context.Context) {
	go m.refreshResults(ctx, true)
}

// OnRetry clears the recorded error before re-attempting.
func (m *Model) OnRetry(ctx context.Context) {
	m.holder.Apply(func(s DataState) DataState {
		s.Error = ""
		return s
	})
	go m.refreshResults(ctx, true)
}

func (m *Model) refreshResults(ctx context.Context, force bool) {
	m.holder.Apply(func(s DataState) DataState {
		s.IsRefreshing = force
		return s
	})
	err := m.store.RefreshRaceResults(ctx, m.season, m.round, force)
	if err != nil {
		m.logger.Warn("results refresh failed",
			zap.Int("season", m.season),
			zap.Int("round", m.round),
			zap.Error(err))
		m.holder.Apply(func(s DataState) DataState {
			s.Error = errorMessage(err, defaultErrorMessage)
			return s
		})
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
