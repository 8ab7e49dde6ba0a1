package standings

import (
	"context"
	"errors"
	"sync"

	"github.com/parrishdev/pitwall/internal/drivers"
	"github.com/parrishdev/pitwall/internal/udf"
	"go.uber.org/zap"
)

const defaultErrorMessage = "Failed to load drivers"

var errMissingStore = errors.New("driver store is required")

// DriverStore is the slice of the driver store the standings screen consumes.
type DriverStore interface {
	StreamAllDrivers(ctx context.Context) (<-chan []drivers.Driver, func())
	RefreshLatestDrivers(ctx context.Context, force bool) error
}

type DataState struct {
	Drivers      udf.Loadable[[]drivers.Driver]
	IsRefreshing bool
	Error        string
}

func (s DataState) isLoading() bool {
	return !s.Drivers.IsLoaded() && s.Error == ""
}

type ViewState struct {
	IsLoading      bool
	IsRefreshing   bool
	Drivers        []drivers.Driver
	ErrorMessage   string
	ShowEmptyState bool
}

func reduceViewState(s DataState) ViewState {
	loaded := s.Drivers.Or([]drivers.Driver{})
	return ViewState{
		IsLoading:      s.isLoading(),
		IsRefreshing:   s.IsRefreshing,
		Drivers:        loaded,
		ErrorMessage:   s.Error,
		ShowEmptyState: !s.isLoading() && len(loaded) == 0 && s.Error == "",
	}
}

// Event is a one-time signal consumed by the UI.
type Event interface{ standingsEvent() }

// NavigateToDriver asks the UI to open a driver's detail view.
type NavigateToDriver struct {
	Season       int
	DriverNumber int
}

func (NavigateToDriver) standingsEvent() {}

// ShowError asks the UI to surface a transient error notice.
type ShowError struct {
	Message string
}

func (ShowError) standingsEvent() {}

type ModelConfig struct {
	Store  DriverStore
	Logger *zap.Logger
}

// Model drives the driver standings screen: the current grid ordered by
// championship points with the roster overlay merged in by the store.
type Model struct {
	holder      *udf.EventHolder[DataState, ViewState, Event]
	store       DriverStore
	logger      *zap.Logger
	observeOnce sync.Once
}

func NewModel(cfg ModelConfig) (*Model, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{
		holder: udf.NewEventHolder[DataState, ViewState, Event](DataState{}, reduceViewState),
		store:  cfg.Store,
		logger: logger,
	}, nil
}

// Start forces an initial refresh so standings reflect the latest session
// even when cached rows are still within the staleness window.
func (m *Model) Start(ctx context.Context) {
	go m.refreshDrivers(ctx, true)
}

// StartObserving wires the lifecycle-gated driver stream into the mutation
// queue. Only the first call takes effect.
func (m *Model) StartObserving(ctx context.Context, lifecycle *udf.Lifecycle) {
	m.observeOnce.Do(func() {
		source := func(sourceCtx context.Context) (<-chan []drivers.Driver, func()) {
			return m.store.StreamAllDrivers(sourceCtx)
		}
		udf.Observe(ctx, lifecycle, udf.StateStarted, source, func(_ context.Context, snapshot []drivers.Driver) {
			m.holder.Apply(func(s DataState) DataState {
				s.Drivers = udf.Loaded(snapshot)
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

func (m *Model) OnRefresh(ctx context.Context) {
	go m.refreshDrivers(ctx, true)
}

// OnRetry clears the recorded error before re-attempting.
func (m *Model) OnRetry(ctx context.Context) {
	m.holder.Apply(func(s DataState) DataState {
		s.Error = ""
		return s
	})
	go m.refreshDrivers(ctx, true)
}

// OnDriverSelected emits the navigation event for a chosen driver.
func (m *Model) OnDriverSelected(driver drivers.Driver) {
	m.holder.Emit(NavigateToDriver{
		Season:       driver.Season,
		DriverNumber: driver.DriverNumber,
	})
}

func (m *Model) refreshDrivers(ctx context.Context, force bool) {
	m.holder.Apply(func(s DataState) DataState {
		s.IsRefreshing = force
		return s
	})
	err := m.store.RefreshLatestDrivers(ctx, force)
	if err != nil {
		message := errorMessage(err, defaultErrorMessage)
		m.logger.Warn("driver refresh failed", zap.Error(err))
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
