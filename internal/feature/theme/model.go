package theme

import (
	"context"
	"errors"
	"sync"

	"github.com/parrishdev/pitwall/internal/udf"
	"go.uber.org/zap"
)

var errMissingStore = errors.New("settings store is required")

// SettingsStore is the slice of the settings store the theme toggle consumes.
type SettingsStore interface {
	StreamIsDarkMode(ctx context.Context) (<-chan bool, func())
	SetDarkMode(ctx context.Context, enabled bool) error
}

type DataState struct {
	DarkMode udf.Loadable[bool]
}

type ViewState struct {
	IsLoading bool
	DarkMode  bool
}

func reduceViewState(s DataState) ViewState {
	return ViewState{
		IsLoading: !s.DarkMode.IsLoaded(),
		DarkMode:  s.DarkMode.Or(true),
	}
}

type ModelConfig struct {
	Store  SettingsStore
	Logger *zap.Logger
}

// Model exposes the persisted dark mode preference and lets the UI flip it.
type Model struct {
	holder      *udf.StateHolder[DataState, ViewState]
	store       SettingsStore
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
		holder: udf.NewStateHolder(DataState{}, reduceViewState),
		store:  cfg.Store,
		logger: logger,
	}, nil
}

// StartObserving wires the lifecycle-gated preference stream into the
// mutation queue. Only the first call takes effect.
func (m *Model) StartObserving(ctx context.Context, lifecycle *udf.Lifecycle) {
	m.observeOnce.Do(func() {
		source := func(sourceCtx context.Context) (<-chan bool, func()) {
			return m.store.StreamIsDarkMode(sourceCtx)
		}
		udf.Observe(ctx, lifecycle, udf.StateStarted, source, func(_ context.Context, enabled bool) {
			m.holder.Apply(func(s DataState) DataState {
				s.DarkMode = udf.Loaded(enabled)
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

// OnToggleDarkMode persists the new preference; the observed stream brings
// the confirmed value back into state.
func (m *Model) OnToggleDarkMode(ctx context.Context, enabled bool) {
	go func() {
		if err := m.store.SetDarkMode(ctx, enabled); err != nil {
			m.logger.Warn("dark mode update failed", zap.Error(err))
		}
	}()
}
