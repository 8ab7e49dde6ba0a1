package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/parrishdev/pitwall/internal/stream"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TopicSettings is published on every preference write.
const TopicSettings = "settings"

const (
	darkModeKey     = "dark_mode_enabled"
	defaultDarkMode = true
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingDispatcher = errors.New("dispatcher is required")
)

// Preference is one persisted key/value user preference.
type Preference struct {
	Key   string `gorm:"column:key;primaryKey;size:190;not null"`
	Value string `gorm:"column:value;not null"`
}

func (Preference) TableName() string {
	return "preferences"
}

type StoreConfig struct {
	Database   *gorm.DB
	Dispatcher *stream.Dispatcher
	Logger     *zap.Logger
}

// Store persists user preferences in the cache database. Dark mode defaults
// to enabled.
type Store struct {
	db         *gorm.DB
	dispatcher *stream.Dispatcher
	logger     *zap.Logger
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: cfg.Database, dispatcher: cfg.Dispatcher, logger: logger}, nil
}

// IsDarkMode reads the dark-mode preference; unset or unparsable values fall
// back to the default.
func (s *Store) IsDarkMode(ctx context.Context) (bool, error) {
	var preference Preference
	err := s.db.WithContext(ctx).Where("key = ?", darkModeKey).Take(&preference).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultDarkMode, nil
	}
	if err != nil {
		return defaultDarkMode, fmt.Errorf("query preference: %w", err)
	}
	enabled, parseErr := strconv.ParseBool(preference.Value)
	if parseErr != nil {
		return defaultDarkMode, nil
	}
	return enabled, nil
}

// SetDarkMode persists the dark-mode preference.
func (s *Store) SetDarkMode(ctx context.Context, enabled bool) error {
	preference := Preference{Key: darkModeKey, Value: strconv.FormatBool(enabled)}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&preference).Error; err != nil {
		return fmt.Errorf("save preference: %w", err)
	}
	s.logger.Info("dark mode preference saved", zap.Bool("enabled", enabled))
	s.dispatcher.Publish(TopicSettings)
	return nil
}

// StreamIsDarkMode emits the preference immediately and on every write.
func (s *Store) StreamIsDarkMode(ctx context.Context) (<-chan bool, func()) {
	return stream.Snapshots(ctx, s.dispatcher, TopicSettings, s.logger, func(streamCtx context.Context) (bool, error) {
		return s.IsDarkMode(streamCtx)
	})
}
