package races

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/parrishdev/pitwall/internal/jolpica"
	"github.com/parrishdev/pitwall/internal/metrics"
	"github.com/parrishdev/pitwall/internal/stream"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TopicRaces is published on every write to the races or race_results tables.
const TopicRaces = "races"

const defaultStaleAfter = time.Hour

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingAPI        = errors.New("schedule api is required")
	errMissingDispatcher = errors.New("dispatcher is required")
)

// ScheduleAPI is the slice of the historical API the race store consumes.
type ScheduleAPI interface {
	RaceSchedule(ctx context.Context, season string) ([]jolpica.Race, error)
	RaceResults(ctx context.Context, season, round string) (*jolpica.Race, error)
}

type StoreConfig struct {
	Database   *gorm.DB
	API        ScheduleAPI
	Dispatcher *stream.Dispatcher
	Clock      func() time.Time
	StaleAfter time.Duration
	Logger     *zap.Logger
}

// Store mediates between the historical API and the race cache. Reads never
// touch the network; refreshes never serve reads directly, they write the
// cache and let the change streams re-emit.
type Store struct {
	db         *gorm.DB
	api        ScheduleAPI
	dispatcher *stream.Dispatcher
	clock      func() time.Time
	staleAfter time.Duration
	logger     *zap.Logger
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.API == nil {
		return nil, errMissingAPI
	}
	if cfg.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:         cfg.Database,
		api:        cfg.API,
		dispatcher: cfg.Dispatcher,
		clock:      clock,
		staleAfter: staleAfter,
		logger:     logger,
	}, nil
}

// RacesForSeason reads the cached schedule, ordered by round ascending.
func (s *Store) RacesForSeason(ctx context.Context, season int) ([]Race, error) {
	var rows []RaceRow
	if err := s.db.WithContext(ctx).
		Where("season = ?", season).
		Order("round ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query races: %w", err)
	}
	out := make([]Race, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// RaceWithResults reads one cached race joined with its results, ordered by
// finishing position. Returns nil when the race has never been cached.
func (s *Store) RaceWithResults(ctx context.Context, season, round int) (*RaceWithResults, error) {
	raceID := RaceID(season, round)
	var raceRow RaceRow
	err := s.db.WithContext(ctx).Where("id = ?", raceID).Take(&raceRow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query race: %w", err)
	}

	var resultRows []RaceResultRow
	if err := s.db.WithContext(ctx).
		Where("race_id = ?", raceID).
		Order("position ASC").
		Find(&resultRows).Error; err != nil {
		return nil, fmt.Errorf("query race results: %w", err)
	}

	combined := &RaceWithResults{Race: raceRow.toDomain(), Results: make([]RaceResult, 0, len(resultRows))}
	for _, row := range resultRows {
		combined.Results = append(combined.Results, row.toDomain())
	}
	return combined, nil
}

// StreamRacesForSeason emits the cached schedule immediately and again after
// every cache write. The channel holds only the latest snapshot.
func (s *Store) StreamRacesForSeason(ctx context.Context, season int) (<-chan []Race, func()) {
	return stream.Snapshots(ctx, s.dispatcher, TopicRaces, s.logger, func(streamCtx context.Context) ([]Race, error) {
		return s.RacesForSeason(streamCtx, season)
	})
}

// StreamRaceWithResults emits the race+results join reactively; emissions are
// nil until the race has been cached at least once.
func (s *Store) StreamRaceWithResults(ctx context.Context, season, round int) (<-chan *RaceWithResults, func()) {
	return stream.Snapshots(ctx, s.dispatcher, TopicRaces, s.logger, func(streamCtx context.Context) (*RaceWithResults, error) {
		return s.RaceWithResults(streamCtx, season, round)
	})
}

// RefreshRaces fetches the season schedule and upserts it, unless the cached
// season is still fresh and force is false. Results are not touched; they
// load on demand via RefreshRaceResults.
func (s *Store) RefreshRaces(ctx context.Context, season int, force bool) error {
	if !force {
		lastUpdated, found, err := s.lastUpdatedForSeason(ctx, season)
		if err != nil {
			return err
		}
		if found && !s.isStale(lastUpdated) {
			metrics.RefreshesTotal.WithLabelValues("races", metrics.OutcomeFresh).Inc()
			return nil
		}
	}

	wireRaces, err := s.api.RaceSchedule(ctx, strconv.Itoa(season))
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues("races", metrics.OutcomeFailed).Inc()
		s.logger.Error("race schedule refresh failed", zap.Int("season", season), zap.Error(err))
		return err
	}
	if len(wireRaces) == 0 {
		metrics.RefreshesTotal.WithLabelValues("races", metrics.OutcomeFetched).Inc()
		return nil
	}

	now := s.clock().UTC()
	rows := make([]RaceRow, 0, len(wireRaces))
	for _, wire := range wireRaces {
		rows = append(rows, raceRowFromWire(wire, now))
	}

	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error; err != nil {
		metrics.RefreshesTotal.WithLabelValues("races", metrics.OutcomeFailed).Inc()
		return fmt.Errorf("upsert races: %w", err)
	}

	metrics.RefreshesTotal.WithLabelValues("races", metrics.OutcomeFetched).Inc()
	metrics.CacheRowsWritten.WithLabelValues("races").Add(float64(len(rows)))
	s.logger.Info("race schedule refreshed",
		zap.Int("season", season),
		zap.Int("races", len(rows)))
	s.dispatcher.Publish(TopicRaces)
	return nil
}

// RefreshRaceResults fetches one round's full result set and replaces the
// cached rows in a single transaction: upsert the race, delete prior results,
// insert the new set. Delete-then-insert is required because result-set
// membership can shrink (disqualifications) and stale rows must not survive.
//
// The force parameter is accepted but unused: results are requested on demand
// when a user opens a race, so every call fetches.
func (s *Store) RefreshRaceResults(ctx context.Context, season, round int, force bool) error {
	_ = force

	wireRace, err := s.api.RaceResults(ctx, strconv.Itoa(season), strconv.Itoa(round))
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues("race_results", metrics.OutcomeFailed).Inc()
		s.logger.Error("race results refresh failed",
			zap.Int("season", season),
			zap.Int("round", round),
			zap.Error(err))
		return err
	}
	if wireRace == nil {
		metrics.RefreshesTotal.WithLabelValues("race_results", metrics.OutcomeFetched).Inc()
		return nil
	}

	now := s.clock().UTC()
	raceRow := raceRowFromWire(*wireRace, now)
	resultRows := make([]RaceResultRow, 0, len(wireRace.Results))
	for _, wire := range wireRace.Results {
		resultRows = append(resultRows, resultRowFromWire(wire, raceRow.ID, now))
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&raceRow).Error; err != nil {
			return fmt.Errorf("upsert race: %w", err)
		}
		if err := tx.Where("race_id = ?", raceRow.ID).Delete(&RaceResultRow{}).Error; err != nil {
			return fmt.Errorf("delete prior results: %w", err)
		}
		if len(resultRows) == 0 {
			return nil
		}
		if err := tx.Create(&resultRows).Error; err != nil {
			return fmt.Errorf("insert results: %w", err)
		}
		return nil
	})
	if txErr != nil {
		metrics.RefreshesTotal.WithLabelValues("race_results", metrics.OutcomeFailed).Inc()
		return txErr
	}

	metrics.RefreshesTotal.WithLabelValues("race_results", metrics.OutcomeFetched).Inc()
	metrics.CacheRowsWritten.WithLabelValues("race_results").Add(float64(len(resultRows)))
	s.logger.Info("race results refreshed",
		zap.Int("season", season),
		zap.Int("round", round),
		zap.Int("results", len(resultRows)))
	s.dispatcher.Publish(TopicRaces)
	return nil
}

func (s *Store) lastUpdatedForSeason(ctx context.Context, season int) (int64, bool, error) {
	var row RaceRow
	err := s.db.WithContext(ctx).
		Where("season = ?", season).
		Order("last_updated_ms DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query last updated: %w", err)
	}
	return row.LastUpdatedMillis, true, nil
}

func (s *Store) isStale(lastUpdatedMillis int64) bool {
	return s.clock().UTC().Sub(time.UnixMilli(lastUpdatedMillis)) > s.staleAfter
}
