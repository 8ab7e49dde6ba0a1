package drivers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/parrishdev/pitwall/internal/jolpica"
	"github.com/parrishdev/pitwall/internal/metrics"
	"github.com/parrishdev/pitwall/internal/openf1"
	"github.com/parrishdev/pitwall/internal/stream"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TopicDrivers is published on every write to the drivers table.
const TopicDrivers = "drivers"

const defaultStaleAfter = time.Hour

var (
	errMissingDatabase     = errors.New("database handle is required")
	errMissingRosterAPI    = errors.New("roster api is required")
	errMissingStandingsAPI = errors.New("standings api is required")
	errMissingDispatcher   = errors.New("dispatcher is required")
	errInvalidSeason       = errors.New("season must be a positive year")
)

// RosterAPI is the slice of the telemetry API the driver store consumes.
type RosterAPI interface {
	Drivers(ctx context.Context, sessionKey string) ([]openf1.Driver, error)
}

// StandingsAPI is the slice of the historical API the driver store consumes.
type StandingsAPI interface {
	DriverStandings(ctx context.Context, season string) ([]jolpica.DriverStanding, error)
}

type StoreConfig struct {
	Database   *gorm.DB
	Roster     RosterAPI
	Standings  StandingsAPI
	Dispatcher *stream.Dispatcher
	Clock      func() time.Time
	StaleAfter time.Duration
	Season     int
	Logger     *zap.Logger
}

// Store merges two independently-shaped upstream sources into one driver
// cache: the telemetry roster (headshots, team colors, no points) and the
// historical standings (points, position, no headshots). Standings is the
// load-bearing source; the roster is supplementary.
type Store struct {
	db         *gorm.DB
	roster     RosterAPI
	standings  StandingsAPI
	dispatcher *stream.Dispatcher
	clock      func() time.Time
	staleAfter time.Duration
	season     int
	logger     *zap.Logger
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Roster == nil {
		return nil, errMissingRosterAPI
	}
	if cfg.Standings == nil {
		return nil, errMissingStandingsAPI
	}
	if cfg.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	if cfg.Season <= 0 {
		return nil, errInvalidSeason
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
		roster:     cfg.Roster,
		standings:  cfg.Standings,
		dispatcher: cfg.Dispatcher,
		clock:      clock,
		staleAfter: staleAfter,
		season:     cfg.Season,
		logger:     logger,
	}, nil
}

// DriversForSession reads cached drivers for one session, ordered by driver
// number.
func (s *Store) DriversForSession(ctx context.Context, sessionKey int) ([]Driver, error) {
	var rows []DriverRow
	if err := s.db.WithContext(ctx).
		Where("session_key = ?", sessionKey).
		Order("driver_number ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query drivers: %w", err)
	}
	return toDomainSlice(rows), nil
}

// DriverByNumber reads one cached driver, or nil when absent.
func (s *Store) DriverByNumber(ctx context.Context, driverNumber int) (*Driver, error) {
	var row DriverRow
	err := s.db.WithContext(ctx).
		Where("driver_number = ?", driverNumber).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query driver: %w", err)
	}
	driver := row.toDomain()
	return &driver, nil
}

// AllDrivers reads every cached driver, championship order first.
func (s *Store) AllDrivers(ctx context.Context) ([]Driver, error) {
	var rows []DriverRow
	if err := s.db.WithContext(ctx).
		Order("championship_points DESC, driver_number ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query drivers: %w", err)
	}
	return toDomainSlice(rows), nil
}

// StreamDrivers emits the cached session roster on every cache write.
func (s *Store) StreamDrivers(ctx context.Context, sessionKey int) (<-chan []Driver, func()) {
	return stream.Snapshots(ctx, s.dispatcher, TopicDrivers, s.logger, func(streamCtx context.Context) ([]Driver, error) {
		return s.DriversForSession(streamCtx, sessionKey)
	})
}

// StreamDriver emits one driver reactively; nil until cached.
func (s *Store) StreamDriver(ctx context.Context, driverNumber int) (<-chan *Driver, func()) {
	return stream.Snapshots(ctx, s.dispatcher, TopicDrivers, s.logger, func(streamCtx context.Context) (*Driver, error) {
		return s.DriverByNumber(streamCtx, driverNumber)
	})
}

// StreamAllDrivers emits the full cached roster in championship order.
func (s *Store) StreamAllDrivers(ctx context.Context) (<-chan []Driver, func()) {
	return stream.Snapshots(ctx, s.dispatcher, TopicDrivers, s.logger, func(streamCtx context.Context) ([]Driver, error) {
		return s.AllDrivers(streamCtx)
	})
}

// RefreshDrivers fetches one session's roster and upserts it, unless the
// cached session is still fresh and force is false. Single-source: no
// standings merge happens here.
func (s *Store) RefreshDrivers(ctx context.Context, sessionKey int, force bool) error {
	if !force {
		lastUpdated, found, err := s.lastUpdatedForSession(ctx, sessionKey)
		if err != nil {
			return err
		}
		if found && !s.isStale(lastUpdated) {
			metrics.RefreshesTotal.WithLabelValues("drivers", metrics.OutcomeFresh).Inc()
			return nil
		}
	}

	wireDrivers, err := s.roster.Drivers(ctx, strconv.Itoa(sessionKey))
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues("drivers", metrics.OutcomeFailed).Inc()
		s.logger.Error("driver session refresh failed", zap.Int("session_key", sessionKey), zap.Error(err))
		return err
	}

	now := s.clock().UTC()
	rows := make([]DriverRow, 0, len(wireDrivers))
	for _, wire := range wireDrivers {
		if row := driverRowFromWire(wire, s.season, now); row != nil {
			rows = append(rows, *row)
		}
	}
	if len(rows) == 0 {
		metrics.RefreshesTotal.WithLabelValues("drivers", metrics.OutcomeFetched).Inc()
		return nil
	}

	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error; err != nil {
		metrics.RefreshesTotal.WithLabelValues("drivers", metrics.OutcomeFailed).Inc()
		return fmt.Errorf("upsert drivers: %w", err)
	}

	metrics.RefreshesTotal.WithLabelValues("drivers", metrics.OutcomeFetched).Inc()
	metrics.CacheRowsWritten.WithLabelValues("drivers").Add(float64(len(rows)))
	s.logger.Info("driver session refreshed",
		zap.Int("session_key", sessionKey),
		zap.Int("drivers", len(rows)))
	s.dispatcher.Publish(TopicDrivers)
	return nil
}

// RefreshLatestDrivers rebuilds the driver cache from both upstream sources:
// the latest telemetry roster and the championship standings, joined by
// upper-cased three-letter code. Standings falls back to the prior season
// when the configured season has none yet. If the roster fetch fails but
// standings succeeds, rows are synthesized from standings alone (degraded
// path); if standings fails, the refresh fails. The successful set replaces
// every cached driver atomically so no prior season or session lingers.
func (s *Store) RefreshLatestDrivers(ctx context.Context, force bool) error {
	if !force {
		lastUpdated, found, err := s.latestUpdateTime(ctx)
		if err != nil {
			return err
		}
		if found && !s.isStale(lastUpdated) {
			metrics.RefreshesTotal.WithLabelValues("drivers", metrics.OutcomeFresh).Inc()
			return nil
		}
	}

	type rosterFetch struct {
		drivers []openf1.Driver
		err     error
	}
	type standingsFetch struct {
		standings map[string]jolpica.DriverStanding
		err       error
	}
	rosterCh := make(chan rosterFetch, 1)
	standingsCh := make(chan standingsFetch, 1)
	go func() {
		wireDrivers, err := s.roster.Drivers(ctx, openf1.SessionLatest)
		rosterCh <- rosterFetch{drivers: wireDrivers, err: err}
	}()
	go func() {
		standingsByCode, err := s.fetchCurrentStandings(ctx)
		standingsCh <- standingsFetch{standings: standingsByCode, err: err}
	}()
	roster := <-rosterCh
	standings := <-standingsCh

	if standings.err != nil {
		metrics.RefreshesTotal.WithLabelValues("drivers", metrics.OutcomeFailed).Inc()
		s.logger.Error("standings refresh failed", zap.Error(standings.err))
		return standings.err
	}

	now := s.clock().UTC()

	if roster.err != nil {
		rows := make([]DriverRow, 0, len(standings.standings))
		for _, standing := range standings.standings {
			if row := driverRowFromStanding(standing, s.season, now); row != nil {
				rows = append(rows, *row)
			}
		}
		if err := s.replaceAll(ctx, rows); err != nil {
			metrics.RefreshesTotal.WithLabelValues("drivers", metrics.OutcomeFailed).Inc()
			return err
		}
		metrics.RefreshesTotal.WithLabelValues("drivers", metrics.OutcomeDegraded).Inc()
		s.logger.Warn("roster unavailable, drivers synthesized from standings",
			zap.Int("drivers", len(rows)),
			zap.Error(roster.err))
		s.dispatcher.Publish(TopicDrivers)
		return nil
	}

	rows := make([]DriverRow, 0, len(roster.drivers))
	for _, wire := range roster.drivers {
		row := driverRowFromWire(wire, s.season, now)
		if row == nil {
			continue
		}
		if standing, ok := standings.standings[strings.ToUpper(row.NameAcronym)]; ok {
			applyStanding(row, standing)
		}
		rows = append(rows, *row)
	}
	if len(rows) == 0 {
		metrics.RefreshesTotal.WithLabelValues("drivers", metrics.OutcomeFetched).Inc()
		return nil
	}

	if err := s.replaceAll(ctx, rows); err != nil {
		metrics.RefreshesTotal.WithLabelValues("drivers", metrics.OutcomeFailed).Inc()
		return err
	}
	metrics.RefreshesTotal.WithLabelValues("drivers", metrics.OutcomeFetched).Inc()
	metrics.CacheRowsWritten.WithLabelValues("drivers").Add(float64(len(rows)))
	s.logger.Info("drivers refreshed", zap.Int("drivers", len(rows)))
	s.dispatcher.Publish(TopicDrivers)
	return nil
}

// fetchCurrentStandings returns the configured season's standings keyed by
// upper-cased driver code, falling back to the prior season when the current
// one has no standings yet (start of a season before any race has run).
// Entries with an empty code are dropped; they can never match a roster row.
func (s *Store) fetchCurrentStandings(ctx context.Context) (map[string]jolpica.DriverStanding, error) {
	wireStandings, err := s.standings.DriverStandings(ctx, strconv.Itoa(s.season))
	if err != nil {
		return nil, err
	}
	if len(wireStandings) == 0 {
		s.logger.Debug("no standings for season, trying prior year", zap.Int("season", s.season))
		wireStandings, err = s.standings.DriverStandings(ctx, strconv.Itoa(s.season-1))
		if err != nil {
			return nil, err
		}
	}

	byCode := make(map[string]jolpica.DriverStanding, len(wireStandings))
	for _, standing := range wireStandings {
		code := strings.ToUpper(standing.Driver.Code)
		if code == "" {
			continue
		}
		byCode[code] = standing
	}
	return byCode, nil
}

// replaceAll swaps the entire driver table for the given rows in one
// transaction.
func (s *Store) replaceAll(ctx context.Context, rows []DriverRow) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&DriverRow{}).Error; err != nil {
			return fmt.Errorf("delete drivers: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert drivers: %w", err)
		}
		return nil
	})
}

func (s *Store) lastUpdatedForSession(ctx context.Context, sessionKey int) (int64, bool, error) {
	var row DriverRow
	err := s.db.WithContext(ctx).
		Where("session_key = ?", sessionKey).
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

func (s *Store) latestUpdateTime(ctx context.Context) (int64, bool, error) {
	var row DriverRow
	err := s.db.WithContext(ctx).
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

func toDomainSlice(rows []DriverRow) []Driver {
	out := make([]Driver, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}
