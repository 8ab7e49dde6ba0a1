package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/parrishdev/pitwall/internal/drivers"
	"github.com/parrishdev/pitwall/internal/races"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

var (
	errMissingRaceStore     = errors.New("race store dependency required")
	errMissingDriverStore   = errors.New("driver store dependency required")
	errMissingSettingsStore = errors.New("settings store dependency required")
)

type RaceReader interface {
	RacesForSeason(ctx context.Context, season int) ([]races.Race, error)
	RaceWithResults(ctx context.Context, season, round int) (*races.RaceWithResults, error)
	RefreshRaces(ctx context.Context, season int, force bool) error
	RefreshRaceResults(ctx context.Context, season, round int, force bool) error
}

type DriverReader interface {
	AllDrivers(ctx context.Context) ([]drivers.Driver, error)
	RefreshLatestDrivers(ctx context.Context, force bool) error
}

type SettingsAccess interface {
	IsDarkMode(ctx context.Context) (bool, error)
	SetDarkMode(ctx context.Context, enabled bool) error
}

type Dependencies struct {
	RaceStore     RaceReader
	DriverStore   DriverReader
	SettingsStore SettingsAccess
	Logger        *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.RaceStore == nil {
		return nil, errMissingRaceStore
	}
	if deps.DriverStore == nil {
		return nil, errMissingDriverStore
	}
	if deps.SettingsStore == nil {
		return nil, errMissingSettingsStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID)
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		raceStore:     deps.RaceStore,
		driverStore:   deps.DriverStore,
		settingsStore: deps.SettingsStore,
		logger:        logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/seasons/:season/races", handler.handleSeasonRaces)
	api.GET("/seasons/:season/races/:round", handler.handleRaceResults)
	api.GET("/drivers", handler.handleDrivers)
	api.POST("/refresh/races/:season", handler.handleRefreshRaces)
	api.POST("/refresh/results/:season/:round", handler.handleRefreshResults)
	api.POST("/refresh/drivers", handler.handleRefreshDrivers)
	api.GET("/settings/theme", handler.handleGetTheme)
	api.PUT("/settings/theme", handler.handlePutTheme)

	return router, nil
}

// requestID assigns each request an identifier so log lines and responses
// can be correlated; an inbound header wins over a generated one.
func requestID(c *gin.Context) {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(requestIDHeader, id)
	c.Next()
}

type httpHandler struct {
	raceStore     RaceReader
	driverStore   DriverReader
	settingsStore SettingsAccess
	logger        *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type racePayload struct {
	Season      int    `json:"season"`
	Round       int    `json:"round"`
	Name        string `json:"name"`
	CircuitName string `json:"circuit_name"`
	Country     string `json:"country"`
	Locality    string `json:"locality"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
}

func raceToPayload(race races.Race) racePayload {
	return racePayload{
		Season:      race.Season,
		Round:       race.Round,
		Name:        race.Name,
		CircuitName: race.Circuit.Name,
		Country:     race.Circuit.Location.Country,
		Locality:    race.Circuit.Location.Locality,
		Date:        race.Date,
		Time:        race.Time,
	}
}

func (h *httpHandler) handleSeasonRaces(c *gin.Context) {
	season, ok := parsePositiveParam(c, "season")
	if !ok {
		return
	}
	list, err := h.raceStore.RacesForSeason(c.Request.Context(), season)
	if err != nil {
		h.logger.Error("failed to read season races", zap.Int("season", season), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read_failed"})
		return
	}
	payload := make([]racePayload, 0, len(list))
	for _, race := range list {
		payload = append(payload, raceToPayload(race))
	}
	c.JSON(http.StatusOK, gin.H{"races": payload})
}

type resultPayload struct {
	Position       int     `json:"position"`
	PositionText   string  `json:"position_text"`
	DriverNumber   string  `json:"driver_number"`
	DriverName     string  `json:"driver_name"`
	DriverCode     string  `json:"driver_code,omitempty"`
	Constructor    string  `json:"constructor"`
	Points         float64 `json:"points"`
	Grid           int     `json:"grid"`
	Laps           int     `json:"laps"`
	Status         string  `json:"status"`
	FastestLap     bool    `json:"fastest_lap"`
	FastestLapTime string  `json:"fastest_lap_time,omitempty"`
}

func resultToPayload(result races.RaceResult) resultPayload {
	payload := resultPayload{
		Position:     result.Position,
		PositionText: result.PositionText,
		DriverNumber: result.Driver.PermanentNumber,
		DriverName:   result.Driver.GivenName + " " + result.Driver.FamilyName,
		DriverCode:   result.Driver.Code,
		Constructor:  result.Constructor.Name,
		Points:       result.Points,
		Grid:         result.Grid,
		Laps:         result.Laps,
		Status:       result.Status,
	}
	if result.FastestLap != nil {
		payload.FastestLap = result.FastestLap.Rank == 1
		payload.FastestLapTime = result.FastestLap.Time
	}
	return payload
}

func (h *httpHandler) handleRaceResults(c *gin.Context) {
	season, ok := parsePositiveParam(c, "season")
	if !ok {
		return
	}
	round, ok := parsePositiveParam(c, "round")
	if !ok {
		return
	}
	record, err := h.raceStore.RaceWithResults(c.Request.Context(), season, round)
	if err != nil {
		h.logger.Error("failed to read race results",
			zap.Int("season", season),
			zap.Int("round", round),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read_failed"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "race_not_found"})
		return
	}
	results := make([]resultPayload, 0, len(record.Results))
	for _, result := range record.Results {
		results = append(results, resultToPayload(result))
	}
	c.JSON(http.StatusOK, gin.H{
		"race":    raceToPayload(record.Race),
		"results": results,
	})
}

type driverPayload struct {
	Season             int     `json:"season"`
	DriverNumber       int     `json:"driver_number"`
	FullName           string  `json:"full_name"`
	Code               string  `json:"code"`
	TeamName           string  `json:"team_name"`
	TeamColour         string  `json:"team_colour,omitempty"`
	HeadshotURL        *string `json:"headshot_url"`
	CountryCode        string  `json:"country_code,omitempty"`
	ChampionshipRank   int     `json:"championship_rank"`
	ChampionshipPoints float64 `json:"championship_points"`
	Wins               int     `json:"wins"`
}

func driverToPayload(driver drivers.Driver) driverPayload {
	return driverPayload{
		Season:             driver.Season,
		DriverNumber:       driver.DriverNumber,
		FullName:           driver.FullName,
		Code:               driver.NameAcronym,
		TeamName:           driver.TeamName,
		TeamColour:         driver.TeamColour,
		HeadshotURL:        driver.HeadshotURL,
		CountryCode:        driver.CountryCode,
		ChampionshipRank:   driver.ChampionshipPosition,
		ChampionshipPoints: driver.ChampionshipPoints,
		Wins:               driver.Wins,
	}
}

func (h *httpHandler) handleDrivers(c *gin.Context) {
	list, err := h.driverStore.AllDrivers(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to read drivers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read_failed"})
		return
	}
	payload := make([]driverPayload, 0, len(list))
	for _, driver := range list {
		payload = append(payload, driverToPayload(driver))
	}
	c.JSON(http.StatusOK, gin.H{"drivers": payload})
}

func (h *httpHandler) handleRefreshRaces(c *gin.Context) {
	season, ok := parsePositiveParam(c, "season")
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	if err := h.raceStore.RefreshRaces(c.Request.Context(), season, force); err != nil {
		h.logger.Warn("race refresh failed", zap.Int("season", season), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "refresh_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

func (h *httpHandler) handleRefreshResults(c *gin.Context) {
	season, ok := parsePositiveParam(c, "season")
	if !ok {
		return
	}
	round, ok := parsePositiveParam(c, "round")
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	if err := h.raceStore.RefreshRaceResults(c.Request.Context(), season, round, force); err != nil {
		h.logger.Warn("results refresh failed",
			zap.Int("season", season),
			zap.Int("round", round),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "refresh_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

func (h *httpHandler) handleRefreshDrivers(c *gin.Context) {
	force := c.Query("force") == "true"
	if err := h.driverStore.RefreshLatestDrivers(c.Request.Context(), force); err != nil {
		h.logger.Warn("driver refresh failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "refresh_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

type themePayload struct {
	DarkMode bool `json:"dark_mode"`
}

func (h *httpHandler) handleGetTheme(c *gin.Context) {
	enabled, err := h.settingsStore.IsDarkMode(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to read theme preference", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read_failed"})
		return
	}
	c.JSON(http.StatusOK, themePayload{DarkMode: enabled})
}

func (h *httpHandler) handlePutTheme(c *gin.Context) {
	var request themePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.settingsStore.SetDarkMode(c.Request.Context(), request.DarkMode); err != nil {
		h.logger.Error("failed to store theme preference", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "write_failed"})
		return
	}
	c.JSON(http.StatusOK, themePayload{DarkMode: request.DarkMode})
}

func parsePositiveParam(c *gin.Context, name string) (int, bool) {
	value, err := strconv.Atoi(c.Param(name))
	if err != nil || value <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_" + name})
		return 0, false
	}
	return value, true
}
