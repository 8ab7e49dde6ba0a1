package jolpica

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/parrishdev/pitwall/internal/metrics"
	"go.uber.org/zap"
)

const (
	apiName        = "jolpica"
	defaultTimeout = 30 * time.Second
)

// Client fetches historical season data: race schedules, per-round results
// and driver championship standings.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// RaceSchedule returns every race of a season, without results.
func (c *Client) RaceSchedule(ctx context.Context, season string) ([]Race, error) {
	var response raceTableResponse
	url := fmt.Sprintf("%s/%s.json", c.baseURL, season)
	if err := c.getJSON(ctx, "schedule", url, &response); err != nil {
		return nil, err
	}
	return response.MRData.RaceTable.Races, nil
}

// RaceResults returns a single race with its full result set, or nil when
// the API has no race for that round yet.
func (c *Client) RaceResults(ctx context.Context, season, round string) (*Race, error) {
	var response raceTableResponse
	url := fmt.Sprintf("%s/%s/%s/results.json", c.baseURL, season, round)
	if err := c.getJSON(ctx, "results", url, &response); err != nil {
		return nil, err
	}
	wireRaces := response.MRData.RaceTable.Races
	if len(wireRaces) == 0 {
		return nil, nil
	}
	return &wireRaces[0], nil
}

// DriverStandings returns the championship standings for a season. An empty
// slice means the season has no standings yet, not an error.
func (c *Client) DriverStandings(ctx context.Context, season string) ([]DriverStanding, error) {
	var response standingsResponse
	url := fmt.Sprintf("%s/%s/driverStandings.json", c.baseURL, season)
	if err := c.getJSON(ctx, "standings", url, &response); err != nil {
		return nil, err
	}
	lists := response.MRData.StandingsTable.StandingsLists
	if len(lists) == 0 {
		return nil, nil
	}
	return lists[0].DriverStandings, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, url string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	started := time.Now()
	response, err := c.httpClient.Do(request)
	metrics.UpstreamLatency.WithLabelValues(apiName, endpoint).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.UpstreamCallsTotal.WithLabelValues(apiName, endpoint, "error").Inc()
		return fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer response.Body.Close()

	metrics.UpstreamCallsTotal.WithLabelValues(apiName, endpoint, strconv.Itoa(response.StatusCode)).Inc()
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("fetch %s: status %d: %s", endpoint, response.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("read %s body: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("unmarshal %s: %w", endpoint, err)
	}

	c.logger.Debug("jolpica fetch complete",
		zap.String("endpoint", endpoint),
		zap.Int("bytes", len(body)))
	return nil
}
