package openf1

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/parrishdev/pitwall/internal/metrics"
	"go.uber.org/zap"
)

const (
	apiName        = "openf1"
	defaultTimeout = 30 * time.Second

	// SessionLatest selects the most recent session the API knows about.
	SessionLatest = "latest"
)

// Driver is the wire shape of one roster entry. Every field is optional;
// mapping drops rows missing the fields the cache requires.
type Driver struct {
	DriverNumber  *int    `json:"driver_number"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	FullName      *string `json:"full_name"`
	NameAcronym   *string `json:"name_acronym"`
	CountryCode   *string `json:"country_code"`
	TeamName      *string `json:"team_name"`
	TeamColour    *string `json:"team_colour"`
	HeadshotURL   *string `json:"headshot_url"`
	BroadcastName *string `json:"broadcast_name"`
	SessionKey    *int    `json:"session_key"`
	MeetingKey    *int    `json:"meeting_key"`
}

// Client fetches live/session telemetry data: driver rosters with headshots
// and team colors.
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

// Drivers returns the roster for a session. Pass SessionLatest for the most
// recent session.
func (c *Client) Drivers(ctx context.Context, sessionKey string) ([]Driver, error) {
	if sessionKey == "" {
		sessionKey = SessionLatest
	}
	endpoint := "drivers"
	requestURL := fmt.Sprintf("%s/drivers?session_key=%s", c.baseURL, url.QueryEscape(sessionKey))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	started := time.Now()
	response, err := c.httpClient.Do(request)
	metrics.UpstreamLatency.WithLabelValues(apiName, endpoint).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.UpstreamCallsTotal.WithLabelValues(apiName, endpoint, "error").Inc()
		return nil, fmt.Errorf("fetch drivers: %w", err)
	}
	defer response.Body.Close()

	metrics.UpstreamCallsTotal.WithLabelValues(apiName, endpoint, strconv.Itoa(response.StatusCode)).Inc()
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, fmt.Errorf("fetch drivers: status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read drivers body: %w", err)
	}
	var wireDrivers []Driver
	if err := json.Unmarshal(body, &wireDrivers); err != nil {
		return nil, fmt.Errorf("unmarshal drivers: %w", err)
	}

	c.logger.Debug("openf1 fetch complete",
		zap.String("session_key", sessionKey),
		zap.Int("drivers", len(wireDrivers)))
	return wireDrivers, nil
}
