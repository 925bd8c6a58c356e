// Package astronomy fetches the current constellation of the ten classical
// astrological bodies from the AstronomyAPI positions endpoint.
//
// A fact set is all-or-nothing: every body must be present in the
// response, otherwise the fetch fails with apperr.DataUnavailable and the
// caller never sees a partial result.
package astronomy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/astro-channel-bot/internal/apperr"
)

const (
	// DefaultBaseURL is the AstronomyAPI base URL.
	DefaultBaseURL = "https://api.astronomyapi.com"

	positionsPath  = "/api/v2/bodies/positions"
	defaultTimeout = 30 * time.Second
	op             = "astronomy.fetchPositions"
)

// Observer is the fixed observation point sent with every request.
type Observer struct {
	Latitude  float64
	Longitude float64
	Elevation float64
}

// Athens is the observation point the channel has always used.
var Athens = Observer{Latitude: 37.9838, Longitude: 23.7275, Elevation: 1}

// Options configures a Client.
type Options struct {
	AppID     string
	AppSecret string
	BaseURL   string
	Observer  Observer
	// TimeZone determines the calendar date and time of day sent for an
	// instant. Defaults to UTC.
	TimeZone *time.Location
	Timeout  time.Duration
}

// Client queries body positions.
type Client struct {
	httpClient *http.Client
	appID      string
	appSecret  string
	baseURL    string
	observer   Observer
	tz         *time.Location
}

// NewClient creates a positions client. Missing credentials are not an
// error here; FetchPositions reports them.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TimeZone == nil {
		opts.TimeZone = time.UTC
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		appID:      opts.AppID,
		appSecret:  opts.AppSecret,
		baseURL:    opts.BaseURL,
		observer:   opts.Observer,
		tz:         opts.TimeZone,
	}
}

// --- API response types ---

type positionsResponse struct {
	Data struct {
		Table struct {
			Rows []tableRow `json:"rows"`
		} `json:"table"`
	} `json:"data"`
}

type tableRow struct {
	Entry struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"entry"`
	Cells []struct {
		Position struct {
			Constellation struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"constellation"`
		} `json:"position"`
	} `json:"cells"`
}

// FetchPositions returns the constellation of every body at instant, as
// seen from the configured observer.
func (c *Client) FetchPositions(ctx context.Context, instant time.Time) (FactSet, error) {
	if c.appID == "" || c.appSecret == "" {
		return FactSet{}, apperr.Wrap(apperr.DataUnavailable, op,
			fmt.Errorf("ASTRONOMY_APP_ID and ASTRONOMY_APP_SECRET are required: %w", apperr.ErrMissingConfig))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.positionsURL(instant), nil)
	if err != nil {
		return FactSet{}, apperr.Wrap(apperr.DataUnavailable, op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Basic "+c.authToken())
	req.Header.Set("Accept", "application/json")

	log.Debug().Str("method", http.MethodGet).Str("path", positionsPath).Msg("AstronomyAPI request")
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("AstronomyAPI response")
		return FactSet{}, apperr.Wrap(apperr.DataUnavailable, op, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()
	log.Debug().Int("statusCode", resp.StatusCode).Dur("duration", duration).Msg("AstronomyAPI response")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FactSet{}, apperr.Wrap(apperr.DataUnavailable, op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error().Int("statusCode", resp.StatusCode).Str("body", truncate(string(body), 200)).Msg("AstronomyAPI error")
		return FactSet{}, apperr.WithStatus(apperr.DataUnavailable, op, resp.StatusCode,
			fmt.Errorf("unexpected status (body: %s)", truncate(string(body), 200)))
	}

	var parsed positionsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return FactSet{}, apperr.Wrap(apperr.DataUnavailable, op,
			fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200)))
	}

	facts, err := factsFromRows(parsed.Data.Table.Rows)
	if err != nil {
		return FactSet{}, apperr.Wrap(apperr.DataUnavailable, op, err)
	}
	log.Info().Str("sun", facts.Constellation(Sun)).Str("moon", facts.Constellation(Moon)).Msg("Body positions fetched")
	return facts, nil
}

// positionsURL builds the request URL. from_date and to_date are the same
// day; both the date and the time of day come from instant in c.tz.
func (c *Client) positionsURL(instant time.Time) string {
	local := instant.In(c.tz)
	day := local.Format(time.DateOnly)

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.observer.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(c.observer.Longitude, 'f', -1, 64))
	q.Set("elevation", strconv.FormatFloat(c.observer.Elevation, 'f', -1, 64))
	q.Set("from_date", day)
	q.Set("to_date", day)
	q.Set("time", local.Format(time.TimeOnly))
	q.Set("output", "table")
	return c.baseURL + positionsPath + "?" + q.Encode()
}

func (c *Client) authToken() string {
	return base64.StdEncoding.EncodeToString([]byte(c.appID + ":" + c.appSecret))
}

// factsFromRows picks the row of every body by exact name match.
func factsFromRows(rows []tableRow) (FactSet, error) {
	byName := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row.Cells) == 0 {
			continue
		}
		byName[row.Entry.Name] = row.Cells[0].Position.Constellation.Name
	}

	facts := make([]Fact, 0, len(Bodies))
	var missing []string
	for _, body := range Bodies {
		constellation, ok := byName[body]
		if !ok || constellation == "" {
			missing = append(missing, body)
			continue
		}
		facts = append(facts, Fact{Body: body, Constellation: constellation})
	}
	if len(missing) > 0 {
		return FactSet{}, fmt.Errorf("incomplete response: missing bodies %v", missing)
	}
	return FactSet{facts: facts}, nil
}

// truncate returns the first n bytes of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
