// Package nhl implements the hockey.Feed interface against the NHL api-web
// JSON endpoints.
package nhl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avoronin/oddscout/internal/hockey"
)

// DefaultBaseURL is the production api-web endpoint.
const DefaultBaseURL = "https://api-web.nhle.com"

// Config controls the NHL client.
type Config struct {
	// BaseURL overrides the api-web endpoint, primarily for tests.
	BaseURL string
	// Timeout bounds a single request. Defaults to 20s.
	Timeout time.Duration
}

// Client fetches schedule, standings and game results from api-web.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}
}

type nameField struct {
	Default string `json:"default"`
}

type scheduleTeam struct {
	Name      nameField `json:"name"`
	PlaceName nameField `json:"placeName"`
	Score     *int      `json:"score"`
}

func (t scheduleTeam) displayName() string {
	if t.Name.Default != "" {
		return t.Name.Default
	}
	return t.PlaceName.Default
}

type scheduleGame struct {
	ID           int64        `json:"id"`
	StartTimeUTC string       `json:"startTimeUTC"`
	HomeTeam     scheduleTeam `json:"homeTeam"`
	AwayTeam     scheduleTeam `json:"awayTeam"`
}

type scheduleResponse struct {
	GameWeek []struct {
		Games []scheduleGame `json:"games"`
	} `json:"gameWeek"`
}

// Schedule returns the games scheduled for date. Games missing a team name
// are dropped rather than propagated.
func (c *Client) Schedule(ctx context.Context, date time.Time) ([]hockey.Matchup, error) {
	var resp scheduleResponse
	url := fmt.Sprintf("%s/v1/schedule/%s", c.baseURL, date.Format("2006-01-02"))
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	var out []hockey.Matchup
	for _, day := range resp.GameWeek {
		for _, game := range day.Games {
			home := game.HomeTeam.displayName()
			away := game.AwayTeam.displayName()
			if home == "" || away == "" {
				continue
			}
			start, _ := time.Parse(time.RFC3339, game.StartTimeUTC)
			out = append(out, hockey.Matchup{
				GameID:   fmt.Sprintf("%d", game.ID),
				StartUTC: start,
				Home:     home,
				Away:     away,
			})
		}
	}
	return out, nil
}

type standingsResponse struct {
	Standings []struct {
		TeamName  nameField `json:"teamName"`
		PointPctg *float64  `json:"pointPctg"`
	} `json:"standings"`
}

// Standings returns team name -> points percentage as of date. Rows without
// a name or metric are dropped.
func (c *Client) Standings(ctx context.Context, date time.Time) (map[string]float64, error) {
	var resp standingsResponse
	url := fmt.Sprintf("%s/v1/standings/%s", c.baseURL, date.Format("2006-01-02"))
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(resp.Standings))
	for _, row := range resp.Standings {
		if row.TeamName.Default == "" || row.PointPctg == nil {
			continue
		}
		out[row.TeamName.Default] = *row.PointPctg
	}
	return out, nil
}

type landingResponse struct {
	GameState string       `json:"gameState"`
	HomeTeam  scheduleTeam `json:"homeTeam"`
	AwayTeam  scheduleTeam `json:"awayTeam"`
}

// FinalResult looks up a game's outcome. A game that is not yet in the FINAL
// state, or whose payload is missing scores, reports Finalized=false.
func (c *Client) FinalResult(ctx context.Context, gameID string) (hockey.FinalResult, error) {
	var resp landingResponse
	url := fmt.Sprintf("%s/v1/gamecenter/%s/landing", c.baseURL, gameID)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return hockey.FinalResult{}, err
	}
	if resp.GameState != "FINAL" {
		return hockey.FinalResult{}, nil
	}
	home := resp.HomeTeam.displayName()
	away := resp.AwayTeam.displayName()
	if home == "" || away == "" || resp.HomeTeam.Score == nil || resp.AwayTeam.Score == nil {
		return hockey.FinalResult{}, nil
	}
	hs, as := *resp.HomeTeam.Score, *resp.AwayTeam.Score
	return hockey.FinalResult{
		Finalized: true,
		HomeScore: hs,
		AwayScore: as,
		Score:     fmt.Sprintf("%s %d — %s %d", away, as, home, hs),
	}, nil
}

// Sources describes the api-web endpoints consulted for date.
func (c *Client) Sources(date time.Time) []hockey.SourceRef {
	day := date.Format("2006-01-02")
	return []hockey.SourceRef{
		{Name: "NHL schedule API", URL: fmt.Sprintf("%s/v1/schedule/%s", c.baseURL, day)},
		{Name: "NHL standings API", URL: fmt.Sprintf("%s/v1/standings/%s", c.baseURL, day)},
	}
}

func (c *Client) getJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for reuse
		return fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
