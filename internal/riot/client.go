// Package riot is a small client for the parts of the Riot Games API the
// crawlers use.
package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/lol-trivia-backend/internal/corpus"
	"github.com/valyala/fasthttp"
	"golang.org/x/text/cases"
)

var (
	ErrNotFound        = errors.New("riot: not found")
	ErrUnknownPlatform = errors.New("riot: unknown platform")
	ErrStatus          = errors.New("riot: unexpected status")
)

const defaultTimeout = 10 * time.Second

// Doer is the subset of *fasthttp.Client the client needs.
type Doer interface {
	DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error
}

type Client struct {
	apiKey string
	http   Doer
	scheme string
}

func NewClient(apiKey string, doer Doer) *Client {
	if doer == nil {
		doer = &fasthttp.Client{Name: "lol-trivia-backend"}
	}
	return &Client{apiKey: apiKey, http: doer, scheme: "https"}
}

type URLOptions struct {
	Platform string
	Endpoint string // may contain {platformId}, {region} and {arg} placeholders
	Args     map[string]string
	Global   bool
}

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

func (c *Client) BuildURL(opts URLOptions) (string, error) {
	p, ok := Platforms[opts.Platform]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, opts.Platform)
	}
	host := p.Host
	if opts.Global {
		host = globalHost
	}

	var missing string
	path := placeholder.ReplaceAllStringFunc(opts.Endpoint, func(m string) string {
		name := m[1 : len(m)-1]
		switch name {
		case "platformId":
			return opts.Platform
		case "region":
			return p.Region
		}
		v, ok := opts.Args[name]
		if !ok {
			missing = name
			return m
		}
		return url.PathEscape(v)
	})
	if missing != "" {
		return "", fmt.Errorf("riot: missing url argument %q", missing)
	}
	return c.scheme + "://" + host + path + "?api_key=" + url.QueryEscape(c.apiKey), nil
}

func (c *Client) getJSON(ctx context.Context, opts URLOptions, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u, err := c.BuildURL(opts)
	if err != nil {
		return err
	}

	timeout := defaultTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(dl))
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(u)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("riot %s: %w", opts.Endpoint, err)
	}
	switch code := resp.StatusCode(); {
	case code == fasthttp.StatusNotFound:
		return ErrNotFound
	case code != fasthttp.StatusOK:
		return fmt.Errorf("%w %d from %s", ErrStatus, code, opts.Endpoint)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", opts.Endpoint, err)
	}
	return nil
}

type Summoner struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ProfileIconID int    `json:"profileIconId"`
}

// summonerKey is how the by-name endpoint keys its response. Casers keep
// state, so each call builds its own.
func summonerKey(name string) string {
	return strings.ReplaceAll(cases.Fold().String(name), " ", "")
}

func (c *Client) SummonerByName(ctx context.Context, platform, name string) (Summoner, error) {
	var body map[string]Summoner
	err := c.getJSON(ctx, URLOptions{
		Platform: platform,
		Endpoint: "/api/lol/{region}/v1.4/summoner/by-name/{summonerNames}",
		Args:     map[string]string{"summonerNames": name},
	}, &body)
	if err != nil {
		return Summoner{}, err
	}
	s, ok := body[summonerKey(name)]
	if !ok {
		return Summoner{}, ErrNotFound
	}
	return s, nil
}

// MaxSummonerIDs is how many ids one SummonersByID call accepts.
const MaxSummonerIDs = 40

// SummonersByID looks up to MaxSummonerIDs summoners at once. Unknown ids
// are missing from the result.
func (c *Client) SummonersByID(ctx context.Context, platform string, ids []int64) (map[int64]Summoner, error) {
	if len(ids) > MaxSummonerIDs {
		return nil, fmt.Errorf("riot: %d summoner ids, at most %d per call", len(ids), MaxSummonerIDs)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = strconv.FormatInt(id, 10)
	}

	var body map[string]Summoner
	err := c.getJSON(ctx, URLOptions{
		Platform: platform,
		Endpoint: "/api/lol/{region}/v1.4/summoner/{summonerIds}",
		Args:     map[string]string{"summonerIds": strings.Join(keys, ",")},
	}, &body)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]Summoner, len(body))
	for _, s := range body {
		out[s.ID] = s
	}
	return out, nil
}

type masteryEntry struct {
	ChampionID     int    `json:"championId"`
	ChampionPoints int64  `json:"championPoints"`
	ChampionLevel  int    `json:"championLevel"`
	LastPlayTime   int64  `json:"lastPlayTime"`
	HighestGrade   string `json:"highestGrade"`
	ChestGranted   bool   `json:"chestGranted"`
}

func (c *Client) Masteries(ctx context.Context, platform string, summonerID int64) ([]corpus.Mastery, error) {
	var body []masteryEntry
	err := c.getJSON(ctx, URLOptions{
		Platform: platform,
		Endpoint: "/championmastery/location/{platformId}/player/{playerId}/champions",
		Args:     map[string]string{"playerId": strconv.FormatInt(summonerID, 10)},
	}, &body)
	if err != nil {
		return nil, err
	}
	out := make([]corpus.Mastery, len(body))
	for i, e := range body {
		out[i] = corpus.Mastery{
			ChampionID:   e.ChampionID,
			Points:       e.ChampionPoints,
			Level:        e.ChampionLevel,
			LastPlayTime: e.LastPlayTime,
			HighestGrade: e.HighestGrade,
			ChestGranted: e.ChestGranted,
		}
	}
	return out, nil
}

type FellowPlayer struct {
	SummonerID int64 `json:"summonerId"`
	TeamID     int   `json:"teamId"`
	ChampionID int   `json:"championId"`
}

type Game struct {
	GameID        int64          `json:"gameId"`
	FellowPlayers []FellowPlayer `json:"fellowPlayers"`
}

func (c *Client) RecentGames(ctx context.Context, platform string, summonerID int64) ([]Game, error) {
	var body struct {
		Games []Game `json:"games"`
	}
	err := c.getJSON(ctx, URLOptions{
		Platform: platform,
		Endpoint: "/api/lol/{region}/v1.3/game/by-summoner/{summonerId}/recent",
		Args:     map[string]string{"summonerId": strconv.FormatInt(summonerID, 10)},
	}, &body)
	if err != nil {
		return nil, err
	}
	return body.Games, nil
}

// Champions fetches the static champion list.
func (c *Client) Champions(ctx context.Context) ([]corpus.Champion, error) {
	var body struct {
		Data map[string]struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	err := c.getJSON(ctx, URLOptions{
		Platform: "EUW1",
		Endpoint: "/api/lol/static-data/{region}/v1.2/champion",
		Global:   true,
	}, &body)
	if err != nil {
		return nil, err
	}
	out := make([]corpus.Champion, 0, len(body.Data))
	for key, e := range body.Data {
		out = append(out, corpus.Champion{ID: e.ID, Key: key, Name: e.Name})
	}
	return out, nil
}
