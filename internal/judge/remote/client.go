package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"

	"github.com/aedificium/mapper/pkg/aedificium"
)

var _ aedificium.Judge = &Client{}

// ProblemSizes maps the single-layer contest problems to their room counts.
var ProblemSizes = map[string]int{
	"probatio": 3,
	"primus":   6,
	"secundus": 12,
	"tertius":  18,
	"quartus":  24,
	"quintus":  30,
}

// StatusError is a non-200 judge response.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.Endpoint, e.Status, e.Body)
}

// Client talks to the contest judge over HTTP. Every Select starts a new
// session with a fresh hidden map.
type Client struct {
	httpClient *http.Client
	cfg        Config
	log        logrus.FieldLogger

	problem    string
	rooms      int
	queryCount int
}

func NewClient(cfg Config, log logrus.FieldLogger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		log:        log,
	}
}

type selectRequest struct {
	ID   string `json:"id"`
	Name string `json:"problemName"`
}

type selectResponse struct {
	Name string `json:"problemName"`
}

type exploreRequest struct {
	ID    string   `json:"id"`
	Plans []string `json:"plans"`
}

type exploreResponse struct {
	Results    [][]int `json:"results"`
	QueryCount int     `json:"queryCount"`
}

type guessRequest struct {
	ID  string           `json:"id"`
	Map aedificium.Guess `json:"map"`
}

type guessResponse struct {
	Correct bool `json:"correct"`
}

// Select starts a session on the named problem.
func (c *Client) Select(ctx context.Context, problem string) error {
	rooms, ok := ProblemSizes[problem]
	if !ok {
		return fmt.Errorf("unknown problem %q", problem)
	}
	var res selectResponse
	if err := c.post(ctx, "select", selectRequest{ID: c.cfg.ID, Name: problem}, &res); err != nil {
		return err
	}
	if res.Name != problem {
		return fmt.Errorf("unexpected problem name in response: got %s, want %s", res.Name, problem)
	}
	c.problem = problem
	c.rooms = rooms
	c.log.WithFields(logrus.Fields{"problem": problem, "rooms": rooms}).Info("selected problem")
	return nil
}

func (c *Client) NumRooms() int {
	return c.rooms
}

// QueryCount is the score reported by the last explore response.
func (c *Client) QueryCount() int {
	return c.queryCount
}

func (c *Client) Explore(ctx context.Context, plans []string) ([][]int, error) {
	var res exploreResponse
	if err := c.post(ctx, "explore", exploreRequest{ID: c.cfg.ID, Plans: plans}, &res); err != nil {
		return nil, err
	}
	if len(res.Results) != len(plans) {
		return nil, fmt.Errorf("explore returned %d results for %d plans", len(res.Results), len(plans))
	}
	c.queryCount = res.QueryCount
	c.log.WithFields(logrus.Fields{"plans": len(plans), "queryCount": res.QueryCount}).Debug("explored")
	return res.Results, nil
}

func (c *Client) Guess(ctx context.Context, guess aedificium.Guess) (bool, error) {
	var res guessResponse
	if err := c.post(ctx, "guess", guessRequest{ID: c.cfg.ID, Map: guess}, &res); err != nil {
		return false, err
	}
	c.log.WithFields(logrus.Fields{"problem": c.problem, "correct": res.Correct}).Info("guessed")
	return res.Correct, nil
}

// post sends a JSON request and decodes the response, retrying network
// failures, 5xx and 429 responses with exponential backoff.
func (c *Client) post(ctx context.Context, endpoint string, request, response any) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
	}
	return retry.Do(
		func() error {
			return c.do(ctx, endpoint, payload, response)
		},
		retry.Context(ctx),
		retry.Attempts(c.cfg.Attempts),
		retry.Delay(c.cfg.Delay),
		retry.MaxDelay(c.cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.WithFields(logrus.Fields{"endpoint": endpoint, "try": n + 1}).WithError(err).Warn("judge request failed, retrying")
		}),
	)
}

func (c *Client) do(ctx context.Context, endpoint string, payload []byte, response any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.endpoint(endpoint), bytes.NewReader(payload))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to create %s request: %w", endpoint, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		statusErr := &StatusError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(body)}
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Unrecoverable(statusErr)
		}
		return statusErr
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to decode %s response: %w", endpoint, err))
	}
	return nil
}
