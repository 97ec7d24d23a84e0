package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 5 * time.Minute, // runs block until the container exits
		},
	}
}

// Types matching API responses

type Summary struct {
	Total      int `json:"total requests"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type Outcome struct {
	Container string `json:"container"`
	Result    string `json:"result"`
	Msg       string `json:"msg"`
	Sequence  uint64 `json:"sequence"`
}

type Stat struct {
	Summary  Summary
	Outcomes []Outcome
}

type Job struct {
	Name     string     `json:"name"`
	Image    string     `json:"image"`
	Command  string     `json:"command,omitempty"`
	Timeout  string     `json:"timeout,omitempty"`
	Schedule string     `json:"schedule,omitempty"`
	NextRun  *time.Time `json:"nextRun,omitempty"`
}

type Execution struct {
	ID         string    `json:"id"`
	Job        string    `json:"job"`
	Image      string    `json:"image"`
	Status     string    `json:"status"`
	ErrorKind  string    `json:"errorKind,omitempty"`
	Message    string    `json:"message,omitempty"`
	ExitCode   int       `json:"exitCode"`
	DurationMs int64     `json:"durationMs"`
	StartedAt  time.Time `json:"startedAt"`
	Sequence   uint64    `json:"sequence"`
}

type HealthStatus struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

type Info struct {
	Version   string   `json:"version"`
	Runtime   string   `json:"runtime"`
	Jobs      []string `json:"jobs"`
	Listeners *int     `json:"listeners,omitempty"`
}

// RunError is returned by Run when the job failed. The server reports only
// the status code; the failure detail is recorded under ExecutionID.
type RunError struct {
	StatusCode  int
	ExecutionID string
}

func (e *RunError) Error() string {
	switch e.StatusCode {
	case http.StatusServiceUnavailable:
		return "run failed: container engine unreachable"
	case http.StatusGatewayTimeout:
		return "run failed: timed out"
	case http.StatusNotFound:
		return "run failed: unknown job"
	case http.StatusTooManyRequests:
		return "run failed: rate limited"
	default:
		return "run failed: container error"
	}
}

// Run triggers a job and returns its stdout.
func (c *Client) Run(job string) (string, error) {
	resp, err := c.HTTPClient.Get(c.BaseURL + "/run/" + url.PathEscape(job))
	if err != nil {
		return "", errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", &RunError{StatusCode: resp.StatusCode, ExecutionID: resp.Header.Get("X-Execution-Id")}
	}
	return string(body), nil
}

func (c *Client) Stat() (*Stat, error) {
	var raw []json.RawMessage
	if err := c.get("/stat", &raw); err != nil {
		return nil, err
	}
	if len(raw) != 2 {
		return nil, errors.Newf("unexpected /stat shape: %d elements", len(raw))
	}
	var s Stat
	if err := json.Unmarshal(raw[0], &s.Summary); err != nil {
		return nil, errors.Wrap(err, "decode summary")
	}
	if err := json.Unmarshal(raw[1], &s.Outcomes); err != nil {
		return nil, errors.Wrap(err, "decode outcomes")
	}
	return &s, nil
}

func (c *Client) Errors(n int) ([]string, error) {
	path := "/errors"
	if n > 0 {
		path += "?n=" + strconv.Itoa(n)
	}
	var msgs []string
	if err := c.get(path, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) Jobs() ([]Job, error) {
	var jobs []Job
	if err := c.get("/jobs", &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) Executions(job string, limit int) ([]Execution, error) {
	q := url.Values{}
	if job != "" {
		q.Set("job", job)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/executions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var execs []Execution
	if err := c.get(path, &execs); err != nil {
		return nil, err
	}
	return execs, nil
}

func (c *Client) Execution(id string) (*Execution, error) {
	var e Execution
	if err := c.get("/executions/"+url.PathEscape(id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) Health() (*HealthStatus, error) {
	var h HealthStatus
	if err := c.get("/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) Info() (*Info, error) {
	var i Info
	if err := c.get("/info", &i); err != nil {
		return nil, err
	}
	return &i, nil
}

func (c *Client) WebSocketURL() string {
	base := c.BaseURL
	base = strings.Replace(base, "http://", "ws://", 1)
	base = strings.Replace(base, "https://", "wss://", 1)
	return base + "/ws"
}

// HTTP helpers

func (c *Client) get(path string, v any) error {
	resp, err := c.HTTPClient.Get(c.BaseURL + path)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return errors.Newf("HTTP %d: %s", resp.StatusCode, apiErr.Error)
		}
		return errors.Newf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
