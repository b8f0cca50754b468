package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// jobView mirrors the gateway's job representation.
type jobView struct {
	ID          string     `json:"id"`
	ChannelID   string     `json:"channel_id"`
	Schedule    string     `json:"schedule"`
	Prompt      string     `json:"prompt"`
	Description string     `json:"description,omitempty"`
	CreatorID   string     `json:"creator_id,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	Warning     string     `json:"warning,omitempty"`
}

type newJob struct {
	Schedule    string `json:"schedule"`
	Prompt      string `json:"prompt"`
	Description string `json:"description,omitempty"`
	CreatorID   string `json:"creator_id,omitempty"`
}

// apiError is a non-2xx response from the daemon.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// apiClient talks to the admin API of a running daemon.
type apiClient struct {
	base  string
	token string
	http  *retryablehttp.Client
}

func newAPIClient(base, token string, retries int) (*apiClient, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid daemon address %q", base)
	}
	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = nil
	// Keep the final response so its error body can be reported.
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &apiClient{base: strings.TrimRight(base, "/"), token: token, http: c}, nil
}

func (c *apiClient) listJobs(ctx context.Context, channelID string) ([]jobView, error) {
	path := "/api/jobs"
	if channelID != "" {
		path = "/api/channels/" + url.PathEscape(channelID) + "/jobs"
	}
	var jobs []jobView
	if err := c.do(ctx, http.MethodGet, path, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *apiClient) addJob(ctx context.Context, channelID string, job newJob) (jobView, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return jobView{}, err
	}
	var out jobView
	err = c.do(ctx, http.MethodPost, "/api/channels/"+url.PathEscape(channelID)+"/jobs", body, &out)
	return out, err
}

func (c *apiClient) removeJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil)
}

func (c *apiClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting daemon: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding daemon response: %w", err)
	}
	return nil
}

// isNotFound reports whether err is a 404 from the daemon.
func isNotFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
