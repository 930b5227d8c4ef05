// Package kanswers provides a client for the k-answers diagnostic and
// administrative API.
package kanswers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a k-answers admin API client.
type Client struct {
	BaseURL    string
	Secret     string
	HTTPClient *http.Client
}

// NewClient creates a new admin client.
func NewClient(baseURL, secret string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    baseURL,
		Secret:     secret,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// InspectResult mirrors the /diag/inspect response.
type InspectResult struct {
	Waiting    int64 `json:"waiting"`
	Processing int64 `json:"processing"`
	Dead       int64 `json:"dead"`
	HeadJob    *struct {
		QuestionText string `json:"question_text"`
		ChannelID    string `json:"channel_id"`
		EventID      string `json:"event_id"`
	} `json:"head_job"`
	HeadDead *struct {
		StreamID     string `json:"stream_id"`
		QuestionText string `json:"question_text"`
		Error        string `json:"error"`
	} `json:"head_dead"`
}

// InjectRequest is a synthetic job for end-to-end verification.
type InjectRequest struct {
	QuestionText string `json:"question_text"`
	ChannelID    string `json:"channel_id,omitempty"`
	ResponseURL  string `json:"response_url,omitempty"`
}

// Health returns the raw health response.
func (c *Client) Health() (map[string]interface{}, error) {
	var out map[string]interface{}
	err := c.do(http.MethodGet, "/health", nil, &out)
	return out, err
}

// Inspect fetches queue depths and head samples.
func (c *Client) Inspect() (*InspectResult, error) {
	var out InspectResult
	if err := c.do(http.MethodGet, "/diag/inspect", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Validate runs the timestamp-shape check against the head waiting job.
func (c *Client) Validate() (map[string]interface{}, error) {
	var out map[string]interface{}
	err := c.do(http.MethodGet, "/diag/validate", nil, &out)
	return out, err
}

// Recover moves stuck processing jobs back to waiting.
func (c *Client) Recover() (int, error) {
	var out struct {
		Recovered int `json:"recovered"`
	}
	err := c.do(http.MethodPost, "/admin", map[string]string{"op": "recover_stuck_jobs"}, &out)
	return out.Recovered, err
}

// Flush clears the waiting and processing queues. Destructive.
func (c *Client) Flush() error {
	return c.do(http.MethodPost, "/admin", map[string]string{"op": "flush_queue"}, nil)
}

// Inject enqueues a synthetic job and triggers one dispatch.
func (c *Client) Inject(req InjectRequest) (map[string]interface{}, error) {
	var out map[string]interface{}
	err := c.do(http.MethodPost, "/jobs/inject", req, &out)
	return out, err
}

func (c *Client) do(method, path string, body, v interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if c.Secret != "" {
		req.Header.Set("X-Admin-Secret", c.Secret)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(resBody, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, errResp.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if v == nil {
		return nil
	}
	return json.Unmarshal(resBody, v)
}
