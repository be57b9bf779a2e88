package gbp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

// LocalPost is the request body for the Business Profile local post API.
type LocalPost struct {
	LanguageCode string `json:"languageCode"`
	Summary      string `json:"summary"`
	TopicType    string `json:"topicType"`
}

// CreatedPost is the subset of the API response we keep.
type CreatedPost struct {
	Name       string    `json:"name"`
	State      string    `json:"state"`
	CreateTime time.Time `json:"createTime"`
}

// ClientParams wires the posting client.
type ClientParams struct {
	BaseURL string
	Logger  *logger.Logger
	Timeout time.Duration
}

// Client creates local posts against the Business Profile API. It carries
// no credentials; callers pass a per-user authenticated http.Client.
type Client struct {
	baseURL string
	logg    *logger.Logger
	timeout time.Duration
}

// NewClient validates parameters and builds the client.
func NewClient(params ClientParams) (*Client, error) {
	if params.BaseURL == "" {
		return nil, fmt.Errorf("gbp: base URL is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("gbp: logger is required")
	}
	if params.Timeout <= 0 {
		params.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(params.BaseURL, "/"),
		logg:    params.Logger,
		timeout: params.Timeout,
	}, nil
}

// CreatePost publishes one local post for the location. Failures are
// classified, never retried here; the dispatcher owns retry policy.
func (c *Client) CreatePost(ctx context.Context, httpClient *http.Client, locationID string, post LocalPost) (*CreatedPost, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("gbp: http client is required")
	}

	body, err := json.Marshal(post)
	if err != nil {
		return nil, fmt.Errorf("encoding local post: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/localPosts", c.baseURL, strings.Trim(locationID, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building local post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: FailureTransient, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &APIError{Kind: FailureTransient, Err: err}
	}

	if resp.StatusCode >= 400 {
		return nil, classifyStatus(resp.StatusCode, payload)
	}

	var created CreatedPost
	if err := json.Unmarshal(payload, &created); err != nil {
		return nil, fmt.Errorf("decoding local post response: %w", err)
	}

	ctx = c.logg.WithLocationID(ctx, locationID)
	c.logg.Info(ctx, "local post created")
	return &created, nil
}
