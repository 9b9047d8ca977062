package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2/clientcredentials"
)

// Content kinds accepted by Upload
const (
	ContentPhishing      = "phishing"
	ContentSmishing      = "smishing"
	ContentTraining      = "training"
	defaultTimeout       = 30 * time.Second
	maxErrorBodySize     = 512
	idempotencyKeyHeader = "Idempotency-Key"
)

// Config describes how to reach and authenticate against the platform
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// Activity is one entry of a user's recent timeline
type Activity struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// User is a platform user with the fields risk analysis needs
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Department     string     `json:"department"`
	Language       string     `json:"language,omitempty"`
	RecentActivity []Activity `json:"recent_activity,omitempty"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UploadRequest carries a generated artifact to the platform
type UploadRequest struct {
	ArtifactID  string `json:"artifact_id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language"`
	Difficulty  string `json:"difficulty,omitempty"`
	Content     any    `json:"content"`
}

// UploadResult identifies the uploaded content on the platform side
type UploadResult struct {
	ResourceID string `json:"resource_id"`
	LanguageID string `json:"language_id"`
}

// AssignRequest targets exactly one of UserID or GroupID
type AssignRequest struct {
	ResourceID string `json:"resource_id"`
	Kind       string `json:"kind"`
	LanguageID string `json:"language_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	GroupID    string `json:"group_id,omitempty"`
}

// Client talks to the platform REST API
type Client struct {
	http *resty.Client
}

// NewClient creates a client. When ClientID is set, requests carry OAuth2
// client-credentials tokens fetched from TokenURL.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("platform base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var rc *resty.Client
	if cfg.ClientID != "" {
		if cfg.TokenURL == "" {
			return nil, errors.New("platform token URL is required with a client id")
		}
		creds := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		rc = resty.NewWithClient(creds.Client(ctx))
	} else {
		rc = resty.New()
	}

	rc.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("User-Agent", "phish-simulator/1.0").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &Client{http: rc}, nil
}

// LookupUser fetches a user and their recent activity by platform resource id
func (c *Client) LookupUser(ctx context.Context, resourceID string) (*User, error) {
	if resourceID == "" {
		return nil, errors.New("user resource id is required")
	}

	var user User
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", resourceID).
		SetResult(&user).
		Get("/users/{id}")
	if err := check("lookup user", resp, err); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, resourceID)
		}
		return nil, err
	}

	var timeline struct {
		Items []Activity `json:"items"`
	}
	resp, err = c.http.R().
		SetContext(ctx).
		SetPathParam("id", resourceID).
		SetQueryParam("limit", "20").
		SetResult(&timeline).
		Get("/users/{id}/timeline")
	if err := check("fetch timeline", resp, err); err != nil {
		return nil, err
	}
	user.RecentActivity = timeline.Items
	if user.ID == "" {
		user.ID = resourceID
	}
	return &user, nil
}

// SearchUser finds the first user whose name or email matches query
func (c *Client) SearchUser(ctx context.Context, query string) (*User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}

	var page struct {
		Items []User `json:"items"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("search", query).
		SetResult(&page).
		Get("/users")
	if err := check("search users", resp, err); err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, query)
	}
	return c.LookupUser(ctx, page.Items[0].ID)
}

// Upload publishes generated content and returns its platform resource id.
// The artifact id is sent as the idempotency key so a retried upload cannot
// create a second resource.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	var result UploadResult
	r := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&result)
	if req.ArtifactID != "" {
		r.SetHeader(idempotencyKeyHeader, req.ArtifactID)
	}
	resp, err := r.Post("/content")
	if err := check("upload", resp, err); err != nil {
		return nil, err
	}
	if result.ResourceID == "" {
		return nil, &APIError{Operation: "upload", StatusCode: resp.StatusCode(), Message: "response has no resource id"}
	}
	return &result, nil
}

// Assign assigns uploaded content to a user or group
func (c *Client) Assign(ctx context.Context, req AssignRequest) error {
	if req.ResourceID == "" {
		return errors.New("resource id is required")
	}
	if (req.UserID == "") == (req.GroupID == "") {
		return errors.New("exactly one of user id or group id is required")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/assignments")
	return check("assign", resp, err)
}

func check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &APIError{Operation: op, Message: "request failed", Cause: err}
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > maxErrorBodySize {
			body = body[:maxErrorBodySize]
		}
		return &APIError{Operation: op, StatusCode: resp.StatusCode(), Message: body}
	}
	return nil
}
