// Package redmine is a small client for the Redmine REST API.
package redmine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	httpclient "dialogue-engine/internal/common/http"
)

var (
	ErrNotConfigured = errors.New("REDMINE_NOT_CONFIGURED")
	ErrRequestFailed = errors.New("REDMINE_REQUEST_FAILED")
	ErrNotFound      = errors.New("REDMINE_NOT_FOUND")
)

// User status codes as defined by Redmine.
const (
	UserStatusActive     = 1
	UserStatusRegistered = 2
	UserStatusLocked     = 3
)

type IDName struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Issue struct {
	ID             int      `json:"id"`
	Subject        string   `json:"subject"`
	Description    string   `json:"description"`
	Status         *IDName  `json:"status,omitempty"`
	Priority       *IDName  `json:"priority,omitempty"`
	AssignedTo     *IDName  `json:"assigned_to,omitempty"`
	Project        *IDName  `json:"project,omitempty"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	SpentHours     *float64 `json:"spent_hours,omitempty"`
	UpdatedOn      string   `json:"updated_on,omitempty"`
}

type IssueFilter struct {
	AssignedToID string
	StatusID     string
	Subject      string
	UpdatedOn    string
	Limit        int
}

type NewIssue struct {
	ProjectID   string `json:"project_id,omitempty"`
	Subject     string `json:"subject"`
	Description string `json:"description,omitempty"`
	PriorityID  int    `json:"priority_id,omitempty"`
}

type IssueUpdate struct {
	AssignedToID string `json:"assigned_to_id,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

type TimeEntry struct {
	IssueID  int     `json:"issue_id"`
	Hours    float64 `json:"hours"`
	Comments string  `json:"comments,omitempty"`
	SpentOn  string  `json:"spent_on,omitempty"`
}

type User struct {
	ID        int    `json:"id"`
	Login     string `json:"login"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Status    int    `json:"status"`
}

type WikiPage struct {
	Title   string `json:"title"`
	Text    string `json:"text"`
	Version int    `json:"version"`
}

type Priority struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// Client is the ticketing surface used by the action dispatcher.
type Client interface {
	BaseURL() string
	Ping(ctx context.Context) error
	ListIssues(ctx context.Context, filter IssueFilter) ([]Issue, error)
	GetIssue(ctx context.Context, id int) (*Issue, error)
	CreateIssue(ctx context.Context, issue NewIssue) (*Issue, error)
	UpdateIssue(ctx context.Context, id int, update IssueUpdate) error
	CreateTimeEntry(ctx context.Context, entry TimeEntry) error
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateUserStatus(ctx context.Context, id string, status int) error
	GetWikiPage(ctx context.Context, projectID, title string) (*WikiPage, error)
	ListPriorities(ctx context.Context) ([]Priority, error)
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient calls {url}/{path}.json with the X-Redmine-API-Key header.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *httpclient.Client
}

func NewHTTPClient(cfg Config) *HTTPClient {
	return NewHTTPClientWith(cfg, httpclient.NewClient(cfg.Timeout))
}

func NewHTTPClientWith(cfg Config, client *httpclient.Client) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  client.WithHeader("X-Redmine-API-Key", cfg.APIKey),
	}
}

func (c *HTTPClient) BaseURL() string { return c.baseURL }

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	if c.baseURL == "" || c.apiKey == "" {
		return ErrNotConfigured
	}
	u := c.baseURL + "/" + strings.TrimLeft(path, "/") + ".json"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	err := c.client.DoJSON(ctx, method, u, in, out)
	if err == nil {
		return nil
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return fmt.Errorf("%w: %v", ErrRequestFailed, err)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "issues", url.Values{"limit": {"1"}}, nil, nil)
}

func (c *HTTPClient) ListIssues(ctx context.Context, filter IssueFilter) ([]Issue, error) {
	q := url.Values{}
	if filter.AssignedToID != "" {
		q.Set("assigned_to_id", filter.AssignedToID)
	}
	if filter.StatusID != "" {
		q.Set("status_id", filter.StatusID)
	}
	if filter.Subject != "" {
		q.Set("subject", "~"+filter.Subject)
	}
	if filter.UpdatedOn != "" {
		q.Set("updated_on", filter.UpdatedOn)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	var out struct {
		Issues []Issue `json:"issues"`
	}
	if err := c.do(ctx, http.MethodGet, "issues", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Issues, nil
}

func (c *HTTPClient) GetIssue(ctx context.Context, id int) (*Issue, error) {
	var out struct {
		Issue Issue `json:"issue"`
	}
	if err := c.do(ctx, http.MethodGet, "issues/"+strconv.Itoa(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Issue, nil
}

func (c *HTTPClient) CreateIssue(ctx context.Context, issue NewIssue) (*Issue, error) {
	var out struct {
		Issue Issue `json:"issue"`
	}
	body := map[string]interface{}{"issue": issue}
	if err := c.do(ctx, http.MethodPost, "issues", nil, body, &out); err != nil {
		return nil, err
	}
	return &out.Issue, nil
}

func (c *HTTPClient) UpdateIssue(ctx context.Context, id int, update IssueUpdate) error {
	body := map[string]interface{}{"issue": update}
	return c.do(ctx, http.MethodPut, "issues/"+strconv.Itoa(id), nil, body, nil)
}

func (c *HTTPClient) CreateTimeEntry(ctx context.Context, entry TimeEntry) error {
	body := map[string]interface{}{"time_entry": entry}
	return c.do(ctx, http.MethodPost, "time_entries", nil, body, nil)
}

func (c *HTTPClient) GetUser(ctx context.Context, id string) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "users/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *HTTPClient) UpdateUserStatus(ctx context.Context, id string, status int) error {
	body := map[string]interface{}{"user": map[string]int{"status": status}}
	return c.do(ctx, http.MethodPut, "users/"+url.PathEscape(id), nil, body, nil)
}

func (c *HTTPClient) GetWikiPage(ctx context.Context, projectID, title string) (*WikiPage, error) {
	var out struct {
		WikiPage WikiPage `json:"wiki_page"`
	}
	path := "projects/" + url.PathEscape(projectID) + "/wiki/" + url.PathEscape(title)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.WikiPage, nil
}

func (c *HTTPClient) ListPriorities(ctx context.Context) ([]Priority, error) {
	var out struct {
		Priorities []Priority `json:"issue_priorities"`
	}
	if err := c.do(ctx, http.MethodGet, "enumerations/issue_priorities", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Priorities, nil
}
