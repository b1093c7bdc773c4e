package stafflinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Staffline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Assignment represents the API assignment model.
type Assignment struct {
	ID              string `json:"id"`
	ProjectID       string `json:"project_id"`
	EmployeeID      string `json:"employee_id"`
	Role            string `json:"role"`
	WorkloadPercent int    `json:"workload_percent"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

// Employee represents a roster entry.
type Employee struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	Status     string `json:"status"`
}

// Project represents a project with its member roster.
type Project struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Members     []string `json:"members"`
}

// Workload is the per-employee utilization report.
type Workload struct {
	EmployeeID   string       `json:"employee_id"`
	TotalPercent int          `json:"total_percent"`
	Assignments  []Assignment `json:"assignments"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// AssignOptions are the parameters for Assign.
type AssignOptions struct {
	ProjectID       string `json:"project_id"`
	EmployeeID      string `json:"employee_id"`
	Role            string `json:"role"`
	WorkloadPercent int    `json:"workload_percent"`
	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Assign creates an assignment.
func (c *Client) Assign(ctx context.Context, opts AssignOptions) (Assignment, error) {
	var resp Assignment
	err := c.do(ctx, http.MethodPost, "v0/assignments", opts, &resp)
	return resp, err
}

// Unassign retracts an assignment.
func (c *Client) Unassign(ctx context.Context, assignmentID string) error {
	return c.do(ctx, http.MethodDelete, "v0/assignments/"+url.PathEscape(assignmentID), nil, nil)
}

// CreateEmployee registers an employee.
func (c *Client) CreateEmployee(ctx context.Context, name, department string) (Employee, error) {
	body := map[string]any{"name": name}
	if department != "" {
		body["department"] = department
	}
	var resp Employee
	err := c.do(ctx, http.MethodPost, "v0/employees", body, &resp)
	return resp, err
}

// CreateProject registers a project.
func (c *Client) CreateProject(ctx context.Context, name, description string) (Project, error) {
	body := map[string]any{"name": name}
	if description != "" {
		body["description"] = description
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "v0/projects", body, &resp)
	return resp, err
}

// GetProject fetches a project and its roster.
func (c *Client) GetProject(ctx context.Context, projectID string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "v0/projects/"+url.PathEscape(projectID), nil, &resp)
	return resp, err
}

// Workload fetches an employee's utilization report.
func (c *Client) Workload(ctx context.Context, employeeID string) (Workload, error) {
	var resp Workload
	err := c.do(ctx, http.MethodGet, "v0/employees/"+url.PathEscape(employeeID)+"/workload", nil, &resp)
	return resp, err
}

// Events fetches recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage fetches a page of events with an optional cursor.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "v0/events"
	if encoded := q.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
