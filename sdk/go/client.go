package planlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Planline HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents the API project model.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Status      string `json:"status"`
}

// Task represents the API task model.
type Task struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	ParentID  *string `json:"parent_id,omitempty"`
	Name      string  `json:"name"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Duration  int     `json:"duration"`
	Progress  float64 `json:"progress"`
	Status    string  `json:"status"`
}

// Dependency links two tasks.
type Dependency struct {
	ID            string `json:"id"`
	PredecessorID string `json:"predecessor_id"`
	SuccessorID   string `json:"successor_id"`
	Type          string `json:"type"`
	Lag           int    `json:"lag"`
}

// SnapshotTask is a task with its computed schedule.
type SnapshotTask struct {
	Task
	Overdue        bool   `json:"overdue"`
	EarliestStart  string `json:"earliest_start"`
	EarliestFinish string `json:"earliest_finish"`
	LatestStart    string `json:"latest_start"`
	LatestFinish   string `json:"latest_finish"`
	Slack          int    `json:"slack"`
	Critical       bool   `json:"critical"`
}

// Snapshot is the full computed plan of one project.
type Snapshot struct {
	Project      Project        `json:"project"`
	Progress     float64        `json:"progress"`
	Status       string         `json:"status"`
	Overdue      bool           `json:"overdue"`
	Tasks        []SnapshotTask `json:"tasks"`
	Dependencies []Dependency   `json:"dependencies"`
	CriticalPath []string       `json:"critical_path"`
	LongestChain []string       `json:"longest_chain"`
	Timeline     struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		TotalDays int    `json:"total_days"`
	} `json:"timeline"`
	Statistics struct {
		TotalTasks      int     `json:"total_tasks"`
		CompletedTasks  int     `json:"completed_tasks"`
		InProgressTasks int     `json:"in_progress_tasks"`
		NotStartedTasks int     `json:"not_started_tasks"`
		OverdueTasks    int     `json:"overdue_tasks"`
		CompletionRate  float64 `json:"completion_rate"`
	} `json:"statistics"`
	Warnings    []string `json:"warnings,omitempty"`
	GeneratedAt string   `json:"generated_at"`
}

// CycleCheck is the result of a dependency pre-check.
type CycleCheck struct {
	WouldCycle bool     `json:"would_cycle"`
	Path       []string `json:"path,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, name, startDate, endDate string) (Project, error) {
	body := map[string]any{
		"name":       name,
		"start_date": startDate,
		"end_date":   endDate,
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "v0/projects", body, &resp)
	return resp, err
}

// ListProjects returns all projects.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "v0/projects", nil, &resp)
	return resp, err
}

// CreateTask creates a task inside a project.
func (c *Client) CreateTask(ctx context.Context, projectID, name, startDate, endDate string) (Task, error) {
	body := map[string]any{
		"name":       name,
		"start_date": startDate,
		"end_date":   endDate,
	}
	var resp Task
	endpoint := fmt.Sprintf("v0/projects/%s/tasks", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ListTasks returns a project's tasks, optionally filtered by status.
func (c *Client) ListTasks(ctx context.Context, projectID, status string) ([]Task, error) {
	endpoint := fmt.Sprintf("v0/projects/%s/tasks", url.PathEscape(projectID))
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ShiftTask moves a task's window by days.
func (c *Client) ShiftTask(ctx context.Context, taskID string, days int) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/shift", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"days": days}, &resp)
	return resp, err
}

// SetProgress records completion percentage on a task.
func (c *Client) SetProgress(ctx context.Context, taskID string, percent float64) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/progress", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"progress": percent}, &resp)
	return resp, err
}

// AddDependency links two tasks. Type and lag may be zero values to use
// the server's defaults.
func (c *Client) AddDependency(ctx context.Context, predecessorID, successorID, depType string, lag *int) (Dependency, error) {
	body := map[string]any{
		"predecessor_id": predecessorID,
		"successor_id":   successorID,
	}
	if depType != "" {
		body["type"] = depType
	}
	if lag != nil {
		body["lag"] = *lag
	}
	var resp Dependency
	err := c.do(ctx, http.MethodPost, "v0/dependencies", body, &resp)
	return resp, err
}

// CheckDependency asks whether a link would close a loop.
func (c *Client) CheckDependency(ctx context.Context, predecessorID, successorID string) (CycleCheck, error) {
	endpoint := fmt.Sprintf("v0/dependencies/check?predecessor_id=%s&successor_id=%s",
		url.QueryEscape(predecessorID), url.QueryEscape(successorID))
	var resp CycleCheck
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Snapshot fetches the full computed plan for a project.
func (c *Client) Snapshot(ctx context.Context, projectID string) (Snapshot, error) {
	var resp Snapshot
	endpoint := fmt.Sprintf("v0/projects/%s/snapshot", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CriticalPath fetches the critical tasks in schedule order.
func (c *Client) CriticalPath(ctx context.Context, projectID string) ([]SnapshotTask, error) {
	var resp []SnapshotTask
	endpoint := fmt.Sprintf("v0/projects/%s/critical-path", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Recalculate rebuilds and returns the project snapshot.
func (c *Client) Recalculate(ctx context.Context, projectID string) (Snapshot, error) {
	var resp Snapshot
	endpoint := fmt.Sprintf("v0/projects/%s/recalculate", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
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
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
