package server

import (
	"planline/internal/domain"
	"planline/internal/engine"
)

// Wire types use plain "2006-01-02" strings for dates so the schema
// stays readable in the generated OpenAPI.

type CreateProjectRequest struct {
	Name        string  `json:"name" minLength:"1" maxLength:"200"`
	Description *string `json:"description,omitempty"`
	StartDate   string  `json:"start_date" example:"2025-01-01"`
	EndDate     string  `json:"end_date" example:"2025-03-31"`
	Status      string  `json:"status,omitempty" enum:",planning,in_progress,completed,on_hold,cancelled"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type ProjectResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type CreateTaskRequest struct {
	Name        string   `json:"name" minLength:"1" maxLength:"200"`
	Description *string  `json:"description,omitempty"`
	StartDate   string   `json:"start_date" example:"2025-01-01"`
	EndDate     string   `json:"end_date" example:"2025-01-10"`
	Duration    int      `json:"duration,omitempty"`
	ParentID    *string  `json:"parent_id,omitempty"`
	Progress    *float64 `json:"progress,omitempty"`
	Status      string   `json:"status,omitempty"`
}

type UpdateTaskRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	StartDate   *string  `json:"start_date,omitempty"`
	EndDate     *string  `json:"end_date,omitempty"`
	Duration    *int     `json:"duration,omitempty"`
	ParentID    *string  `json:"parent_id,omitempty"`
	Progress    *float64 `json:"progress,omitempty"`
	Status      *string  `json:"status,omitempty"`
}

type TaskResponse struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	ParentID    *string `json:"parent_id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Duration    int     `json:"duration"`
	Progress    float64 `json:"progress"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type CreateDependencyRequest struct {
	PredecessorID string `json:"predecessor_id"`
	SuccessorID   string `json:"successor_id"`
	Type          string `json:"type,omitempty" enum:",FS,SS,FF,SF"`
	Lag           *int   `json:"lag,omitempty"`
}

type UpdateDependencyRequest struct {
	Type *string `json:"type,omitempty"`
	Lag  *int    `json:"lag,omitempty"`
}

type DependencyResponse struct {
	ID            string `json:"id"`
	PredecessorID string `json:"predecessor_id"`
	SuccessorID   string `json:"successor_id"`
	Type          string `json:"type"`
	Lag           int    `json:"lag"`
	CreatedAt     string `json:"created_at"`
}

type SnapshotTaskResponse struct {
	TaskResponse
	Overdue        bool   `json:"overdue"`
	EarliestStart  string `json:"earliest_start"`
	EarliestFinish string `json:"earliest_finish"`
	LatestStart    string `json:"latest_start"`
	LatestFinish   string `json:"latest_finish"`
	Slack          int    `json:"slack"`
	Critical       bool   `json:"critical"`
}

type TimelineResponse struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	TotalDays int    `json:"total_days"`
}

type StatisticsResponse struct {
	TotalTasks      int     `json:"total_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	InProgressTasks int     `json:"in_progress_tasks"`
	NotStartedTasks int     `json:"not_started_tasks"`
	OverdueTasks    int     `json:"overdue_tasks"`
	CompletionRate  float64 `json:"completion_rate"`
}

type SnapshotResponse struct {
	Project      ProjectResponse        `json:"project"`
	Progress     float64                `json:"progress"`
	Status       string                 `json:"status"`
	Overdue      bool                   `json:"overdue"`
	Tasks        []SnapshotTaskResponse `json:"tasks"`
	Dependencies []DependencyResponse   `json:"dependencies"`
	CriticalPath []string               `json:"critical_path"`
	LongestChain []string               `json:"longest_chain"`
	Timeline     TimelineResponse       `json:"timeline"`
	Statistics   StatisticsResponse     `json:"statistics"`
	Warnings     []string               `json:"warnings,omitempty"`
	GeneratedAt  string                 `json:"generated_at"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		StartDate:   p.Start.String(),
		EndDate:     p.End.String(),
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, projectResponse(p))
	}
	return out
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		ParentID:    t.ParentID,
		Name:        t.Name,
		Description: t.Description,
		StartDate:   t.Start.String(),
		EndDate:     t.End.String(),
		Duration:    t.Duration,
		Progress:    t.Progress,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}

func dependencyResponse(d domain.Dependency) DependencyResponse {
	return DependencyResponse{
		ID:            d.ID,
		PredecessorID: d.PredecessorID,
		SuccessorID:   d.SuccessorID,
		Type:          string(d.Type),
		Lag:           d.Lag,
		CreatedAt:     d.CreatedAt,
	}
}

func mapDependencies(items []domain.Dependency) []DependencyResponse {
	out := make([]DependencyResponse, 0, len(items))
	for _, d := range items {
		out = append(out, dependencyResponse(d))
	}
	return out
}

func snapshotTaskResponse(projectID string, st engine.SnapshotTask) SnapshotTaskResponse {
	return SnapshotTaskResponse{
		TaskResponse: TaskResponse{
			ID:        st.ID,
			ProjectID: projectID,
			ParentID:  st.ParentID,
			Name:      st.Name,
			StartDate: st.Start.String(),
			EndDate:   st.End.String(),
			Duration:  st.Duration,
			Progress:  st.Progress,
			Status:    string(st.Status),
		},
		Overdue:        st.Overdue,
		EarliestStart:  st.EarliestStart.String(),
		EarliestFinish: st.EarliestFinish.String(),
		LatestStart:    st.LatestStart.String(),
		LatestFinish:   st.LatestFinish.String(),
		Slack:          st.Slack,
		Critical:       st.Critical,
	}
}

func snapshotResponse(s *engine.Snapshot) SnapshotResponse {
	out := SnapshotResponse{
		Project:      projectResponse(s.Project),
		Progress:     s.Progress,
		Status:       string(s.Status),
		Overdue:      s.Overdue,
		Tasks:        make([]SnapshotTaskResponse, 0, len(s.Tasks)),
		Dependencies: mapDependencies(s.Dependencies),
		CriticalPath: s.CriticalPath,
		LongestChain: s.LongestChain,
		Timeline: TimelineResponse{
			StartDate: s.Timeline.Start.String(),
			EndDate:   s.Timeline.End.String(),
			TotalDays: s.Timeline.TotalDays,
		},
		Statistics: StatisticsResponse{
			TotalTasks:      s.Statistics.TotalTasks,
			CompletedTasks:  s.Statistics.CompletedTasks,
			InProgressTasks: s.Statistics.InProgressTasks,
			NotStartedTasks: s.Statistics.NotStartedTasks,
			OverdueTasks:    s.Statistics.OverdueTasks,
			CompletionRate:  s.Statistics.CompletionRate,
		},
		Warnings:    s.Warnings,
		GeneratedAt: s.GeneratedAt,
	}
	for _, st := range s.Tasks {
		out.Tasks = append(out.Tasks, snapshotTaskResponse(s.Project.ID, st))
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Payload:    e.Payload,
	}
}

func mapEvents(items []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, eventResponse(e))
	}
	return out
}
