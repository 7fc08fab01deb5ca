package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"planline/internal/domain"
	"planline/internal/engine"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"cycle"`
	Message string         `json:"message" example:"dependency would close a loop"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Planline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Planline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerProjects(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerDependencies(group, cfg.Engine)
	registerSnapshots(group, cfg.Engine)
	registerEvents(group, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "infeasible"
	case http.StatusGatewayTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// handleError maps kinded engine errors onto HTTP statuses.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	de, ok := domain.AsError(err)
	if !ok {
		return newAPIError(http.StatusInternalServerError, "internal", err.Error(), nil)
	}
	var details map[string]any
	if de.Entity != "" {
		details = map[string]any{"entity": de.Entity}
		if de.ID != "" {
			details["id"] = de.ID
		}
	}
	switch de.Kind {
	case domain.KindNotFound:
		return newAPIError(http.StatusNotFound, "not_found", de.Error(), details)
	case domain.KindInvalid:
		return newAPIError(http.StatusBadRequest, "invalid", de.Error(), details)
	case domain.KindConflict:
		return newAPIError(http.StatusConflict, "conflict", de.Error(), details)
	case domain.KindCycle:
		if details == nil {
			details = map[string]any{}
		}
		details["path"] = de.CyclePath
		return newAPIError(http.StatusConflict, "cycle", de.Error(), details)
	case domain.KindInfeasible:
		return newAPIError(http.StatusUnprocessableEntity, "infeasible", de.Error(), details)
	case domain.KindTimeout:
		return newAPIError(http.StatusGatewayTimeout, "timeout", de.Error(), details)
	default:
		return newAPIError(http.StatusInternalServerError, "internal", de.Error(), details)
	}
}

func parseDate(field, value string) (domain.Date, huma.StatusError) {
	d, err := domain.ParseDate(value)
	if err != nil {
		return domain.Date{}, newAPIError(http.StatusBadRequest, "invalid", field+" must be a YYYY-MM-DD date", nil)
	}
	return d, nil
}

func parseDateOpt(field string, value *string) (*domain.Date, huma.StatusError) {
	if value == nil {
		return nil, nil
	}
	d, herr := parseDate(field, *value)
	if herr != nil {
		return nil, herr
	}
	return &d, nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerProjects(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		start, herr := parseDate("start_date", input.Body.StartDate)
		if herr != nil {
			return nil, herr
		}
		end, herr := parseDate("end_date", input.Body.EndDate)
		if herr != nil {
			return nil, herr
		}
		desc := ""
		if input.Body.Description != nil {
			desc = *input.Body.Description
		}
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			Name:        input.Body.Name,
			Description: desc,
			Start:       start,
			End:         end,
			Status:      domain.ProjectStatus(input.Body.Status),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		items, err := e.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		p, err := e.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		start, herr := parseDateOpt("start_date", input.Body.StartDate)
		if herr != nil {
			return nil, herr
		}
		end, herr := parseDateOpt("end_date", input.Body.EndDate)
		if herr != nil {
			return nil, herr
		}
		opts := engine.ProjectUpdateOptions{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Start:       start,
			End:         end,
		}
		if input.Body.Status != nil {
			st := domain.ProjectStatus(*input.Body.Status)
			opts.Status = &st
		}
		p, err := e.UpdateProject(ctx, input.ProjectID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-project",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}",
		Summary:       "Delete project",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct{}, error) {
		if err := e.DeleteProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTasks(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		start, herr := parseDate("start_date", input.Body.StartDate)
		if herr != nil {
			return nil, herr
		}
		end, herr := parseDate("end_date", input.Body.EndDate)
		if herr != nil {
			return nil, herr
		}
		opts := engine.TaskCreateOptions{
			ProjectID: input.ProjectID,
			Name:      input.Body.Name,
			Start:     start,
			End:       end,
			Duration:  input.Body.Duration,
			Status:    domain.TaskStatus(input.Body.Status),
		}
		if input.Body.Description != nil {
			opts.Description = *input.Body.Description
		}
		if input.Body.ParentID != nil {
			opts.ParentID = *input.Body.ParentID
		}
		if input.Body.Progress != nil {
			opts.Progress = *input.Body.Progress
		}
		t, err := e.CreateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Status    string `query:"status"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		items, err := e.ListTasks(ctx, input.ProjectID, domain.TaskStatus(input.Status))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-subtasks",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/subtasks",
		Summary:     "List subtasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		items, err := e.ListSubtasks(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		start, herr := parseDateOpt("start_date", input.Body.StartDate)
		if herr != nil {
			return nil, herr
		}
		end, herr := parseDateOpt("end_date", input.Body.EndDate)
		if herr != nil {
			return nil, herr
		}
		opts := engine.TaskUpdateOptions{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Start:       start,
			End:         end,
			Duration:    input.Body.Duration,
			SetParent:   input.Body.ParentID,
			Progress:    input.Body.Progress,
		}
		if input.Body.Status != nil {
			st := domain.TaskStatus(*input.Body.Status)
			opts.Status = &st
		}
		t, err := e.UpdateTask(ctx, input.TaskID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{task_id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct{}, error) {
		if err := e.DeleteTask(ctx, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "shift-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/shift",
		Summary:     "Shift task window",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Body   struct {
			Days int `json:"days"`
		} `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.ShiftTask(ctx, input.TaskID, input.Body.Days)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task-progress",
		Method:      http.MethodPut,
		Path:        "/tasks/{task_id}/progress",
		Summary:     "Set task progress",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Body   struct {
			Progress float64 `json:"progress" minimum:"0" maximum:"100"`
		} `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.SetProgress(ctx, input.TaskID, input.Body.Progress)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task-status",
		Method:      http.MethodPut,
		Path:        "/tasks/{task_id}/status",
		Summary:     "Set task status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Body   struct {
			Status string `json:"status" enum:"not_started,in_progress,completed,on_hold,cancelled"`
		} `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.SetStatus(ctx, input.TaskID, domain.TaskStatus(input.Body.Status))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})
}

func registerDependencies(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-dependency",
		Method:        http.MethodPost,
		Path:          "/dependencies",
		Summary:       "Link two tasks",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateDependencyRequest `json:"body"`
	}) (*struct {
		Body DependencyResponse `json:"body"`
	}, error) {
		d, err := e.AddDependency(ctx, engine.DependencyCreateOptions{
			PredecessorID: input.Body.PredecessorID,
			SuccessorID:   input.Body.SuccessorID,
			Type:          domain.DependencyType(input.Body.Type),
			Lag:           input.Body.Lag,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DependencyResponse `json:"body"`
		}{Body: dependencyResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-dependencies",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/dependencies",
		Summary:     "List dependencies",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []DependencyResponse `json:"body"`
	}, error) {
		items, err := e.ListDependencies(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DependencyResponse `json:"body"`
		}{Body: mapDependencies(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-dependency",
		Method:      http.MethodPatch,
		Path:        "/dependencies/{dependency_id}",
		Summary:     "Update dependency type or lag",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DependencyID string                  `path:"dependency_id"`
		Body         UpdateDependencyRequest `json:"body"`
	}) (*struct {
		Body DependencyResponse `json:"body"`
	}, error) {
		opts := engine.DependencyUpdateOptions{Lag: input.Body.Lag}
		if input.Body.Type != nil {
			dt := domain.DependencyType(*input.Body.Type)
			opts.Type = &dt
		}
		d, err := e.UpdateDependency(ctx, input.DependencyID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DependencyResponse `json:"body"`
		}{Body: dependencyResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-dependency",
		Method:        http.MethodDelete,
		Path:          "/dependencies/{dependency_id}",
		Summary:       "Remove dependency",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DependencyID string `path:"dependency_id"`
	}) (*struct{}, error) {
		if err := e.RemoveDependency(ctx, input.DependencyID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-dependency",
		Method:      http.MethodGet,
		Path:        "/dependencies/check",
		Summary:     "Check whether a link would close a loop",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PredecessorID string `query:"predecessor_id" required:"true"`
		SuccessorID   string `query:"successor_id" required:"true"`
	}) (*struct {
		Body struct {
			WouldCycle bool     `json:"would_cycle"`
			Path       []string `json:"path,omitempty"`
		} `json:"body"`
	}, error) {
		wouldCycle, path, err := e.WouldCycle(ctx, input.PredecessorID, input.SuccessorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				WouldCycle bool     `json:"would_cycle"`
				Path       []string `json:"path,omitempty"`
			} `json:"body"`
		}{}
		out.Body.WouldCycle = wouldCycle
		out.Body.Path = path
		return out, nil
	})
}

func registerSnapshots(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "project-snapshot",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/snapshot",
		Summary:     "Full project snapshot",
		Errors:      []int{http.StatusNotFound, http.StatusGatewayTimeout},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body SnapshotResponse `json:"body"`
	}, error) {
		snap, err := e.Snapshot(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SnapshotResponse `json:"body"`
		}{Body: snapshotResponse(snap)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-critical-path",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/critical-path",
		Summary:     "Critical path tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []SnapshotTaskResponse `json:"body"`
	}, error) {
		items, err := e.CriticalPath(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]SnapshotTaskResponse, 0, len(items))
		for _, st := range items {
			out = append(out, snapshotTaskResponse(input.ProjectID, st))
		}
		return &struct {
			Body []SnapshotTaskResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-recalculate",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/recalculate",
		Summary:     "Rebuild the schedule from stored data",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body SnapshotResponse `json:"body"`
	}, error) {
		snap, err := e.Recalculate(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SnapshotResponse `json:"body"`
		}{Body: snapshotResponse(snap)}, nil
	})
}

func registerEvents(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/events",
		Summary:     "Recent events, newest first",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Limit     int    `query:"limit"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		items, err := e.ListEvents(ctx, input.ProjectID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}
