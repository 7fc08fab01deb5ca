package engine

import (
	"context"

	"planline/internal/domain"
)

// Repository is the persistence contract the engine consumes. Any
// backend satisfies it; the engine's correctness does not depend on
// which. Implementations must make each call atomic and must cascade
// deletes: removing a project removes its tasks and edges, removing a
// task removes every edge touching it and orphans its children to the
// project root.
type Repository interface {
	CreateProject(ctx context.Context, p domain.Project) error
	GetProject(ctx context.Context, id string) (domain.Project, error)
	ProjectNameExists(ctx context.Context, name, excludeID string) (bool, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	UpdateProject(ctx context.Context, p domain.Project) error
	DeleteProject(ctx context.Context, id string) error

	CreateTask(ctx context.Context, t domain.Task) error
	GetTask(ctx context.Context, id string) (domain.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]domain.Task, error)
	ListTasksByParent(ctx context.Context, parentID string) ([]domain.Task, error)
	ListTasksByStatus(ctx context.Context, projectID string, status domain.TaskStatus) ([]domain.Task, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id string) error

	CreateDependency(ctx context.Context, d domain.Dependency) error
	GetDependency(ctx context.Context, id string) (domain.Dependency, error)
	ListDependencies(ctx context.Context, projectID string) ([]domain.Dependency, error)
	DependencyExists(ctx context.Context, predecessorID, successorID string) (bool, error)
	UpdateDependency(ctx context.Context, d domain.Dependency) error
	DeleteDependency(ctx context.Context, id string) error

	AppendEvent(ctx context.Context, e domain.Event) error
	ListEvents(ctx context.Context, projectID string, limit int) ([]domain.Event, error)
}
