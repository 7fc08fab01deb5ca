package repo

import (
	"context"
	"database/sql"
	"fmt"

	"planline/internal/domain"
	"planline/internal/events"
)

// SQLite persists the plan in the workspace database. Deletes cascade
// through foreign keys: dropping a project takes its tasks and edges,
// dropping a task takes its edges and nulls its children's parent.
type SQLite struct {
	DB     *sql.DB
	Events events.Writer
}

func NewSQLite(db *sql.DB) SQLite {
	return SQLite{DB: db, Events: events.Writer{DB: db}}
}

type scanner interface {
	Scan(dest ...any) error
}

const projectCols = `id,name,COALESCE(description,''),start_date,end_date,status,created_at,updated_at`

func scanProject(row scanner) (domain.Project, error) {
	var p domain.Project
	var start, end string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &start, &end, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, domain.NotFound("project", p.ID)
	}
	if err != nil {
		return p, err
	}
	if p.Start, err = domain.ParseDate(start); err != nil {
		return p, fmt.Errorf("project %s start date: %w", p.ID, err)
	}
	if p.End, err = domain.ParseDate(end); err != nil {
		return p, fmt.Errorf("project %s end date: %w", p.ID, err)
	}
	return p, nil
}

func (r SQLite) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO projects(id,name,description,start_date,end_date,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, nullable(p.Description), p.Start.String(), p.End.String(), p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r SQLite) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := scanProject(r.DB.QueryRowContext(ctx,
		`SELECT `+projectCols+` FROM projects WHERE id=?`, id))
	if _, ok := domain.AsError(err); ok {
		return p, domain.NotFound("project", id)
	}
	return p, err
}

func (r SQLite) ProjectNameExists(ctx context.Context, name, excludeID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE name=? AND id<>?`, name, excludeID).Scan(&n)
	return n > 0, err
}

func (r SQLite) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+projectCols+` FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r SQLite) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE projects SET name=?,description=?,start_date=?,end_date=?,status=?,updated_at=? WHERE id=?`,
		p.Name, nullable(p.Description), p.Start.String(), p.End.String(), p.Status, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "project", p.ID)
}

func (r SQLite) DeleteProject(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "project", id)
}

const taskCols = `id,project_id,parent_id,name,COALESCE(description,''),start_date,end_date,duration,progress,status,created_at,updated_at`

func scanTask(row scanner) (domain.Task, error) {
	var t domain.Task
	var parent sql.NullString
	var start, end string
	err := row.Scan(&t.ID, &t.ProjectID, &parent, &t.Name, &t.Description, &start, &end,
		&t.Duration, &t.Progress, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, domain.NotFound("task", t.ID)
	}
	if err != nil {
		return t, err
	}
	if parent.Valid {
		t.ParentID = &parent.String
	}
	if t.Start, err = domain.ParseDate(start); err != nil {
		return t, fmt.Errorf("task %s start date: %w", t.ID, err)
	}
	if t.End, err = domain.ParseDate(end); err != nil {
		return t, fmt.Errorf("task %s end date: %w", t.ID, err)
	}
	return t, nil
}

func (r SQLite) CreateTask(ctx context.Context, t domain.Task) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO tasks(id,project_id,parent_id,name,description,start_date,end_date,duration,progress,status,created_at,updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, nullablePtr(t.ParentID), t.Name, nullable(t.Description),
		t.Start.String(), t.End.String(), t.Duration, t.Progress, t.Status, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r SQLite) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := scanTask(r.DB.QueryRowContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE id=?`, id))
	if _, ok := domain.AsError(err); ok {
		return t, domain.NotFound("task", id)
	}
	return t, err
}

func (r SQLite) listTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r SQLite) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	return r.listTasks(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE project_id=? ORDER BY start_date, id`, projectID)
}

func (r SQLite) ListTasksByParent(ctx context.Context, parentID string) ([]domain.Task, error) {
	return r.listTasks(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE parent_id=? ORDER BY start_date, id`, parentID)
}

func (r SQLite) ListTasksByStatus(ctx context.Context, projectID string, status domain.TaskStatus) ([]domain.Task, error) {
	return r.listTasks(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE project_id=? AND status=? ORDER BY start_date, id`, projectID, status)
}

func (r SQLite) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET parent_id=?,name=?,description=?,start_date=?,end_date=?,duration=?,progress=?,status=?,updated_at=? WHERE id=?`,
		nullablePtr(t.ParentID), t.Name, nullable(t.Description), t.Start.String(), t.End.String(),
		t.Duration, t.Progress, t.Status, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "task", t.ID)
}

func (r SQLite) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "task", id)
}

const depCols = `id,predecessor_id,successor_id,type,lag,created_at`

func scanDependency(row scanner) (domain.Dependency, error) {
	var d domain.Dependency
	err := row.Scan(&d.ID, &d.PredecessorID, &d.SuccessorID, &d.Type, &d.Lag, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, domain.NotFound("dependency", d.ID)
	}
	return d, err
}

func (r SQLite) CreateDependency(ctx context.Context, d domain.Dependency) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO dependencies(id,predecessor_id,successor_id,type,lag,created_at) VALUES (?,?,?,?,?,?)`,
		d.ID, d.PredecessorID, d.SuccessorID, d.Type, d.Lag, d.CreatedAt)
	return err
}

func (r SQLite) GetDependency(ctx context.Context, id string) (domain.Dependency, error) {
	d, err := scanDependency(r.DB.QueryRowContext(ctx,
		`SELECT `+depCols+` FROM dependencies WHERE id=?`, id))
	if _, ok := domain.AsError(err); ok {
		return d, domain.NotFound("dependency", id)
	}
	return d, err
}

func (r SQLite) ListDependencies(ctx context.Context, projectID string) ([]domain.Dependency, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT d.id,d.predecessor_id,d.successor_id,d.type,d.lag,d.created_at
		 FROM dependencies d JOIN tasks t ON t.id = d.predecessor_id
		 WHERE t.project_id=? ORDER BY d.created_at, d.id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Dependency
	for rows.Next() {
		d, err := scanDependency(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r SQLite) DependencyExists(ctx context.Context, predecessorID, successorID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dependencies WHERE predecessor_id=? AND successor_id=?`,
		predecessorID, successorID).Scan(&n)
	return n > 0, err
}

func (r SQLite) UpdateDependency(ctx context.Context, d domain.Dependency) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE dependencies SET type=?,lag=? WHERE id=?`, d.Type, d.Lag, d.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "dependency", d.ID)
}

func (r SQLite) DeleteDependency(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM dependencies WHERE id=?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "dependency", id)
}

func (r SQLite) AppendEvent(ctx context.Context, e domain.Event) error {
	return r.Events.Append(ctx, e)
}

func (r SQLite) ListEvents(ctx context.Context, projectID string, limit int) ([]domain.Event, error) {
	return r.Events.List(ctx, projectID, limit)
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound(entity, id)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullablePtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
