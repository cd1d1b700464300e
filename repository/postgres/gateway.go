package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastygo/taskcache/domain"
	"github.com/fastygo/taskcache/repository"
)

// querier is the subset of *pgxpool.Pool the gateway uses.
type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// Gateway reads and writes the authoritative task store directly in Postgres.
type Gateway struct {
	db querier
}

var _ repository.RemoteGateway = (*Gateway)(nil)

// NewGateway returns a Postgres-backed remote gateway.
func NewGateway(db querier) *Gateway {
	return &Gateway{db: db}
}

const taskColumns = `id, title, description, facility, assigned_to, priority, status, due_date, tags, created_at, updated_at`

func (g *Gateway) List(ctx context.Context) ([]domain.Task, error) {
	rows, err := g.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (g *Gateway) Create(ctx context.Context, draft domain.TaskDraft) (*domain.Task, error) {
	const query = `
	INSERT INTO tasks (id, title, description, facility, assigned_to, priority, status, due_date, tags)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING ` + taskColumns

	row := g.db.QueryRow(ctx, query,
		uuid.NewString(),
		draft.Title,
		draft.Description,
		draft.Facility,
		nullIfEmpty(draft.AssignedTo),
		string(draft.Priority),
		string(draft.Status),
		nullTime(draft.DueAt),
		textArray(draft.Tags),
	)
	task, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func (g *Gateway) Update(ctx context.Context, id string, patch domain.TaskPatch) (*domain.Task, error) {
	query, args := buildUpdate(id, patch)
	task, err := scanTask(g.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFoundWrap(err, "update task "+id)
	}
	return task, nil
}

// Delete is idempotent: a missing row is not an error.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	if _, err := g.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func (g *Gateway) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := g.db.Query(ctx, `SELECT id, full_name, COALESCE(email, '') FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.Ping(ctx)
}

// buildUpdate renders a partial UPDATE touching only the fields the patch sets.
func buildUpdate(id string, patch domain.TaskPatch) (string, []interface{}) {
	var (
		sets []string
		args = []interface{}{id}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Facility != nil {
		add("facility", *patch.Facility)
	}
	if patch.AssignedTo != nil {
		add("assigned_to", nullIfEmpty(*patch.AssignedTo))
	}
	if patch.Priority != nil {
		add("priority", string(*patch.Priority))
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.DueAt != nil {
		add("due_date", nullTime(*patch.DueAt))
	}
	if patch.Tags != nil {
		add("tags", textArray(patch.Tags))
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $1 RETURNING %s", strings.Join(sets, ", "), taskColumns)
	return query, args
}

func scanTask(row scannable) (*domain.Task, error) {
	var (
		task       domain.Task
		id         string
		assignedTo *string
		priority   string
		status     string
		due        *time.Time
		tags       []string
	)
	if err := row.Scan(
		&id,
		&task.Title,
		&task.Description,
		&task.Facility,
		&assignedTo,
		&priority,
		&status,
		&due,
		&tags,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}

	task.ID = domain.AuthoritativeID(id)
	task.Priority = domain.Priority(priority)
	task.Status = domain.Status(status)
	if assignedTo != nil {
		task.AssignedTo = *assignedTo
	}
	if due != nil {
		task.DueAt = due.UTC()
	}
	if len(tags) > 0 {
		task.Tags = tags
	}
	return &task, nil
}
