package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/task/query"
	"github.com/ovaphlow/pitchfork/service-task-go/pkg/database"
)

const taskColumns = `t.id, t.project_id, t.assigned_user_id, t.title, t.description, t.status, t.priority, t.due_date, t.created_at, t.updated_at`

// ownedTask selects a task through its project so ownership is part of
// every lookup.
const ownedTask = `SELECT ` + taskColumns + ` FROM tasks t JOIN projects p ON p.id = t.project_id WHERE t.id = ? AND p.owner_id = ?`

// TaskRepo stores tasks. Tasks carry no owner column; every read and write
// joins through projects to check the caller owns the parent project.
type TaskRepo struct {
	db *sqlx.DB
}

func NewTaskRepo(db *sqlx.DB) *TaskRepo { return &TaskRepo{db: db} }

// EnsureTable creates the tasks table if not exists (idempotent).
func (r *TaskRepo) EnsureTable(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS tasks (
  id BIGSERIAL PRIMARY KEY,
  project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  assigned_user_id BIGINT REFERENCES users(id),
  title TEXT NOT NULL,
  description TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  priority INT NOT NULL DEFAULT 1,
  due_date DATE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_tasks_assigned_user_id ON tasks(assigned_user_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`
	if database.IsSQLite(r.db) {
		ddl = `
CREATE TABLE IF NOT EXISTS tasks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  assigned_user_id INTEGER REFERENCES users(id),
  title TEXT NOT NULL,
  description TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  priority INTEGER NOT NULL DEFAULT 1,
  due_date DATE,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_tasks_assigned_user_id ON tasks(assigned_user_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`
	}
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts t and sets its ID and timestamps. The assignee, when set,
// must exist. Project ownership is checked by the caller before Create.
func (r *TaskRepo) Create(ctx context.Context, t *entity.Task) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	ins := r.db.Rebind(`INSERT INTO tasks (project_id, assigned_user_id, title, description, status, priority, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := r.checkProject(ctx, tx, t.ProjectID); err != nil {
			return err
		}
		if err := r.checkAssignee(ctx, tx, t.AssignedUserID); err != nil {
			return err
		}
		return tx.QueryRowxContext(ctx, ins,
			t.ProjectID, t.AssignedUserID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.CreatedAt, t.UpdatedAt,
		).Scan(&t.ID)
	})
	return database.Classify(err)
}

// GetOwned returns the task when ownerID owns its project, otherwise
// apperr.ErrNotFound.
func (r *TaskRepo) GetOwned(ctx context.Context, id, ownerID int64) (*entity.Task, error) {
	var t entity.Task
	if err := r.db.GetContext(ctx, &t, r.db.Rebind(ownedTask), id, ownerID); err != nil {
		return nil, database.Classify(err)
	}
	return &t, nil
}

// ListOwned returns the tasks matching f inside projects owned by ownerID.
func (r *TaskRepo) ListOwned(ctx context.Context, ownerID int64, f query.Filter, p query.Page) ([]entity.Task, error) {
	tail, args := query.Build(ownerID, f, p)
	q := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks t JOIN projects p ON p.id = t.project_id` + tail)
	out := []entity.Task{}
	if err := r.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, database.Classify(err)
	}
	return out, nil
}

// Update applies patch to an owned task in one transaction and returns the
// task as it was before and after the write. Moving the task to another
// project requires owning that project (apperr.ErrForbidden otherwise).
func (r *TaskRepo) Update(ctx context.Context, id, ownerID int64, patch entity.Patch) (before, after *entity.Task, err error) {
	upd := r.db.Rebind(`UPDATE tasks SET project_id = ?, assigned_user_id = ?, title = ?, description = ?, status = ?, priority = ?, due_date = ?, updated_at = ?
		WHERE id = ?`)
	sel := r.db.Rebind(ownedTask)
	projectOwned := r.db.Rebind(`SELECT id FROM projects WHERE id = ? AND owner_id = ?`)
	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var old entity.Task
		if err := tx.GetContext(ctx, &old, sel, id, ownerID); err != nil {
			return err
		}
		next := patch.Apply(old)
		if next.ProjectID != old.ProjectID {
			var found int64
			if err := tx.GetContext(ctx, &found, projectOwned, next.ProjectID, ownerID); err != nil {
				if errors.Is(database.Classify(err), apperr.ErrNotFound) {
					return apperr.ErrForbidden
				}
				return err
			}
		}
		if patch.AssignedUserID.Set {
			if err := r.checkAssignee(ctx, tx, next.AssignedUserID); err != nil {
				return err
			}
		}
		next.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx, upd,
			next.ProjectID, next.AssignedUserID, next.Title, next.Description, next.Status, next.Priority, next.DueDate, next.UpdatedAt, id,
		); err != nil {
			return err
		}
		before, after = &old, &next
		return nil
	})
	if err != nil {
		return nil, nil, database.Classify(err)
	}
	return before, after, nil
}

// Delete removes an owned task.
func (r *TaskRepo) Delete(ctx context.Context, id, ownerID int64) error {
	del := r.db.Rebind(`DELETE FROM tasks WHERE id = ? AND project_id IN (SELECT id FROM projects WHERE owner_id = ?)`)
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, del, id, ownerID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.ErrNotFound
		}
		return nil
	})
	return database.Classify(err)
}

// Overdue is one task past its due date, with its project owner's address.
type Overdue struct {
	OwnerID    int64       `db:"owner_id"`
	OwnerEmail string      `db:"owner_email"`
	TaskID     int64       `db:"task_id"`
	Title      string      `db:"title"`
	DueDate    entity.Date `db:"due_date"`
}

// ListOverdue returns tasks due before today that are not done, ordered by
// owner and due date.
func (r *TaskRepo) ListOverdue(ctx context.Context, today entity.Date) ([]Overdue, error) {
	q := r.db.Rebind(`SELECT p.owner_id, u.email AS owner_email, t.id AS task_id, t.title, t.due_date
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		JOIN users u ON u.id = p.owner_id
		WHERE t.due_date IS NOT NULL AND t.due_date < ? AND t.status <> 'done'
		ORDER BY p.owner_id, t.due_date, t.id`)
	out := []Overdue{}
	if err := r.db.SelectContext(ctx, &out, q, today); err != nil {
		return nil, database.Classify(err)
	}
	return out, nil
}

func (r *TaskRepo) checkProject(ctx context.Context, tx *sqlx.Tx, projectID int64) error {
	var found int64
	err := tx.GetContext(ctx, &found, r.db.Rebind(`SELECT id FROM projects WHERE id = ?`), projectID)
	if err != nil {
		if errors.Is(database.Classify(err), apperr.ErrNotFound) {
			return apperr.Invalid("project_id", "does not reference a project")
		}
		return err
	}
	return nil
}

func (r *TaskRepo) checkAssignee(ctx context.Context, tx *sqlx.Tx, userID *int64) error {
	if userID == nil {
		return nil
	}
	var found int64
	err := tx.GetContext(ctx, &found, r.db.Rebind(`SELECT id FROM users WHERE id = ?`), *userID)
	if err != nil {
		if errors.Is(database.Classify(err), apperr.ErrNotFound) {
			return apperr.Invalid("assigned_user_id", "does not reference a user")
		}
		return err
	}
	return nil
}
