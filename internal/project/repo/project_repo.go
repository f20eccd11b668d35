package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/project/entity"
	"github.com/ovaphlow/pitchfork/service-task-go/pkg/database"
)

const projectColumns = `id, owner_id, name, description, created_at`

// ProjectRepo stores projects. Every read and write carries the owner id in
// its predicate, so a project owned by someone else looks exactly like a
// missing one.
type ProjectRepo struct {
	db *sqlx.DB
}

func NewProjectRepo(db *sqlx.DB) *ProjectRepo { return &ProjectRepo{db: db} }

// EnsureTable creates the projects table if not exists (idempotent).
func (r *ProjectRepo) EnsureTable(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS projects (
  id BIGSERIAL PRIMARY KEY,
  owner_id BIGINT NOT NULL REFERENCES users(id),
  name TEXT NOT NULL,
  description TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_projects_owner_id ON projects(owner_id);`
	if database.IsSQLite(r.db) {
		ddl = `
CREATE TABLE IF NOT EXISTS projects (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  owner_id INTEGER NOT NULL REFERENCES users(id),
  name TEXT NOT NULL,
  description TEXT,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_projects_owner_id ON projects(owner_id);`
	}
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts p and sets its ID.
func (r *ProjectRepo) Create(ctx context.Context, p *entity.Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	q := r.db.Rebind(`INSERT INTO projects (owner_id, name, description, created_at) VALUES (?, ?, ?, ?) RETURNING id`)
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, q, p.OwnerID, p.Name, p.Description, p.CreatedAt).Scan(&p.ID)
	})
}

// ListByOwner returns all projects of owner in insertion order.
func (r *ProjectRepo) ListByOwner(ctx context.Context, ownerID int64) ([]entity.Project, error) {
	out := []entity.Project{}
	q := r.db.Rebind(`SELECT ` + projectColumns + ` FROM projects WHERE owner_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &out, q, ownerID); err != nil {
		return nil, database.Classify(err)
	}
	return out, nil
}

// GetOwned returns the project only when ownerID owns it; otherwise
// apperr.ErrNotFound.
func (r *ProjectRepo) GetOwned(ctx context.Context, id, ownerID int64) (*entity.Project, error) {
	var p entity.Project
	q := r.db.Rebind(`SELECT ` + projectColumns + ` FROM projects WHERE id = ? AND owner_id = ?`)
	if err := r.db.GetContext(ctx, &p, q, id, ownerID); err != nil {
		return nil, database.Classify(err)
	}
	return &p, nil
}

// Update replaces name and description of an owned project.
func (r *ProjectRepo) Update(ctx context.Context, id, ownerID int64, name string, description *string) (*entity.Project, error) {
	var p entity.Project
	upd := r.db.Rebind(`UPDATE projects SET name = ?, description = ? WHERE id = ? AND owner_id = ?`)
	sel := r.db.Rebind(`SELECT ` + projectColumns + ` FROM projects WHERE id = ?`)
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, upd, name, description, id, ownerID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return apperr.ErrNotFound
		}
		return tx.GetContext(ctx, &p, sel, id)
	})
	if err != nil {
		return nil, database.Classify(err)
	}
	return &p, nil
}

// Delete removes an owned project and all of its tasks in one transaction.
func (r *ProjectRepo) Delete(ctx context.Context, id, ownerID int64) error {
	owned := r.db.Rebind(`SELECT id FROM projects WHERE id = ? AND owner_id = ?`)
	delTasks := r.db.Rebind(`DELETE FROM tasks WHERE project_id = ?`)
	delProject := r.db.Rebind(`DELETE FROM projects WHERE id = ? AND owner_id = ?`)
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var found int64
		if err := tx.GetContext(ctx, &found, owned, id, ownerID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, delTasks, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, delProject, id, ownerID)
		return err
	})
	return database.Classify(err)
}
