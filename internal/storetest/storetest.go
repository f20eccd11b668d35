// Package storetest opens throwaway SQLite stores with the service schema
// for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	projectrepo "github.com/ovaphlow/pitchfork/service-task-go/internal/project/repo"
	taskrepo "github.com/ovaphlow/pitchfork/service-task-go/internal/task/repo"
	userrepo "github.com/ovaphlow/pitchfork/service-task-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-task-go/pkg/database"
)

// Store bundles an in-memory database with its repositories.
type Store struct {
	DB       *sqlx.DB
	Users    *userrepo.UserRepo
	Projects *projectrepo.ProjectRepo
	Tasks    *taskrepo.TaskRepo
}

// Open returns a fresh in-memory store; it is closed when the test ends.
func Open(t testing.TB) *Store {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := &Store{
		DB:       db,
		Users:    userrepo.NewUserRepo(db),
		Projects: projectrepo.NewProjectRepo(db),
		Tasks:    taskrepo.NewTaskRepo(db),
	}
	ctx := context.Background()
	for _, ensure := range []func(context.Context) error{s.Users.EnsureTable, s.Projects.EnsureTable, s.Tasks.EnsureTable} {
		if err := ensure(ctx); err != nil {
			t.Fatalf("EnsureTable: %v", err)
		}
	}
	return s
}
