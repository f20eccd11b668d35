package project

import (
	"context"
	"errors"
	"testing"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/storetest"
	taskentity "github.com/ovaphlow/pitchfork/service-task-go/internal/task/entity"
	userentity "github.com/ovaphlow/pitchfork/service-task-go/internal/user/entity"
)

func setup(t *testing.T) (*storetest.Store, *Service, int64, int64) {
	t.Helper()
	st := storetest.Open(t)
	ids := make([]int64, 0, 2)
	for _, email := range []string{"alice@x.com", "bob@x.com"} {
		u := &userentity.User{Email: email, PasswordHash: "h"}
		if err := st.Users.Create(context.Background(), u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		ids = append(ids, u.ID)
	}
	return st, NewService(st.Projects), ids[0], ids[1]
}

func strp(s string) *string { return &s }

func TestCreateListGet(t *testing.T) {
	_, svc, alice, bob := setup(t)
	ctx := context.Background()

	p1, err := svc.Create(ctx, alice, Input{Name: " P1 ", Description: strp("first")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p1.ID == 0 || p1.Name != "P1" || p1.OwnerID != alice {
		t.Fatalf("unexpected project: %+v", p1)
	}
	if _, err := svc.Create(ctx, alice, Input{Name: "P2"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, bob, Input{Name: "B1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := svc.List(ctx, alice)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Name != "P1" || list[1].Name != "P2" {
		t.Fatalf("unexpected list: %+v", list)
	}

	got, err := svc.Get(ctx, p1.ID, alice)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description == nil || *got.Description != "first" {
		t.Fatalf("description not stored: %+v", got)
	}
	if _, err := svc.Get(ctx, p1.ID, bob); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("non-owner Get: expected ErrNotFound, got %v", err)
	}

	empty, err := svc.List(ctx, 999)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", empty)
	}
}

func TestCreateRequiresName(t *testing.T) {
	_, svc, alice, _ := setup(t)
	var ve *apperr.ValidationError
	if _, err := svc.Create(context.Background(), alice, Input{Name: "  "}); !errors.As(err, &ve) || ve.Field != "name" {
		t.Fatalf("expected validation error on name, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	_, svc, alice, bob := setup(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, alice, Input{Name: "P", Description: strp("d")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Update(ctx, p.ID, alice, Input{Name: "Renamed"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Name != "Renamed" || got.Description != nil {
		t.Fatalf("update should replace name and clear description: %+v", got)
	}
	if _, err := svc.Update(ctx, p.ID, bob, Input{Name: "Hijack"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("non-owner Update: expected ErrNotFound, got %v", err)
	}
	still, err := svc.Get(ctx, p.ID, alice)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if still.Name != "Renamed" {
		t.Fatalf("non-owner update changed the project: %+v", still)
	}
}

func TestDeleteRemovesTasks(t *testing.T) {
	st, svc, alice, bob := setup(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, alice, Input{Name: "P"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	task := &taskentity.Task{ProjectID: p.ID, Title: "T", Status: "pending", Priority: 1}
	if err := st.Tasks.Create(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := svc.Delete(ctx, p.ID, bob); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("non-owner Delete: expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, p.ID, alice); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, p.ID, alice); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected project gone, got %v", err)
	}
	if _, err := st.Tasks.GetOwned(ctx, task.ID, alice); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected task gone with its project, got %v", err)
	}
	var n int
	if err := st.DB.Get(&n, `SELECT COUNT(*) FROM tasks`); err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	if n != 0 {
		t.Fatalf("orphaned tasks remain: %d", n)
	}
}
