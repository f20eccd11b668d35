package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/task/entity"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		f         Filter
		p         Page
		wantLimit int
		wantOrder string
		wantErr   bool
	}{
		{name: "defaults", wantLimit: DefaultLimit, wantOrder: OrderAsc},
		{name: "limit capped", p: Page{Limit: 1000}, wantLimit: MaxLimit, wantOrder: OrderAsc},
		{name: "sort keys are case-insensitive", f: Filter{SortBy: "Priority", SortOrder: "DESC"}, wantLimit: DefaultLimit, wantOrder: OrderDesc},
		{name: "unknown sort key", f: Filter{SortBy: "title"}, wantErr: true},
		{name: "unknown order", f: Filter{SortOrder: "sideways"}, wantErr: true},
		{name: "negative skip", p: Page{Skip: -1}, wantErr: true},
		{name: "negative limit", p: Page{Limit: -5}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, p, err := Normalize(tt.f, tt.p)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if p.Limit != tt.wantLimit || f.SortOrder != tt.wantOrder {
				t.Fatalf("got limit=%d order=%q", p.Limit, f.SortOrder)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	prio := 3
	project := int64(9)
	due := entity.NewDate(2026, 2, 3)
	f, p, err := Normalize(Filter{
		Status:    "done",
		Priority:  &prio,
		ProjectID: &project,
		DueDate:   &due,
		SortBy:    SortDueDate,
		SortOrder: OrderDesc,
	}, Page{Skip: 20, Limit: 5})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	sql, args := Build(7, f, p)
	for _, want := range []string{
		"WHERE p.owner_id = ?",
		"AND t.status = ?",
		"AND t.priority = ?",
		"AND t.project_id = ?",
		"AND t.due_date = ?",
		"t.due_date DESC, t.id",
		"LIMIT ? OFFSET ?",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("query %q missing %q", sql, want)
		}
	}
	if got := strings.Count(sql, "?"); got != len(args) {
		t.Fatalf("%d placeholders for %d args", got, len(args))
	}
	if args[0] != int64(7) || args[1] != "done" || args[2] != 3 || args[3] != int64(9) {
		t.Fatalf("unexpected leading args: %v", args[:4])
	}
	if args[len(args)-2] != 5 || args[len(args)-1] != 20 {
		t.Fatalf("limit/offset args = %v", args[len(args)-2:])
	}
}

func TestBuild_OwnerPredicateAlwaysPresent(t *testing.T) {
	sql, args := Build(1, Filter{}, Page{Limit: DefaultLimit})
	if !strings.HasPrefix(sql, " WHERE p.owner_id = ?") {
		t.Fatalf("owner predicate missing: %q", sql)
	}
	if !strings.Contains(sql, "ORDER BY t.id") {
		t.Fatalf("default ordering missing: %q", sql)
	}
	if len(args) != 3 {
		t.Fatalf("args = %v", args)
	}
}
