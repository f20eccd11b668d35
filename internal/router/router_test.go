package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/project"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/storetest"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/task"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/user"
)

type outbox struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (o *outbox) Dispatch(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) snapshot() []notify.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]notify.Message(nil), o.msgs...)
}

type server struct {
	t       *testing.T
	handler http.Handler
	out     *outbox
}

func newServer(t *testing.T) *server {
	t.Helper()
	st := storetest.Open(t)
	logger := zap.NewNop().Sugar()

	tokens, err := auth.NewTokenService([]byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	users := user.NewUserService(st.Users, user.BcryptHasher{Cost: bcrypt.MinCost})
	out := &outbox{}
	trigger := notify.NewTrigger(users, out, logger)
	tasks := task.NewService(st.Tasks, st.Projects, task.Defaults{Priority: 1}, logger, trigger)

	h := RegisterRoutes(Deps{
		Logger:      logger,
		Store:       st.DB,
		Users:       user.NewHandler(users, tokens, logger),
		Projects:    project.NewHandler(project.NewService(st.Projects), logger),
		Tasks:       task.NewHandler(tasks, logger),
		RequireUser: auth.Middleware(auth.NewResolver(tokens, users), logger),
	})
	return &server{t: t, handler: h, out: out}
}

func (s *server) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, apiPrefix+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *server) expect(rec *httptest.ResponseRecorder, status int, into any) {
	s.t.Helper()
	if rec.Code != status {
		s.t.Fatalf("status = %d, want %d; body: %s", rec.Code, status, rec.Body.String())
	}
	if into != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
			s.t.Fatalf("decode response: %v", err)
		}
	}
}

func (s *server) signup(email, password string) string {
	s.t.Helper()
	s.expect(s.do(http.MethodPost, "/register", "", map[string]string{"email": email, "password": password}), http.StatusCreated, nil)
	var tok user.TokenResponse
	s.expect(s.do(http.MethodPost, "/login", "", map[string]string{"email": email, "password": password}), http.StatusOK, &tok)
	if tok.AccessToken == "" || tok.TokenType != "bearer" || tok.ExpiresIn != 3600 {
		s.t.Fatalf("unexpected token response: %+v", tok)
	}
	return tok.AccessToken
}

type idBody struct {
	ID             int64  `json:"id"`
	Status         string `json:"status"`
	Title          string `json:"title"`
	AssignedUserID *int64 `json:"assigned_user_id"`
}

func TestTaskLifecycle(t *testing.T) {
	s := newServer(t)
	alice := s.signup("alice@x.com", "pw1")

	var p idBody
	s.expect(s.do(http.MethodPost, "/projects", alice, map[string]any{"name": "P1"}), http.StatusCreated, &p)

	var created idBody
	s.expect(s.do(http.MethodPost, "/tasks", alice, map[string]any{"project_id": p.ID, "title": "T1"}), http.StatusCreated, &created)
	if created.Status != "pending" || created.AssignedUserID != nil {
		t.Fatalf("unexpected task: %+v", created)
	}
	if n := len(s.out.snapshot()); n != 0 {
		t.Fatalf("unassigned create sent %d notifications", n)
	}

	var updated idBody
	s.expect(s.do(http.MethodPatch, fmt.Sprintf("/tasks/%d", created.ID), alice, map[string]any{"status": "done", "project_id": p.ID, "title": "T1"}), http.StatusOK, &updated)
	if updated.Status != "done" || updated.Title != "T1" {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if n := len(s.out.snapshot()); n != 0 {
		t.Fatalf("status change without assignee sent %d notifications", n)
	}
}

func TestAssignmentAndIsolation(t *testing.T) {
	s := newServer(t)
	alice := s.signup("alice@x.com", "pw1")
	bob := s.signup("bob@x.com", "pw2")

	var me struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	s.expect(s.do(http.MethodGet, "/me", bob, nil), http.StatusOK, &me)
	if me.Email != "bob@x.com" {
		t.Fatalf("me = %+v", me)
	}

	var p idBody
	s.expect(s.do(http.MethodPost, "/projects", alice, map[string]any{"name": "P1"}), http.StatusCreated, &p)
	var tk idBody
	s.expect(s.do(http.MethodPost, "/tasks", alice, map[string]any{"project_id": p.ID, "title": "Write report"}), http.StatusCreated, &tk)

	s.expect(s.do(http.MethodPatch, fmt.Sprintf("/tasks/%d", tk.ID), alice, map[string]any{"assigned_user_id": me.ID}), http.StatusOK, nil)
	msgs := s.out.snapshot()
	if len(msgs) != 1 || msgs[0].To != "bob@x.com" || msgs[0].Subject != notify.SubjectAssigned {
		t.Fatalf("expected one assignment mail to bob, got %+v", msgs)
	}

	s.expect(s.do(http.MethodPatch, fmt.Sprintf("/tasks/%d", tk.ID), alice, map[string]any{"status": "in_progress"}), http.StatusOK, nil)
	msgs = s.out.snapshot()
	if len(msgs) != 2 || msgs[1].Subject != notify.SubjectStatusUpdated {
		t.Fatalf("expected a status mail, got %+v", msgs)
	}

	// bob is the assignee but not the owner
	taskPath := fmt.Sprintf("/tasks/%d", tk.ID)
	s.expect(s.do(http.MethodGet, taskPath, bob, nil), http.StatusNotFound, nil)
	s.expect(s.do(http.MethodPatch, taskPath, bob, map[string]any{"status": "done"}), http.StatusNotFound, nil)
	s.expect(s.do(http.MethodDelete, taskPath, bob, nil), http.StatusNotFound, nil)
	s.expect(s.do(http.MethodGet, fmt.Sprintf("/projects/%d", p.ID), bob, nil), http.StatusNotFound, nil)
	s.expect(s.do(http.MethodPost, "/tasks", bob, map[string]any{"project_id": p.ID, "title": "sneaky"}), http.StatusForbidden, nil)

	var bobTasks []idBody
	s.expect(s.do(http.MethodGet, "/tasks", bob, nil), http.StatusOK, &bobTasks)
	if len(bobTasks) != 0 {
		t.Fatalf("bob sees tasks owned by alice: %+v", bobTasks)
	}

	s.expect(s.do(http.MethodDelete, fmt.Sprintf("/projects/%d", p.ID), alice, nil), http.StatusNoContent, nil)
	s.expect(s.do(http.MethodGet, taskPath, alice, nil), http.StatusNotFound, nil)
}

func TestListQueryParameters(t *testing.T) {
	s := newServer(t)
	alice := s.signup("alice@x.com", "pw1")
	var p idBody
	s.expect(s.do(http.MethodPost, "/projects", alice, map[string]any{"name": "P1"}), http.StatusCreated, &p)
	for i, status := range []string{"pending", "done", "pending"} {
		body := map[string]any{"project_id": p.ID, "title": fmt.Sprintf("t%d", i), "status": status, "priority": i + 1}
		s.expect(s.do(http.MethodPost, "/tasks", alice, body), http.StatusCreated, nil)
	}

	var got []idBody
	s.expect(s.do(http.MethodGet, "/tasks?status=pending&sort_by=priority&sort_order=desc", alice, nil), http.StatusOK, &got)
	if len(got) != 2 || got[0].Title != "t2" || got[1].Title != "t0" {
		t.Fatalf("unexpected listing: %+v", got)
	}
	s.expect(s.do(http.MethodGet, "/tasks?limit=1&skip=1", alice, nil), http.StatusOK, &got)
	if len(got) != 1 || got[0].Title != "t1" {
		t.Fatalf("unexpected page: %+v", got)
	}
	s.expect(s.do(http.MethodGet, "/tasks?priority=high", alice, nil), http.StatusUnprocessableEntity, nil)
	s.expect(s.do(http.MethodGet, "/tasks?sort_by=title", alice, nil), http.StatusUnprocessableEntity, nil)
}

func TestAuthErrors(t *testing.T) {
	s := newServer(t)
	s.signup("alice@x.com", "pw1")

	s.expect(s.do(http.MethodPost, "/register", "", map[string]string{"email": "alice@x.com", "password": "x"}), http.StatusConflict, nil)
	s.expect(s.do(http.MethodPost, "/login", "", map[string]string{"email": "alice@x.com", "password": "nope"}), http.StatusUnauthorized, nil)
	s.expect(s.do(http.MethodPost, "/login", "", map[string]string{"email": "ghost@x.com", "password": "pw1"}), http.StatusUnauthorized, nil)
	s.expect(s.do(http.MethodGet, "/tasks", "", nil), http.StatusUnauthorized, nil)
	s.expect(s.do(http.MethodGet, "/projects", "garbage", nil), http.StatusUnauthorized, nil)
	s.expect(s.do(http.MethodPost, "/register", "", map[string]string{"email": "new@x.com", "password": "pw", "role": "admin"}), http.StatusUnprocessableEntity, nil)
}

func TestHealthAndHeaders(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id missing")
	}
}
