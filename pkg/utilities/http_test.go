package utilities

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: apperr.Invalid("title", "is required"), want: http.StatusUnprocessableEntity},
		{name: "duplicate email", err: apperr.ErrDuplicateEmail, want: http.StatusConflict},
		{name: "invalid credentials", err: apperr.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{name: "invalid token", err: apperr.ErrInvalidToken, want: http.StatusUnauthorized},
		{name: "not found", err: fmt.Errorf("load: %w", apperr.ErrNotFound), want: http.StatusNotFound},
		{name: "forbidden", err: apperr.ErrForbidden, want: http.StatusForbidden},
		{name: "storage unavailable", err: fmt.Errorf("%w: conn reset", apperr.ErrStorageUnavailable), want: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("kaboom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, zap.NewNop().Sugar(), tt.err)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if body["error"] == "" {
				t.Fatalf("missing error message: %v", body)
			}
			if strings.Contains(body["error"], "kaboom") || strings.Contains(body["error"], "conn reset") {
				t.Fatalf("internal detail leaked: %q", body["error"])
			}
		})
	}

	rec := httptest.NewRecorder()
	WriteError(rec, zap.NewNop().Sugar(), apperr.ErrInvalidToken)
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatalf("missing WWW-Authenticate header")
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"x"}`},
		{name: "unknown field", body: `{"name":"x","extra":1}`, wantErr: true},
		{name: "malformed", body: `{"name":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(req, &p)
			if tt.wantErr {
				var ve *apperr.ValidationError
				if !errors.As(err, &ve) || ve.Field != "body" {
					t.Fatalf("expected body validation error, got %v", err)
				}
				return
			}
			if err != nil || p.Name != "x" {
				t.Fatalf("DecodeJSON = %v, %+v", err, p)
			}
		})
	}
}

func TestNewRequestIDIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewRequestID()
		if id == "" || seen[id] {
			t.Fatalf("duplicate or empty id %q", id)
		}
		seen[id] = true
	}
}
