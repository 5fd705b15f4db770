package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/workhub/workhub/internal/middleware"
	"github.com/workhub/workhub/internal/permission"
)

func requestWithRole(role permission.Role) *http.Request {
	r := httptest.NewRequest("POST", "/api/conversations", nil)
	ctx := context.WithValue(r.Context(), middleware.RoleKey, role)
	return r.WithContext(ctx)
}

func TestRequirePermission(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	gate := middleware.RequirePermission(permission.ChatSend)(next)

	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, requestWithRole(permission.RoleDeveloper))
	if rec.Code != http.StatusNoContent {
		t.Errorf("developer should pass chat.send gate, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, requestWithRole(permission.RoleViewer))
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer should be rejected, got %d", rec.Code)
	}
}

func TestMissingRoleDefaultsToViewer(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	gate := middleware.RequirePermission(permission.ChatSend)(next)

	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, httptest.NewRequest("POST", "/api/conversations", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("missing role must default to the most restrictive set, got %d", rec.Code)
	}
}
