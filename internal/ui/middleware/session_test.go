package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bigkaa/jobboard/internal/domain/role"
	"github.com/bigkaa/jobboard/internal/ui/auth"
)

type staticResolver auth.Session

func (s staticResolver) Resolve(*http.Request) auth.Session {
	return auth.Session(s)
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func forbiddenHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusForbidden)
}

func TestSession_PutsSessionIntoContext(t *testing.T) {
	want := auth.Session{Identity: &auth.Identity{ID: "u1"}, Role: role.Company}

	var got auth.Session
	h := Session(staticResolver(want))(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = auth.FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got.Subject() != "u1" || got.Role != role.Company {
		t.Errorf("сессия в контексте = %+v", got)
	}
}

func TestRoleGate_Require(t *testing.T) {
	company := auth.Session{Identity: &auth.Identity{ID: "u1"}, Role: role.Company}
	candidate := auth.Session{Identity: &auth.Identity{ID: "u2"}, Role: role.Candidate}
	noRole := auth.Session{Identity: &auth.Identity{ID: "u3"}, Role: role.Anonymous}

	tests := []struct {
		name         string
		session      auth.Session
		method       string
		path         string
		wantStatus   int
		wantLocation string
	}{
		{"гость → вход", auth.Anonymous, http.MethodGet, "/company?tab=jobs", http.StatusSeeOther, "/auth/login?returnTo=%2Fcompany%3Ftab%3Djobs"},
		{"гость POST → раздел", auth.Anonymous, http.MethodPost, "/company/jobs/1/close", http.StatusSeeOther, "/auth/login?returnTo=%2Fcompany"},
		{"identity без роли → 403", noRole, http.MethodGet, "/company", http.StatusForbidden, ""},
		{"чужая роль → 403", candidate, http.MethodGet, "/company", http.StatusForbidden, ""},
		{"своя роль", company, http.MethodGet, "/company", http.StatusOK, ""},
	}

	gate := NewRoleGate(http.HandlerFunc(forbiddenHandler), slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Session(staticResolver(tt.session))(gate.Require(role.Company)(http.HandlerFunc(okHandler)))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, ожидалось %d", w.Code, tt.wantStatus)
			}
			if tt.wantLocation != "" && w.Header().Get("Location") != tt.wantLocation {
				t.Errorf("Location = %q, ожидалось %q", w.Header().Get("Location"), tt.wantLocation)
			}
		})
	}
}

func TestLoginURL(t *testing.T) {
	tests := map[string]string{
		"":       "/auth/login",
		"/":      "/auth/login",
		"/admin": "/auth/login?returnTo=%2Fadmin",
	}
	for in, want := range tests {
		if got := LoginURL(in); got != want {
			t.Errorf("LoginURL(%q) = %q, ожидалось %q", in, got, want)
		}
	}
}
