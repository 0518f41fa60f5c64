package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/jobboard/internal/api/handlers"
	"github.com/bigkaa/jobboard/internal/domain/model"
	"github.com/bigkaa/jobboard/internal/domain/role"
	"github.com/bigkaa/jobboard/internal/query"
	"github.com/bigkaa/jobboard/internal/service"
	"github.com/bigkaa/jobboard/internal/ui/auth"
	uihandlers "github.com/bigkaa/jobboard/internal/ui/handlers"
	"github.com/bigkaa/jobboard/internal/ui/pages"
	"github.com/bigkaa/jobboard/internal/ui/prefetch"
)

const testJobID = "0b5c1c8e-3f7a-4d8e-9a4b-42c0ffee0042"

// --- Источники данных ---

type memSource struct{}

var testJob = &model.Job{
	ID:          testJobID,
	CompanyID:   "c1",
	CompanyName: "Acme",
	Title:       "Platform engineer",
	Description: "Kubernetes, Go",
	Status:      model.JobStatusOpen,
	CreatedAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
}

func (memSource) List(context.Context, string, int) (*service.JobPage, error) {
	return &service.JobPage{Jobs: []*model.Job{testJob}, Total: 1, Page: 1, PageSize: service.JobsPageSize, Pages: 1}, nil
}

func (memSource) Get(_ context.Context, id string) (*model.Job, error) {
	if id == testJobID {
		return testJob, nil
	}
	return nil, service.ErrNotFound
}

func (memSource) ListByOwner(_ context.Context, ownerID string) ([]*model.Job, error) {
	if ownerID == "u1" {
		return []*model.Job{testJob}, nil
	}
	return []*model.Job{}, nil
}

func (memSource) GetByOwner(_ context.Context, ownerID string) (*model.Company, error) {
	if ownerID == "u1" {
		return &model.Company{ID: "c1", OwnerID: "u1", Name: "Acme", ContactEmail: "hr@acme.test"}, nil
	}
	return nil, service.ErrNotFound
}

func (memSource) Overview(context.Context) (*model.Overview, error) {
	return &model.Overview{Companies: 1, Candidates: 2, Jobs: 1, OpenJobs: 1}, nil
}

type memCandidates struct{}

func (memCandidates) GetByUser(context.Context, string) (*model.Candidate, error) {
	return nil, service.ErrNotFound
}

// headerResolver: сессия из тестовых заголовков X-Test-User / X-Test-Role.
type headerResolver struct{}

func (headerResolver) Resolve(r *http.Request) auth.Session {
	user := r.Header.Get("X-Test-User")
	if user == "" {
		return auth.Anonymous
	}
	return auth.Session{Identity: &auth.Identity{ID: user}, Role: role.Parse(r.Header.Get("X-Test-Role"))}
}

type noopForms struct{}

func (noopForms) SaveProfile(context.Context, string, service.CompanyInput) (*model.Company, error) {
	return &model.Company{}, nil
}

type noopJobs struct{}

func (noopJobs) Create(context.Context, string, service.JobInput) (*model.Job, error) {
	return &model.Job{}, nil
}

func (noopJobs) Close(context.Context, string, string) error { return nil }

type noopCandidates struct{}

func (noopCandidates) SaveProfile(context.Context, string, service.CandidateInput) (*model.Candidate, error) {
	return &model.Candidate{}, nil
}

type okChecker struct{}

func (okChecker) CheckReady() (string, string) { return "ok", "" }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	doc, err := query.LoadDocument()
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	src := memSource{}
	exec, err := query.NewExecutor(query.Catalog(query.Sources{
		Jobs: src, Companies: src, Candidates: memCandidates{}, Stats: src,
	}), query.NewValidator(doc), query.NewResultCache(16, time.Minute), logger)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}

	sm, err := auth.NewSessionManager("router-test-secret", false, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	oidc := auth.NewOIDCClient(auth.OIDCConfig{KeycloakURL: "http://keycloak.test", Realm: "jobboard", ClientID: "jobboard-web"})

	pageHandler := uihandlers.NewPageHandler(pages.NewRenderer(exec, prefetch.Options{Timeout: time.Second}, logger))

	return NewRouter(logger, Handlers{
		Health:     handlers.NewHealthHandler(okChecker{}, okChecker{}),
		RPC:        handlers.NewRPCHandler(exec, []byte(`{"openapi":"3.0.3"}`), logger),
		Pages:      pageHandler,
		Forms:      uihandlers.NewFormHandler(noopForms{}, noopJobs{}, noopCandidates{}, exec, pageHandler, logger),
		Auth:       uihandlers.NewAuthHandler(oidc, sm, nil, logger),
		Sessions:   headerResolver{},
		APIOrigins: []string{"https://partner.example.com"},
	})
}

func do(h http.Handler, method, path, user, userRole string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
		req.Header.Set("X-Test-Role", userRole)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Statuses(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name         string
		method       string
		path         string
		user, role   string
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{"liveness", http.MethodGet, "/health/live", "", "", http.StatusOK, "", `"status":"ok"`},
		{"readiness", http.MethodGet, "/health/ready", "", "", http.StatusOK, "", `"postgresql"`},
		{"статика", http.MethodGet, "/static/js/hydrate.js", "", "", http.StatusOK, "", "data-rpc-url"},
		{"openapi", http.MethodGet, "/api/openapi.json", "", "", http.StatusOK, "", "openapi"},
		{"главная гостю", http.MethodGet, "/", "", "", http.StatusOK, "", `data-role="anonymous"`},
		{"вакансия", http.MethodGet, "/jobs/" + testJobID, "", "", http.StatusOK, "", "Platform engineer"},
		{"кабинет гостю", http.MethodGet, "/company", "", "", http.StatusSeeOther, "/auth/login?returnTo=%2Fcompany", ""},
		{"кабинет компании", http.MethodGet, "/company", "u1", "company", http.StatusOK, "", `data-company-id="c1"`},
		{"кабинет соискателю", http.MethodGet, "/company", "u2", "candidate", http.StatusForbidden, "", `data-role="candidate"`},
		{"админка компании", http.MethodGet, "/admin", "u1", "company", http.StatusForbidden, "", ""},
		{"админка", http.MethodGet, "/admin", "root", "admin", http.StatusOK, "", `<span class="stat__value">2</span>`},
		{"профиль соискателя", http.MethodGet, "/candidate", "u2", "candidate", http.StatusOK, "", `action="/candidate/profile"`},
		{"неизвестная страница", http.MethodGet, "/nope", "", "", http.StatusNotFound, "", `data-role="anonymous"`},
		{"вход", http.MethodGet, "/auth/login", "", "", http.StatusFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, tt.method, tt.path, tt.user, tt.role)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, ожидалось %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantLocation != "" && w.Header().Get("Location") != tt.wantLocation {
				t.Errorf("Location = %q, ожидалось %q", w.Header().Get("Location"), tt.wantLocation)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("ответ не содержит %q", tt.wantBody)
			}
		})
	}
}

func TestRouter_APICORS(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		origin     string
		wantOrigin string
	}{
		{"preflight разрешённого origin", http.MethodOptions, "/api/rpc/job.list", "https://partner.example.com", "https://partner.example.com"},
		{"GET разрешённого origin", http.MethodGet, "/api/rpc/job.list", "https://partner.example.com", "https://partner.example.com"},
		{"чужой origin", http.MethodGet, "/api/rpc/job.list", "https://evil.example.com", ""},
		{"страницы без CORS", http.MethodGet, "/jobs", "https://partner.example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
				req.Header.Set("Access-Control-Request-Headers", "Authorization")
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, ожидалось %q", got, tt.wantOrigin)
			}
			if tt.method == http.MethodGet && w.Code != http.StatusOK {
				t.Errorf("status = %d, ожидалось 200", w.Code)
			}
		})
	}
}

func TestRouter_RPC(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name       string
		path       string
		user, role string
		wantStatus int
		wantCode   string
	}{
		{"публичный запрос", "/api/rpc/job.getJob?jobId=" + testJobID, "", "", http.StatusOK, ""},
		{"нет вакансии", "/api/rpc/job.getJob?jobId=11111111-2222-4333-8444-555555555555", "", "", http.StatusNotFound, "NOT_FOUND"},
		{"неизвестный запрос", "/api/rpc/job.delete", "", "", http.StatusNotFound, "UNKNOWN_QUERY"},
		{"гость и статистика", "/api/rpc/stats.overview", "", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"чужой профиль", "/api/rpc/company.getByOwner?ownerId=u2", "u1", "company", http.StatusForbidden, "FORBIDDEN"},
		{"свой профиль", "/api/rpc/company.getByOwner?ownerId=u1", "u1", "company", http.StatusOK, ""},
		{"некорректный параметр", "/api/rpc/job.list?page=abc", "", "", http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodGet, tt.path, tt.user, tt.role)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, ожидалось %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCode == "" {
				var resp struct {
					Data json.RawMessage `json:"data"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || len(resp.Data) == 0 {
					t.Errorf("ожидался ответ {\"data\": ...}: %s", w.Body.String())
				}
				return
			}
			var env struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatalf("ответ не JSON: %v", err)
			}
			if env.Error.Code != tt.wantCode {
				t.Errorf("code = %q, ожидалось %q", env.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestRouter_PrefetchAndRPCShareKeys(t *testing.T) {
	h := newTestRouter(t)

	w := do(h, http.MethodGet, "/jobs/"+testJobID, "", "")
	body := w.Body.String()

	const marker = `id="jb-hydration" type="application/json">`
	start := strings.Index(body, marker)
	if start < 0 {
		t.Fatal("нет payload гидратации")
	}
	payload := body[start+len(marker):]
	payload = payload[:strings.Index(payload, "</script>")]

	var decoded struct {
		Queries []struct {
			QueryKey []json.RawMessage `json:"queryKey"`
		} `json:"queries"`
	}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if len(decoded.Queries) != 1 {
		t.Fatalf("ожидался 1 запрос в payload, получено %d", len(decoded.Queries))
	}
	var name string
	var params map[string]string
	_ = json.Unmarshal(decoded.Queries[0].QueryKey[0], &name)
	_ = json.Unmarshal(decoded.Queries[0].QueryKey[1], &params)

	rpc := do(h, http.MethodGet, query.URL(name, params), "", "")
	if rpc.Code != http.StatusOK {
		t.Errorf("RPC по ключу из payload должен отвечать 200, получено %d", rpc.Code)
	}
}
