// Пакет handlers: HTTP-обработчики веб-интерфейса jobboard.
// pages.go: страницы с серверным prefetch.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/bigkaa/jobboard/internal/ui/auth"
	"github.com/bigkaa/jobboard/internal/ui/pages"
)

// maxSearchLength: ограничение строки поиска (совпадает с OpenAPI job.list).
const maxSearchLength = 200

// PageRenderer рендерит страницу по её описанию.
type PageRenderer interface {
	Render(w http.ResponseWriter, r *http.Request, spec pages.Spec) pages.State
}

// PageHandler: обработчики страниц.
type PageHandler struct {
	renderer PageRenderer
}

// NewPageHandler создаёт PageHandler.
func NewPageHandler(renderer PageRenderer) *PageHandler {
	return &PageHandler{renderer: renderer}
}

// Home: GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, pages.Home())
}

// Jobs: GET /jobs?q=&page=
func (h *PageHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("q"))
	if utf8.RuneCountInString(search) > maxSearchLength {
		search = string([]rune(search)[:maxSearchLength])
	}
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	h.renderer.Render(w, r, pages.Jobs(search, page))
}

// Job: GET /jobs/{jobId}. Некорректный UUID - 404 без обращения к данным.
func (h *PageHandler) Job(w http.ResponseWriter, r *http.Request) {
	var jobID openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "jobId", chi.URLParam(r, "jobId"), &jobID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		h.NotFound(w, r)
		return
	}
	h.renderer.Render(w, r, pages.Job(jobID.String()))
}

// CompanyDashboard: GET /company (роль company).
func (h *PageHandler) CompanyDashboard(w http.ResponseWriter, r *http.Request) {
	s := auth.FromContext(r.Context())
	h.renderer.Render(w, r, pages.CompanyDashboard(s.Subject(), companyNotice(r.URL.Query().Get("saved")), nil))
}

// CandidateDashboard: GET /candidate (роль candidate).
func (h *PageHandler) CandidateDashboard(w http.ResponseWriter, r *http.Request) {
	s := auth.FromContext(r.Context())
	notice := ""
	if r.URL.Query().Get("saved") == "profile" {
		notice = "candidate.saved"
	}
	h.renderer.Render(w, r, pages.CandidateDashboard(s.Subject(), notice, nil))
}

// AdminDashboard: GET /admin (роль admin).
func (h *PageHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, pages.AdminDashboard())
}

// Forbidden: 403 в оболочке текущей роли.
func (h *PageHandler) Forbidden(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, pages.Spec{
		Name:     "forbidden",
		TitleKey: "error.forbidden",
		Status:   http.StatusForbidden,
		View:     pages.Message("error.forbidden", "error.forbidden_text"),
	})
}

// NotFound: 404 в оболочке текущей роли.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, pages.Spec{
		Name:     "not_found",
		TitleKey: "error.not_found",
		Status:   http.StatusNotFound,
		View:     pages.Message("error.not_found", "error.not_found_text"),
	})
}

// companyNotice: ключ сообщения после успешного действия в кабинете компании.
func companyNotice(saved string) string {
	switch saved {
	case "profile":
		return "company.saved_profile"
	case "job":
		return "company.saved_job"
	case "closed":
		return "company.saved_closed"
	default:
		return ""
	}
}
