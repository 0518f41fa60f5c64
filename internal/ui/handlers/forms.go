// forms.go: обработка форм кабинетов компании и соискателя.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/jobboard/internal/domain/model"
	"github.com/bigkaa/jobboard/internal/query"
	"github.com/bigkaa/jobboard/internal/service"
	"github.com/bigkaa/jobboard/internal/ui/auth"
	"github.com/bigkaa/jobboard/internal/ui/pages"
)

// maxFormBytes: ограничение размера тела формы.
const maxFormBytes = 64 << 10

// CompanyProfiles: сохранение профиля компании.
type CompanyProfiles interface {
	SaveProfile(ctx context.Context, ownerID string, in service.CompanyInput) (*model.Company, error)
}

// JobManager: управление вакансиями компании.
type JobManager interface {
	Create(ctx context.Context, ownerID string, in service.JobInput) (*model.Job, error)
	Close(ctx context.Context, ownerID, jobID string) error
}

// CandidateProfiles: сохранение профиля соискателя.
type CandidateProfiles interface {
	SaveProfile(ctx context.Context, userID string, in service.CandidateInput) (*model.Candidate, error)
}

// Invalidator сбрасывает кэш результатов запросов после изменений.
type Invalidator interface {
	Invalidate(names ...string)
}

// FormHandler: обработчики POST-форм.
type FormHandler struct {
	companies  CompanyProfiles
	jobs       JobManager
	candidates CandidateProfiles
	cache      Invalidator
	pages      *PageHandler
	logger     *slog.Logger
}

// NewFormHandler создаёт FormHandler. Ошибки валидации рендерятся
// через pages с исходными значениями формы.
func NewFormHandler(
	companies CompanyProfiles,
	jobs JobManager,
	candidates CandidateProfiles,
	cache Invalidator,
	pages *PageHandler,
	logger *slog.Logger,
) *FormHandler {
	return &FormHandler{
		companies:  companies,
		jobs:       jobs,
		candidates: candidates,
		cache:      cache,
		pages:      pages,
		logger:     logger.With(slog.String("component", "ui_forms")),
	}
}

// SaveCompanyProfile: POST /company/profile
func (h *FormHandler) SaveCompanyProfile(w http.ResponseWriter, r *http.Request) {
	values, ok := h.parseForm(w, r, "name", "website", "contactEmail", "description")
	if !ok {
		return
	}
	s := auth.FromContext(r.Context())

	_, err := h.companies.SaveProfile(r.Context(), s.Subject(), service.CompanyInput{
		Name:         values["name"],
		Website:      values["website"],
		ContactEmail: values["contactEmail"],
		Description:  values["description"],
	})
	if err != nil {
		h.fail(w, r, err, func(form *pages.Form) pages.Spec {
			form.Name = "profile"
			return pages.CompanyDashboard(s.Subject(), "", form)
		}, values)
		return
	}

	h.cache.Invalidate(query.CompanyGetByOwner, query.JobList, query.JobGet, query.JobListByOwner, query.StatsOverview)
	http.Redirect(w, r, "/company?saved=profile", http.StatusSeeOther)
}

// CreateJob: POST /company/jobs
func (h *FormHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	values, ok := h.parseForm(w, r, "title", "location", "salaryRange", "description")
	if !ok {
		return
	}
	s := auth.FromContext(r.Context())

	_, err := h.jobs.Create(r.Context(), s.Subject(), service.JobInput{
		Title:       values["title"],
		Location:    values["location"],
		Description: values["description"],
		SalaryRange: values["salaryRange"],
	})
	if err != nil {
		h.fail(w, r, err, func(form *pages.Form) pages.Spec {
			form.Name = "job"
			return pages.CompanyDashboard(s.Subject(), "", form)
		}, values)
		return
	}

	h.cache.Invalidate(query.JobList, query.JobListByOwner, query.StatsOverview)
	http.Redirect(w, r, "/company?saved=job", http.StatusSeeOther)
}

// CloseJob: POST /company/jobs/{jobId}/close
func (h *FormHandler) CloseJob(w http.ResponseWriter, r *http.Request) {
	s := auth.FromContext(r.Context())
	jobID := chi.URLParam(r, "jobId")

	if err := h.jobs.Close(r.Context(), s.Subject(), jobID); err != nil {
		h.fail(w, r, err, nil, nil)
		return
	}

	h.cache.Invalidate(query.JobList, query.JobGet, query.JobListByOwner, query.StatsOverview)
	http.Redirect(w, r, "/company?saved=closed", http.StatusSeeOther)
}

// SaveCandidateProfile: POST /candidate/profile
func (h *FormHandler) SaveCandidateProfile(w http.ResponseWriter, r *http.Request) {
	values, ok := h.parseForm(w, r, "fullName", "headline", "location", "skills")
	if !ok {
		return
	}
	s := auth.FromContext(r.Context())

	_, err := h.candidates.SaveProfile(r.Context(), s.Subject(), service.CandidateInput{
		FullName: values["fullName"],
		Headline: values["headline"],
		Location: values["location"],
		Skills:   values["skills"],
	})
	if err != nil {
		h.fail(w, r, err, func(form *pages.Form) pages.Spec {
			form.Name = "profile"
			return pages.CandidateDashboard(s.Subject(), "", form)
		}, values)
		return
	}

	h.cache.Invalidate(query.CandidateGetByUser, query.StatsOverview)
	http.Redirect(w, r, "/candidate?saved=profile", http.StatusSeeOther)
}

// parseForm читает перечисленные поля формы с обрезкой пробелов.
func (h *FormHandler) parseForm(w http.ResponseWriter, r *http.Request, fields ...string) (map[string]string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.logger.Debug("Некорректная форма", slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return nil, false
	}

	values := make(map[string]string, len(fields))
	for _, f := range fields {
		values[f] = strings.TrimSpace(r.PostForm.Get(f))
	}
	return values, true
}

// fail отображает ошибку сервиса: валидация - форма с сообщением (422),
// чужой ресурс: 403, отсутствующий - 404, остальное - 500.
func (h *FormHandler) fail(
	w http.ResponseWriter,
	r *http.Request,
	err error,
	rerender func(form *pages.Form) pages.Spec,
	values map[string]string,
) {
	switch {
	case errors.Is(err, service.ErrValidation) && rerender != nil:
		form := &pages.Form{Values: values}
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			form.Field, form.Detail = ve.Field, ve.Message
		}
		h.pages.renderer.Render(w, r, rerender(form))
	case errors.Is(err, service.ErrForbidden):
		h.pages.Forbidden(w, r)
	case errors.Is(err, service.ErrNotFound):
		h.pages.NotFound(w, r)
	default:
		h.logger.Error("Ошибка обработки формы",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
