package pages

import (
	"errors"
	"net/http"

	"github.com/a-h/templ"

	"github.com/bigkaa/jobboard/internal/domain/model"
	"github.com/bigkaa/jobboard/internal/domain/role"
	"github.com/bigkaa/jobboard/internal/query"
	"github.com/bigkaa/jobboard/internal/ui/prefetch"
)

const (
	// homeLatest: сколько свежих вакансий показывать на главной.
	homeLatest = 5
	// MaxPage: наибольший номер страницы job.list, допустимый контрактом RPC.
	MaxPage = 999999
)

// Home: главная страница: приветствие и свежие вакансии.
func Home() Spec {
	return Spec{
		Name:     "home",
		TitleKey: "home.title",
		Prefetch: []Request{{Name: query.JobList}},
		View:     homeView(),
	}
}

// callToAction: ссылка и подпись главной кнопки для роли.
func callToAction(r role.Role) (templ.SafeURL, string) {
	switch r {
	case role.Company:
		return "/company", "home.cta_company"
	case role.Candidate:
		return "/candidate", "home.cta_candidate"
	case role.Admin:
		return "/admin", "home.cta_admin"
	default:
		return "/auth/login", "home.cta_login"
	}
}

func latest(jobs []*model.Job) []*model.Job {
	if len(jobs) > homeLatest {
		return jobs[:homeLatest]
	}
	return jobs
}

// Jobs: публичный список вакансий с поиском и пагинацией.
// page приводится к диапазону 1..MaxPage.
func Jobs(search string, page int) Spec {
	page = max(1, min(page, MaxPage))
	params := JobListParams(search, page)
	return Spec{
		Name:     "jobs",
		TitleKey: "jobs.title",
		Prefetch: []Request{{Name: query.JobList, Params: params}},
		View:     jobsView(search, params),
	}
}

// pageURL: ссылка на страницу p списка с тем же поиском.
func pageURL(search string, p int) templ.SafeURL {
	href := "/jobs"
	if encoded := JobListParams(search, p).Encode(); encoded != "" {
		href += "?" + encoded
	}
	return templ.URL(href)
}

// Job: карточка вакансии. Отсутствующая вакансия - 404.
func Job(jobID string) Spec {
	params := query.Params{"jobId": jobID}
	return Spec{
		Name:     "job",
		TitleKey: "job.title",
		Prefetch: []Request{{Name: query.JobGet, Params: params}},
		StatusFor: func(res prefetch.Result) int {
			if errors.Is(res.Err(query.JobGet, params), query.ErrNotFound) {
				return http.StatusNotFound
			}
			return 0
		},
		View: jobView(params),
	}
}

type jobField struct {
	key   string
	value string
}

// jobFields: заполненные поля карточки вакансии.
func jobFields(j *model.Job) []jobField {
	var fields []jobField
	for _, f := range []jobField{
		{"job.company", j.CompanyName},
		{"job.location", j.Location},
		{"job.salary", j.SalaryRange},
		{"job.posted", j.CreatedAt.Format("2006-01-02")},
	} {
		if f.value != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
