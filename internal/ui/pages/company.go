package pages

import (
	"net/http"

	"github.com/a-h/templ"

	"github.com/bigkaa/jobboard/internal/domain/model"
	"github.com/bigkaa/jobboard/internal/query"
)

// CompanyDashboard: кабинет компании: профиль, создание и закрытие вакансий.
// noticeKey: сообщение об успешном действии, form - форма с ошибкой.
func CompanyDashboard(ownerID, noticeKey string, form *Form) Spec {
	owner := query.Params{"ownerId": ownerID}
	spec := Spec{
		Name:     "company",
		TitleKey: "company.title",
		Prefetch: []Request{
			{Name: query.CompanyGetByOwner, Params: owner},
			{Name: query.JobListByOwner, Params: owner},
		},
		View: companyView(owner, noticeKey, form),
	}
	if form != nil {
		spec.Status = http.StatusUnprocessableEntity
	}
	return spec
}

// companyFields: сохранённые значения полей профиля компании.
func companyFields(c *query.CompanyView) (name, website, email, description string) {
	if c == nil {
		return "", "", "", ""
	}
	if c.ContactEmail != nil {
		email = string(*c.ContactEmail)
	}
	return c.Name, c.Website, email, c.Description
}

func closeJobURL(j *model.Job) templ.SafeURL {
	return templ.URL("/company/jobs/" + j.ID + "/close")
}
