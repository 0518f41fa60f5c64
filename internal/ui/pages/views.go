package pages

import (
	"context"
	"strconv"

	"github.com/a-h/templ"

	"github.com/bigkaa/jobboard/internal/domain/model"
	"github.com/bigkaa/jobboard/internal/query"
	"github.com/bigkaa/jobboard/internal/ui/i18n"
)

// Form: состояние формы после неуспешной отправки.
type Form struct {
	// Name: какая форма отправлялась ("profile", "job").
	Name   string
	Values map[string]string
	// Field: поле с ошибкой (подсвечивается через aria-invalid).
	Field string
	// Detail: текст ошибки валидации.
	Detail string
}

// value возвращает отправленное значение поля формы name или fallback.
func (f *Form) value(name, field, fallback string) string {
	if f == nil || f.Name != name {
		return fallback
	}
	return f.Values[field]
}

// invalid сообщает, что поле field формы name не прошло проверку.
func (f *Form) invalid(name, field string) bool {
	return f != nil && f.Name == name && f.Field == field
}

func (f *Form) errorText(ctx context.Context) string {
	if f.Detail == "" {
		return i18n.T(ctx, "form.invalid")
	}
	return i18n.T(ctx, "form.invalid") + ": " + f.Detail
}

func fieldFlags(required, invalid bool) templ.OrderedAttributes {
	return templ.OrderedAttributes{
		{Key: "required", Value: required},
		{Key: "aria-invalid", Value: templ.KV("true", invalid)},
	}
}

// fallbackText: атрибут заглушки и ключ i18n его значения.
type fallbackText struct {
	attr string
	key  string
}

// fallbackTexts: подписи, которые hydrate.js берёт из заглушки
// при клиентском рендеринге, по значению data-render.
var fallbackTexts = map[string][]fallbackText{
	"jobs": {
		{"data-empty-text", "jobs.empty"},
		{"data-closed-text", "job.closed"},
	},
	"ownerJobs": {
		{"data-empty-text", "company.no_jobs"},
		{"data-closed-text", "job.closed"},
	},
	"job": {
		{"data-label-company", "job.company"},
		{"data-label-location", "job.location"},
		{"data-label-salary", "job.salary"},
		{"data-closed-text", "job.closed"},
	},
	"company": {
		{"data-empty-text", "company.no_profile"},
		{"data-label-name", "company.name"},
		{"data-label-website", "company.website"},
		{"data-label-email", "company.email"},
	},
	"candidate": {
		{"data-empty-text", "candidate.no_profile"},
	},
	"overview": {
		{"data-label-companies", "admin.companies"},
		{"data-label-candidates", "admin.candidates"},
		{"data-label-jobs", "admin.jobs"},
		{"data-label-open-jobs", "admin.open_jobs"},
	},
}

// fallbackAttrs переводит подписи заглушки render на язык запроса.
func fallbackAttrs(ctx context.Context, render string) templ.OrderedAttributes {
	texts := fallbackTexts[render]
	attrs := make(templ.OrderedAttributes, 0, len(texts))
	for _, t := range texts {
		attrs = append(attrs, templ.KeyValue[string, any]{Key: t.attr, Value: i18n.T(ctx, t.key)})
	}
	return attrs
}

// jobMeta: строка "компания · город · зарплата" без пустых частей.
func jobMeta(j *model.Job) string {
	meta := j.CompanyName
	if j.Location != "" {
		meta += " · " + j.Location
	}
	if j.SalaryRange != "" {
		meta += " · " + j.SalaryRange
	}
	return meta
}

func jobURL(j *model.Job) templ.SafeURL {
	return templ.URL("/jobs/" + j.ID)
}

// JobListParams: канонические параметры job.list: пустой поиск
// и первая страница не передаются.
func JobListParams(search string, page int) query.Params {
	params := query.Params{}
	if search != "" {
		params["q"] = search
	}
	if page > 1 {
		params["page"] = strconv.Itoa(page)
	}
	if len(params) == 0 {
		return nil
	}
	return params
}
