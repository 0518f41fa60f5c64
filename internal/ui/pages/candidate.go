package pages

import (
	"net/http"
	"strings"

	"github.com/bigkaa/jobboard/internal/domain/model"
	"github.com/bigkaa/jobboard/internal/query"
)

// CandidateDashboard: кабинет соискателя: профиль.
func CandidateDashboard(userID, noticeKey string, form *Form) Spec {
	user := query.Params{"userId": userID}
	spec := Spec{
		Name:     "candidate",
		TitleKey: "candidate.title",
		Prefetch: []Request{{Name: query.CandidateGetByUser, Params: user}},
		View:     candidateView(user, noticeKey, form),
	}
	if form != nil {
		spec.Status = http.StatusUnprocessableEntity
	}
	return spec
}

// candidateFields: сохранённые значения полей профиля; навыки через запятую.
func candidateFields(c *model.Candidate) (fullName, headline, location, skills string) {
	if c == nil {
		return "", "", "", ""
	}
	return c.FullName, c.Headline, c.Location, strings.Join(c.Skills, ", ")
}
