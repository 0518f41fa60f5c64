package pages

import (
	"github.com/bigkaa/jobboard/internal/domain/model"
	"github.com/bigkaa/jobboard/internal/query"
)

// AdminDashboard: сводная статистика площадки.
func AdminDashboard() Spec {
	return Spec{
		Name:     "admin",
		TitleKey: "admin.title",
		Prefetch: []Request{{Name: query.StatsOverview}},
		View:     adminView(),
	}
}

type stat struct {
	key   string
	value int
}

func overviewStats(o *model.Overview) []stat {
	return []stat{
		{"admin.companies", o.Companies},
		{"admin.candidates", o.Candidates},
		{"admin.jobs", o.Jobs},
		{"admin.open_jobs", o.OpenJobs},
	}
}
