// overview.go: сводная статистика площадки для администратора.
package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/jobboard/internal/domain/model"
	"github.com/bigkaa/jobboard/internal/repository"
)

// StatsService: сервис сводной статистики.
type StatsService struct {
	companies  repository.CompanyRepository
	candidates repository.CandidateRepository
	jobs       repository.JobRepository
}

// NewStatsService создаёт сервис статистики.
func NewStatsService(
	companies repository.CompanyRepository,
	candidates repository.CandidateRepository,
	jobs repository.JobRepository,
) *StatsService {
	return &StatsService{companies: companies, candidates: candidates, jobs: jobs}
}

// Overview собирает счётчики параллельно.
func (s *StatsService) Overview(ctx context.Context) (*model.Overview, error) {
	var o model.Overview
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		o.Companies, err = s.companies.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		o.Candidates, err = s.candidates.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		o.Jobs, err = s.jobs.CountByStatus(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		o.OpenJobs, err = s.jobs.CountByStatus(gctx, model.JobStatusOpen)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ошибка сбора статистики: %w", err)
	}
	return &o, nil
}
