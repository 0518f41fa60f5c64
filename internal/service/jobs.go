// jobs.go: вакансии: публичный список, карточка, управление компанией.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/jobboard/internal/domain/model"
	"github.com/bigkaa/jobboard/internal/repository"
)

// JobsPageSize: размер страницы публичного списка вакансий.
const JobsPageSize = 20

// JobPage: страница списка вакансий.
type JobPage struct {
	Jobs     []*model.Job `json:"jobs"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
	Pages    int          `json:"pages"`
}

// JobInput: данные формы создания вакансии.
type JobInput struct {
	Title       string
	Location    string
	Description string
	SalaryRange string
}

// JobService: сервис вакансий.
type JobService struct {
	jobs      repository.JobRepository
	companies repository.CompanyRepository
	logger    *slog.Logger
}

// NewJobService создаёт сервис вакансий.
func NewJobService(
	jobs repository.JobRepository,
	companies repository.CompanyRepository,
	logger *slog.Logger,
) *JobService {
	return &JobService{
		jobs:      jobs,
		companies: companies,
		logger:    logger.With(slog.String("service", "jobs")),
	}
}

// List возвращает страницу открытых вакансий. page начинается с 1,
// значения меньше 1 приводятся к 1.
func (s *JobService) List(ctx context.Context, search string, page int) (*JobPage, error) {
	if page < 1 {
		page = 1
	}
	status := model.JobStatusOpen
	filters := repository.JobListFilters{Status: &status, Search: search}

	jobs, total, err := s.jobs.List(ctx, filters, JobsPageSize, (page-1)*JobsPageSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка вакансий: %w", err)
	}

	return &JobPage{
		Jobs:     jobs,
		Total:    total,
		Page:     page,
		PageSize: JobsPageSize,
		Pages:    (total + JobsPageSize - 1) / JobsPageSize,
	}, nil
}

// Get возвращает вакансию по ID. Некорректный UUID - ErrNotFound.
func (s *JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	j, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения вакансии: %w", err)
	}
	return j, nil
}

// ListByOwner возвращает все вакансии компании пользователя (открытые и закрытые).
// Если компании нет: пустой список.
func (s *JobService) ListByOwner(ctx context.Context, ownerID string) ([]*model.Job, error) {
	company, err := s.companies.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []*model.Job{}, nil
		}
		return nil, fmt.Errorf("ошибка получения компании: %w", err)
	}

	jobs, _, err := s.jobs.List(ctx, repository.JobListFilters{CompanyID: &company.ID}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения вакансий компании: %w", err)
	}
	return jobs, nil
}

// Create публикует вакансию от имени компании пользователя.
// Без профиля компании: ErrValidation.
func (s *JobService) Create(ctx context.Context, ownerID string, in JobInput) (*model.Job, error) {
	company, err := s.companies.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid("", "сначала заполните профиль компании")
		}
		return nil, fmt.Errorf("ошибка получения компании: %w", err)
	}

	j := &model.Job{
		ID:          uuid.New().String(),
		CompanyID:   company.ID,
		CompanyName: company.Name,
		Title:       strings.TrimSpace(in.Title),
		Location:    strings.TrimSpace(in.Location),
		Description: strings.TrimSpace(in.Description),
		SalaryRange: strings.TrimSpace(in.SalaryRange),
		Status:      model.JobStatusOpen,
	}
	if j.Title == "" {
		return nil, invalid("title", "название вакансии обязательно")
	}
	if j.Description == "" {
		return nil, invalid("description", "описание вакансии обязательно")
	}

	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, writeErr("ошибка создания вакансии", err)
	}

	s.logger.Info("Вакансия опубликована",
		slog.String("job_id", j.ID),
		slog.String("company_id", company.ID),
	)
	return j, nil
}

// Close закрывает вакансию. Закрыть можно только вакансию своей компании.
func (s *JobService) Close(ctx context.Context, ownerID, jobID string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	company, err := s.companies.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrForbidden
		}
		return fmt.Errorf("ошибка получения компании: %w", err)
	}
	if job.CompanyID != company.ID {
		return ErrForbidden
	}
	if !job.IsOpen() {
		return nil
	}

	if err := s.jobs.SetStatus(ctx, jobID, model.JobStatusClosed); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка закрытия вакансии: %w", err)
	}

	s.logger.Info("Вакансия закрыта", slog.String("job_id", jobID))
	return nil
}
