package query

import (
	"context"
	"errors"
	"strconv"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/bigkaa/jobboard/internal/domain/model"
	"github.com/bigkaa/jobboard/internal/domain/role"
	"github.com/bigkaa/jobboard/internal/service"
)

// Имена запросов.
const (
	JobList            = "job.list"
	JobGet             = "job.getJob"
	JobListByOwner     = "job.listByOwner"
	CompanyGetByOwner  = "company.getByOwner"
	CandidateGetByUser = "candidate.getByUser"
	StatsOverview      = "stats.overview"
)

// JobReader: чтение вакансий.
type JobReader interface {
	List(ctx context.Context, search string, page int) (*service.JobPage, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Job, error)
}

// CompanyReader: чтение профилей компаний.
type CompanyReader interface {
	GetByOwner(ctx context.Context, ownerID string) (*model.Company, error)
}

// CandidateReader: чтение профилей соискателей.
type CandidateReader interface {
	GetByUser(ctx context.Context, userID string) (*model.Candidate, error)
}

// StatsReader: сводная статистика.
type StatsReader interface {
	Overview(ctx context.Context) (*model.Overview, error)
}

// Sources: источники данных каталога запросов.
type Sources struct {
	Jobs       JobReader
	Companies  CompanyReader
	Candidates CandidateReader
	Stats      StatsReader
}

// CompanyView: представление компании в ответах RPC.
type CompanyView struct {
	ID           string               `json:"id"`
	OwnerID      string               `json:"ownerId"`
	Name         string               `json:"name"`
	Website      string               `json:"website,omitempty"`
	ContactEmail *openapi_types.Email `json:"contactEmail,omitempty"`
	Description  string               `json:"description,omitempty"`
}

// NewCompanyView строит представление из доменной модели.
func NewCompanyView(c *model.Company) *CompanyView {
	v := &CompanyView{
		ID:          c.ID,
		OwnerID:     c.OwnerID,
		Name:        c.Name,
		Website:     c.Website,
		Description: c.Description,
	}
	if c.ContactEmail != "" {
		email := openapi_types.Email(c.ContactEmail)
		v.ContactEmail = &email
	}
	return v
}

// Catalog возвращает определения всех запросов jobboard.
func Catalog(src Sources) []Definition {
	return []Definition{
		{
			Name: JobList,
			Run: func(ctx context.Context, p Params) (any, error) {
				page := 1
				if raw := p["page"]; raw != "" {
					page, _ = strconv.Atoi(raw)
				}
				return src.Jobs.List(ctx, p["q"], page)
			},
		},
		{
			Name: JobGet,
			Run: func(ctx context.Context, p Params) (any, error) {
				job, err := src.Jobs.Get(ctx, p["jobId"])
				if err != nil {
					return nil, mapNotFound(err)
				}
				return job, nil
			},
		},
		{
			Name:       JobListByOwner,
			Roles:      []role.Role{role.Company, role.Admin},
			OwnerParam: "ownerId",
			Run: func(ctx context.Context, p Params) (any, error) {
				return src.Jobs.ListByOwner(ctx, p["ownerId"])
			},
		},
		{
			Name:       CompanyGetByOwner,
			Roles:      []role.Role{role.Company, role.Admin},
			OwnerParam: "ownerId",
			Run: func(ctx context.Context, p Params) (any, error) {
				c, err := src.Companies.GetByOwner(ctx, p["ownerId"])
				if errors.Is(err, service.ErrNotFound) {
					// Профиль ещё не создан - это валидный результат.
					return (*CompanyView)(nil), nil
				}
				if err != nil {
					return nil, err
				}
				return NewCompanyView(c), nil
			},
		},
		{
			Name:       CandidateGetByUser,
			Roles:      []role.Role{role.Candidate, role.Admin},
			OwnerParam: "userId",
			Run: func(ctx context.Context, p Params) (any, error) {
				c, err := src.Candidates.GetByUser(ctx, p["userId"])
				if errors.Is(err, service.ErrNotFound) {
					return (*model.Candidate)(nil), nil
				}
				if err != nil {
					return nil, err
				}
				return c, nil
			},
		},
		{
			Name:  StatsOverview,
			Roles: []role.Role{role.Admin},
			Run: func(ctx context.Context, _ Params) (any, error) {
				return src.Stats.Overview(ctx)
			},
		},
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, service.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
