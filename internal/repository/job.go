package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/jobboard/internal/domain/model"
)

// JobListFilters: фильтры для списка вакансий.
type JobListFilters struct {
	// Status: фильтр по статусу (nil - любые)
	Status *string
	// CompanyID: только вакансии компании (nil - все)
	CompanyID *string
	// Search: подстрока в названии или описании (без учёта регистра)
	Search string
}

// JobRepository: доступ к таблице jobs.
type JobRepository interface {
	// Create создаёт вакансию. CompanyID должен существовать.
	Create(ctx context.Context, j *model.Job) error
	// GetByID возвращает вакансию с именем компании.
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// List возвращает страницу вакансий и общее количество по фильтрам.
	List(ctx context.Context, filters JobListFilters, limit, offset int) ([]*model.Job, int, error)
	// SetStatus меняет статус вакансии.
	SetStatus(ctx context.Context, id, status string) error
	// CountByStatus возвращает количество вакансий (status пустой - все).
	CountByStatus(ctx context.Context, status string) (int, error)
}

type jobRepo struct {
	db DBTX
}

// NewJobRepository создаёт репозиторий вакансий.
func NewJobRepository(db DBTX) JobRepository {
	return &jobRepo{db: db}
}

const jobSelect = `
	SELECT j.id, j.company_id, c.name, j.title, j.location, j.description,
	       j.salary_range, j.status, j.created_at, j.updated_at
	FROM jobs j
	JOIN companies c ON c.id = j.company_id`

func scanJob(row pgx.Row) (*model.Job, error) {
	j := &model.Job{}
	err := row.Scan(
		&j.ID, &j.CompanyID, &j.CompanyName, &j.Title, &j.Location, &j.Description,
		&j.SalaryRange, &j.Status, &j.CreatedAt, &j.UpdatedAt,
	)
	return j, err
}

func (r *jobRepo) Create(ctx context.Context, j *model.Job) error {
	query := `
		INSERT INTO jobs (id, company_id, title, location, description, salary_range, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		j.ID, j.CompanyID, j.Title, j.Location, j.Description, j.SalaryRange, j.Status,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
	return wrapErr("ошибка создания вакансии", err)
}

func (r *jobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx, jobSelect+` WHERE j.id = $1`, id))
	if err != nil {
		return nil, wrapErr("ошибка получения вакансии", err)
	}
	return j, nil
}

func (r *jobRepo) List(ctx context.Context, filters JobListFilters, limit, offset int) ([]*model.Job, int, error) {
	where, args := buildJobWhere(filters)

	var total int
	countQuery := `SELECT COUNT(*) FROM jobs j` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта вакансий: %w", err)
	}

	query := jobSelect + where + ` ORDER BY j.created_at DESC`
	if limit > 0 {
		args = append(args, limit, offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка вакансий: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования вакансии: %w", err)
		}
		result = append(result, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения списка вакансий: %w", err)
	}
	return result, total, nil
}

func (r *jobRepo) SetStatus(ctx context.Context, id, status string) error {
	tag, err := r.db.Exec(ctx, `UPDATE jobs SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return wrapErr("ошибка обновления статуса вакансии", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *jobRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	var filters JobListFilters
	if status != "" {
		filters.Status = &status
	}
	where, args := buildJobWhere(filters)

	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM jobs j`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта вакансий: %w", err)
	}
	return count, nil
}

// buildJobWhere собирает WHERE-часть и позиционные аргументы.
func buildJobWhere(f JobListFilters) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, fmt.Sprintf("j.status = $%d", len(args)))
	}
	if f.CompanyID != nil {
		args = append(args, *f.CompanyID)
		conds = append(conds, fmt.Sprintf("j.company_id = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		conds = append(conds, fmt.Sprintf("(j.title ILIKE $%d OR j.description ILIKE $%d)", len(args), len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// escapeLike экранирует спецсимволы LIKE-шаблона.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
