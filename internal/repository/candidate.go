package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/jobboard/internal/domain/model"
)

// CandidateRepository: доступ к таблице candidates.
type CandidateRepository interface {
	// Upsert создаёт или обновляет профиль соискателя по user_id.
	Upsert(ctx context.Context, c *model.Candidate) error
	// GetByUser возвращает профиль по sub пользователя.
	GetByUser(ctx context.Context, userID string) (*model.Candidate, error)
	Count(ctx context.Context) (int, error)
}

type candidateRepo struct {
	db DBTX
}

// NewCandidateRepository создаёт репозиторий соискателей.
func NewCandidateRepository(db DBTX) CandidateRepository {
	return &candidateRepo{db: db}
}

func (r *candidateRepo) Upsert(ctx context.Context, c *model.Candidate) error {
	query := `
		INSERT INTO candidates (id, user_id, full_name, headline, location, skills)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			headline = EXCLUDED.headline,
			location = EXCLUDED.location,
			skills = EXCLUDED.skills
		RETURNING id, created_at, updated_at`

	skills := c.Skills
	if skills == nil {
		skills = []string{}
	}

	err := r.db.QueryRow(ctx, query,
		c.ID, c.UserID, c.FullName, c.Headline, c.Location, skills,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return wrapErr("ошибка upsert профиля соискателя", err)
	}
	c.Skills = skills
	return nil
}

func (r *candidateRepo) GetByUser(ctx context.Context, userID string) (*model.Candidate, error) {
	query := `
		SELECT id, user_id, full_name, headline, location, skills, created_at, updated_at
		FROM candidates WHERE user_id = $1`

	c := &model.Candidate{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&c.ID, &c.UserID, &c.FullName, &c.Headline, &c.Location,
		&c.Skills, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, wrapErr("ошибка получения профиля соискателя", err)
	}
	return c, nil
}

func (r *candidateRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM candidates`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта соискателей: %w", err)
	}
	return count, nil
}
