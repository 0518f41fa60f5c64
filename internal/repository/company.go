package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/jobboard/internal/domain/model"
)

// CompanyRepository: доступ к таблице companies.
type CompanyRepository interface {
	// Upsert создаёт или обновляет профиль компании владельца.
	// ID сохраняется при обновлении, поле ID входной модели игнорируется при конфликте.
	Upsert(ctx context.Context, c *model.Company) error
	// GetByOwner возвращает компанию по sub владельца.
	GetByOwner(ctx context.Context, ownerID string) (*model.Company, error)
	// GetByID возвращает компанию по UUID.
	GetByID(ctx context.Context, id string) (*model.Company, error)
	// Count возвращает количество компаний.
	Count(ctx context.Context) (int, error)
}

type companyRepo struct {
	db DBTX
}

// NewCompanyRepository создаёт репозиторий компаний.
func NewCompanyRepository(db DBTX) CompanyRepository {
	return &companyRepo{db: db}
}

const companyColumns = `id, owner_id, name, website, contact_email, description, created_at, updated_at`

func scanCompany(row pgx.Row) (*model.Company, error) {
	c := &model.Company{}
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.Website, &c.ContactEmail,
		&c.Description, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *companyRepo) Upsert(ctx context.Context, c *model.Company) error {
	query := `
		INSERT INTO companies (id, owner_id, name, website, contact_email, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id) DO UPDATE SET
			name = EXCLUDED.name,
			website = EXCLUDED.website,
			contact_email = EXCLUDED.contact_email,
			description = EXCLUDED.description
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		c.ID, c.OwnerID, c.Name, c.Website, c.ContactEmail, c.Description,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return wrapErr("ошибка upsert компании", err)
}

func (r *companyRepo) GetByOwner(ctx context.Context, ownerID string) (*model.Company, error) {
	query := fmt.Sprintf(`SELECT %s FROM companies WHERE owner_id = $1`, companyColumns)

	c, err := scanCompany(r.db.QueryRow(ctx, query, ownerID))
	if err != nil {
		return nil, wrapErr("ошибка получения компании по владельцу", err)
	}
	return c, nil
}

func (r *companyRepo) GetByID(ctx context.Context, id string) (*model.Company, error) {
	query := fmt.Sprintf(`SELECT %s FROM companies WHERE id = $1`, companyColumns)

	c, err := scanCompany(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr("ошибка получения компании", err)
	}
	return c, nil
}

func (r *companyRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM companies`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта компаний: %w", err)
	}
	return count, nil
}
