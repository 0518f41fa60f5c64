// companies.go: профиль компании-работодателя.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/jobboard/internal/domain/model"
	"github.com/bigkaa/jobboard/internal/repository"
)

// CompanyInput: данные формы профиля компании.
type CompanyInput struct {
	Name         string
	Website      string
	ContactEmail string
	Description  string
}

// CompanyService: сервис профилей компаний.
type CompanyService struct {
	repo   repository.CompanyRepository
	logger *slog.Logger
}

// NewCompanyService создаёт сервис компаний.
func NewCompanyService(repo repository.CompanyRepository, logger *slog.Logger) *CompanyService {
	return &CompanyService{
		repo:   repo,
		logger: logger.With(slog.String("service", "companies")),
	}
}

// GetByOwner возвращает компанию пользователя.
// Возвращает ErrNotFound, если профиль ещё не создан.
func (s *CompanyService) GetByOwner(ctx context.Context, ownerID string) (*model.Company, error) {
	c, err := s.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения компании: %w", err)
	}
	return c, nil
}

// SaveProfile создаёт или обновляет профиль компании владельца.
func (s *CompanyService) SaveProfile(ctx context.Context, ownerID string, in CompanyInput) (*model.Company, error) {
	if ownerID == "" {
		return nil, invalid("", "не указан владелец")
	}

	c := &model.Company{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		Name:         strings.TrimSpace(in.Name),
		Website:      strings.TrimSpace(in.Website),
		ContactEmail: strings.TrimSpace(in.ContactEmail),
		Description:  strings.TrimSpace(in.Description),
	}
	if err := validateCompany(c); err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, c); err != nil {
		return nil, writeErr("ошибка сохранения компании", err)
	}

	s.logger.Info("Профиль компании сохранён",
		slog.String("company_id", c.ID),
		slog.String("owner_id", ownerID),
	)
	return c, nil
}

func validateCompany(c *model.Company) error {
	if c.Name == "" {
		return invalid("name", "название компании обязательно")
	}
	if len(c.Name) > 200 {
		return invalid("name", "название компании длиннее 200 символов")
	}
	if c.Website != "" {
		u, err := url.Parse(c.Website)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("website", "некорректный адрес сайта %q", c.Website)
		}
	}
	if c.ContactEmail != "" {
		// Только голый адрес, без отображаемого имени.
		addr, err := mail.ParseAddress(c.ContactEmail)
		if err != nil || addr.Address != c.ContactEmail {
			return invalid("contactEmail", "некорректный email %q", c.ContactEmail)
		}
	}
	return nil
}
