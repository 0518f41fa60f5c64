// candidates.go: профиль соискателя.
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

// maxSkills: ограничение количества навыков в профиле.
const maxSkills = 30

// CandidateInput: данные формы профиля соискателя.
// Skills: строка через запятую, как приходит из формы.
type CandidateInput struct {
	FullName string
	Headline string
	Location string
	Skills   string
}

// CandidateService: сервис профилей соискателей.
type CandidateService struct {
	repo   repository.CandidateRepository
	logger *slog.Logger
}

// NewCandidateService создаёт сервис соискателей.
func NewCandidateService(repo repository.CandidateRepository, logger *slog.Logger) *CandidateService {
	return &CandidateService{
		repo:   repo,
		logger: logger.With(slog.String("service", "candidates")),
	}
}

// GetByUser возвращает профиль соискателя.
func (s *CandidateService) GetByUser(ctx context.Context, userID string) (*model.Candidate, error) {
	c, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения профиля соискателя: %w", err)
	}
	return c, nil
}

// SaveProfile создаёт или обновляет профиль соискателя.
func (s *CandidateService) SaveProfile(ctx context.Context, userID string, in CandidateInput) (*model.Candidate, error) {
	if userID == "" {
		return nil, invalid("", "не указан пользователь")
	}

	c := &model.Candidate{
		ID:       uuid.New().String(),
		UserID:   userID,
		FullName: strings.TrimSpace(in.FullName),
		Headline: strings.TrimSpace(in.Headline),
		Location: strings.TrimSpace(in.Location),
		Skills:   splitSkills(in.Skills),
	}
	if c.FullName == "" {
		return nil, invalid("fullName", "имя обязательно")
	}
	if len(c.Skills) > maxSkills {
		return nil, invalid("skills", "не более %d навыков", maxSkills)
	}

	if err := s.repo.Upsert(ctx, c); err != nil {
		return nil, writeErr("ошибка сохранения профиля соискателя", err)
	}

	s.logger.Info("Профиль соискателя сохранён", slog.String("user_id", userID))
	return c, nil
}

// splitSkills разбирает список навыков: trim, нижний регистр, без дублей.
func splitSkills(raw string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		skill := strings.ToLower(strings.TrimSpace(part))
		if skill == "" || seen[skill] {
			continue
		}
		seen[skill] = true
		result = append(result, skill)
	}
	return result
}
