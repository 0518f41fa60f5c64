package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/bigkaa/jobboard/internal/database/dbtest"
	"github.com/bigkaa/jobboard/internal/domain/model"
)

// --- Тесты CompanyRepository ---

func TestCompanyUpsert(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewCompanyRepository(pool)

	c := &model.Company{
		ID:      uuid.New().String(),
		OwnerID: "user-company-1",
		Name:    "Acme",
		Website: "https://acme.example.com",
	}
	if err := repo.Upsert(ctx, c); err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}
	firstID := c.ID

	// Повторный upsert того же владельца сохраняет ID
	c2 := &model.Company{ID: uuid.New().String(), OwnerID: "user-company-1", Name: "Acme Corp"}
	if err := repo.Upsert(ctx, c2); err != nil {
		t.Fatalf("повторный Upsert() ошибка: %v", err)
	}
	if c2.ID != firstID {
		t.Errorf("ID после upsert = %q, хотели %q", c2.ID, firstID)
	}

	got, err := repo.GetByOwner(ctx, "user-company-1")
	if err != nil {
		t.Fatalf("GetByOwner() ошибка: %v", err)
	}
	if got.Name != "Acme Corp" {
		t.Errorf("Name = %q, хотели Acme Corp", got.Name)
	}

	if _, err := repo.GetByOwner(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByOwner(nobody) = %v, хотели ErrNotFound", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() ошибка: %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, хотели 1", count)
	}
}

// --- Тесты CandidateRepository ---

func TestCandidateUpsert(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	repo := NewCandidateRepository(pool)

	c := &model.Candidate{
		ID:       uuid.New().String(),
		UserID:   "user-candidate-1",
		FullName: "Ivan Petrov",
		Skills:   []string{"go", "postgres"},
	}
	if err := repo.Upsert(ctx, c); err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}

	got, err := repo.GetByUser(ctx, "user-candidate-1")
	if err != nil {
		t.Fatalf("GetByUser() ошибка: %v", err)
	}
	if len(got.Skills) != 2 || got.Skills[0] != "go" {
		t.Errorf("Skills = %v, хотели [go postgres]", got.Skills)
	}

	// nil skills сохраняется как пустой массив
	c.Skills = nil
	if err := repo.Upsert(ctx, c); err != nil {
		t.Fatalf("Upsert() без навыков ошибка: %v", err)
	}
	got, _ = repo.GetByUser(ctx, "user-candidate-1")
	if got.Skills == nil || len(got.Skills) != 0 {
		t.Errorf("Skills = %#v, хотели пустой срез", got.Skills)
	}
}

// --- Тесты JobRepository ---

func TestJobLifecycle(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	companies := NewCompanyRepository(pool)
	jobs := NewJobRepository(pool)

	company := &model.Company{ID: uuid.New().String(), OwnerID: "owner-1", Name: "Acme"}
	if err := companies.Upsert(ctx, company); err != nil {
		t.Fatalf("Upsert компании: %v", err)
	}

	titles := []string{"Go developer", "SRE", "Frontend_dev"}
	ids := make([]string, 0, len(titles))
	for _, title := range titles {
		j := &model.Job{
			ID:          uuid.New().String(),
			CompanyID:   company.ID,
			Title:       title,
			Description: "описание " + title,
			Status:      model.JobStatusOpen,
		}
		if err := jobs.Create(ctx, j); err != nil {
			t.Fatalf("Create(%s) ошибка: %v", title, err)
		}
		ids = append(ids, j.ID)
	}

	got, err := jobs.GetByID(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.CompanyName != "Acme" {
		t.Errorf("CompanyName = %q, хотели Acme", got.CompanyName)
	}

	// Поиск: "_" не должен работать как wildcard
	list, total, err := jobs.List(ctx, JobListFilters{Search: "d_v"}, 10, 0)
	if err != nil {
		t.Fatalf("List(search) ошибка: %v", err)
	}
	if total != 0 || len(list) != 0 {
		t.Errorf("List(d_v) = %d/%d, хотели 0", len(list), total)
	}

	list, total, err = jobs.List(ctx, JobListFilters{Search: "go"}, 10, 0)
	if err != nil {
		t.Fatalf("List(go) ошибка: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].Title != "Go developer" {
		t.Errorf("List(go) = %d записей (total %d)", len(list), total)
	}

	// Пагинация
	list, total, err = jobs.List(ctx, JobListFilters{CompanyID: &company.ID}, 2, 0)
	if err != nil {
		t.Fatalf("List(page) ошибка: %v", err)
	}
	if total != 3 || len(list) != 2 {
		t.Errorf("List(limit 2) = %d записей (total %d), хотели 2/3", len(list), total)
	}

	// Закрытие вакансии
	if err := jobs.SetStatus(ctx, ids[1], model.JobStatusClosed); err != nil {
		t.Fatalf("SetStatus() ошибка: %v", err)
	}
	open, err := jobs.CountByStatus(ctx, model.JobStatusOpen)
	if err != nil {
		t.Fatalf("CountByStatus(open) ошибка: %v", err)
	}
	if open != 2 {
		t.Errorf("CountByStatus(open) = %d, хотели 2", open)
	}
	all, _ := jobs.CountByStatus(ctx, "")
	if all != 3 {
		t.Errorf("CountByStatus(\"\") = %d, хотели 3", all)
	}

	if err := jobs.SetStatus(ctx, uuid.New().String(), model.JobStatusClosed); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus(несуществующая) = %v, хотели ErrNotFound", err)
	}
	if _, err := jobs.GetByID(ctx, uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(несуществующая) = %v, хотели ErrNotFound", err)
	}
}

func TestJobCreate_UnknownCompany(t *testing.T) {
	pool := dbtest.Pool(t)
	jobs := NewJobRepository(pool)

	j := &model.Job{
		ID:        uuid.New().String(),
		CompanyID: uuid.New().String(),
		Title:     "Orphan",
		Status:    model.JobStatusOpen,
	}
	if err := jobs.Create(context.Background(), j); !errors.Is(err, ErrNotFound) {
		t.Errorf("Create() без компании = %v, хотели ErrNotFound", err)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_a\b`); got != `50\%\_a\\b` {
		t.Errorf("escapeLike = %q", got)
	}
}

func TestBuildJobWhere(t *testing.T) {
	status := "open"
	where, args := buildJobWhere(JobListFilters{Status: &status, Search: " go "})
	if where != " WHERE j.status = $1 AND (j.title ILIKE $2 OR j.description ILIKE $2)" {
		t.Errorf("where = %q", where)
	}
	if len(args) != 2 || args[1] != "%go%" {
		t.Errorf("args = %v", args)
	}

	where, args = buildJobWhere(JobListFilters{})
	if where != "" || args != nil {
		t.Errorf("пустые фильтры: where=%q args=%v", where, args)
	}
}
