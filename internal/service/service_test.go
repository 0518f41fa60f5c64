package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/bigkaa/jobboard/internal/domain/model"
	"github.com/bigkaa/jobboard/internal/repository"
)

// --- In-memory реализации репозиториев ---

type memCompanies struct {
	mu      sync.Mutex
	byOwner map[string]*model.Company
}

func newMemCompanies() *memCompanies {
	return &memCompanies{byOwner: make(map[string]*model.Company)}
}

func (m *memCompanies) Upsert(_ context.Context, c *model.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byOwner[c.OwnerID]; ok {
		c.ID = existing.ID
	}
	cp := *c
	m.byOwner[c.OwnerID] = &cp
	return nil
}

func (m *memCompanies) GetByOwner(_ context.Context, ownerID string) (*model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byOwner[ownerID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memCompanies) GetByID(_ context.Context, id string) (*model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byOwner {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memCompanies) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byOwner), nil
}

type memCandidates struct {
	byUser map[string]*model.Candidate
}

func (m *memCandidates) Upsert(_ context.Context, c *model.Candidate) error {
	m.byUser[c.UserID] = c
	return nil
}

func (m *memCandidates) GetByUser(_ context.Context, userID string) (*model.Candidate, error) {
	if c, ok := m.byUser[userID]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memCandidates) Count(context.Context) (int, error) { return len(m.byUser), nil }

type memJobs struct {
	mu   sync.Mutex
	jobs []*model.Job
	err  error
}

func (m *memJobs) Create(_ context.Context, j *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, j)
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.ID == id {
			cp := *j
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memJobs) List(_ context.Context, f repository.JobListFilters, limit, offset int) ([]*model.Job, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	var matched []*model.Job
	for _, j := range m.jobs {
		if f.Status != nil && j.Status != *f.Status {
			continue
		}
		if f.CompanyID != nil && j.CompanyID != *f.CompanyID {
			continue
		}
		matched = append(matched, j)
	}
	total := len(matched)
	if limit > 0 {
		if offset > len(matched) {
			offset = len(matched)
		}
		end := min(offset+limit, len(matched))
		matched = matched[offset:end]
	}
	return matched, total, nil
}

func (m *memJobs) SetStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.ID == id {
			j.Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memJobs) CountByStatus(_ context.Context, status string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if status == "" || j.Status == status {
			n++
		}
	}
	return n, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- CompanyService ---

func TestCompanyService_SaveProfile(t *testing.T) {
	svc := NewCompanyService(newMemCompanies(), testLogger())
	ctx := context.Background()

	tests := []struct {
		name      string
		in        CompanyInput
		wantErr   bool
		wantField string
	}{
		{name: "валидный профиль", in: CompanyInput{Name: " Acme ", Website: "https://acme.example.com", ContactEmail: "hr@acme.example.com"}},
		{name: "пустое название", in: CompanyInput{Name: "  "}, wantErr: true, wantField: "name"},
		{name: "сайт без схемы", in: CompanyInput{Name: "Acme", Website: "acme.example.com"}, wantErr: true, wantField: "website"},
		{name: "некорректный email", in: CompanyInput{Name: "Acme", ContactEmail: "not-an-email"}, wantErr: true, wantField: "contactEmail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := svc.SaveProfile(ctx, "owner-1", tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("SaveProfile() = %v, хотели ErrValidation", err)
				}
				var ve *ValidationError
				if !errors.As(err, &ve) || ve.Field != tt.wantField {
					t.Errorf("поле ошибки = %+v, хотели %q", ve, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("SaveProfile() ошибка: %v", err)
			}
			if c.Name != "Acme" {
				t.Errorf("Name = %q, хотели Acme (после trim)", c.Name)
			}
		})
	}

	if _, err := svc.GetByOwner(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByOwner(nobody) = %v, хотели ErrNotFound", err)
	}
}

// --- CandidateService ---

func TestCandidateService_SaveProfile(t *testing.T) {
	svc := NewCandidateService(&memCandidates{byUser: map[string]*model.Candidate{}}, testLogger())
	ctx := context.Background()

	c, err := svc.SaveProfile(ctx, "user-1", CandidateInput{FullName: "Anna", Skills: "Go, SQL, go, ,Kubernetes"})
	if err != nil {
		t.Fatalf("SaveProfile() ошибка: %v", err)
	}
	want := []string{"go", "sql", "kubernetes"}
	if len(c.Skills) != len(want) {
		t.Fatalf("Skills = %v, хотели %v", c.Skills, want)
	}
	for i := range want {
		if c.Skills[i] != want[i] {
			t.Errorf("Skills[%d] = %q, хотели %q", i, c.Skills[i], want[i])
		}
	}

	if _, err := svc.SaveProfile(ctx, "user-1", CandidateInput{}); !errors.Is(err, ErrValidation) {
		t.Errorf("SaveProfile(без имени) = %v, хотели ErrValidation", err)
	}
	if _, err := svc.SaveProfile(ctx, "", CandidateInput{FullName: "Anna"}); !errors.Is(err, ErrValidation) {
		t.Errorf("SaveProfile(без пользователя) = %v, хотели ErrValidation", err)
	}
}

// --- JobService ---

func TestJobService_CreateRequiresCompany(t *testing.T) {
	svc := NewJobService(&memJobs{}, newMemCompanies(), testLogger())

	_, err := svc.Create(context.Background(), "owner-1", JobInput{Title: "Go", Description: "d"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Create() без компании = %v, хотели ErrValidation", err)
	}
}

func TestJobService_CloseOwnership(t *testing.T) {
	companies := newMemCompanies()
	jobs := &memJobs{}
	ctx := context.Background()
	companySvc := NewCompanyService(companies, testLogger())
	svc := NewJobService(jobs, companies, testLogger())

	if _, err := companySvc.SaveProfile(ctx, "owner-1", CompanyInput{Name: "Acme"}); err != nil {
		t.Fatalf("SaveProfile owner-1: %v", err)
	}
	if _, err := companySvc.SaveProfile(ctx, "owner-2", CompanyInput{Name: "Globex"}); err != nil {
		t.Fatalf("SaveProfile owner-2: %v", err)
	}

	job, err := svc.Create(ctx, "owner-1", JobInput{Title: "Go developer", Description: "backend"})
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if job.CompanyName != "Acme" || job.Status != model.JobStatusOpen {
		t.Errorf("job = %+v", job)
	}

	if err := svc.Close(ctx, "owner-2", job.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Close() чужой компанией = %v, хотели ErrForbidden", err)
	}
	if err := svc.Close(ctx, "stranger", job.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Close() без компании = %v, хотели ErrForbidden", err)
	}
	if err := svc.Close(ctx, "owner-1", job.ID); err != nil {
		t.Fatalf("Close() владельцем: %v", err)
	}
	// Повторное закрытие: no-op
	if err := svc.Close(ctx, "owner-1", job.ID); err != nil {
		t.Errorf("повторный Close() = %v", err)
	}

	got, _ := svc.Get(ctx, job.ID)
	if got.IsOpen() {
		t.Error("вакансия осталась открытой")
	}

	owned, err := svc.ListByOwner(ctx, "owner-1")
	if err != nil || len(owned) != 1 {
		t.Errorf("ListByOwner(owner-1) = %d, %v; хотели 1 закрытую", len(owned), err)
	}
	none, err := svc.ListByOwner(ctx, "stranger")
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("ListByOwner(stranger) = %v, %v; хотели пустой список", none, err)
	}
}

func TestJobService_GetInvalidID(t *testing.T) {
	svc := NewJobService(&memJobs{}, newMemCompanies(), testLogger())
	if _, err := svc.Get(context.Background(), "42"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(42) = %v, хотели ErrNotFound", err)
	}
	if _, err := svc.Get(context.Background(), uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(неизвестный) = %v, хотели ErrNotFound", err)
	}
}

func TestJobService_ListPagination(t *testing.T) {
	jobs := &memJobs{}
	for i := 0; i < JobsPageSize+5; i++ {
		jobs.jobs = append(jobs.jobs, &model.Job{ID: uuid.New().String(), Status: model.JobStatusOpen})
	}
	jobs.jobs = append(jobs.jobs, &model.Job{ID: uuid.New().String(), Status: model.JobStatusClosed})
	svc := NewJobService(jobs, newMemCompanies(), testLogger())

	page, err := svc.List(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if page.Page != 1 || page.Total != JobsPageSize+5 || page.Pages != 2 || len(page.Jobs) != JobsPageSize {
		t.Errorf("страница 1 = %+v", page)
	}

	page, _ = svc.List(context.Background(), "", 2)
	if len(page.Jobs) != 5 {
		t.Errorf("страница 2: %d вакансий, хотели 5", len(page.Jobs))
	}

	jobs.err = errors.New("db down")
	if _, err := svc.List(context.Background(), "", 1); err == nil {
		t.Error("List() ожидалась ошибка репозитория")
	}
}

// --- StatsService ---

func TestStatsService_Overview(t *testing.T) {
	companies := newMemCompanies()
	_ = companies.Upsert(context.Background(), &model.Company{ID: "c1", OwnerID: "o1", Name: "Acme"})
	candidates := &memCandidates{byUser: map[string]*model.Candidate{"u1": {}, "u2": {}}}
	jobs := &memJobs{jobs: []*model.Job{
		{ID: "j1", Status: model.JobStatusOpen},
		{ID: "j2", Status: model.JobStatusClosed},
	}}

	o, err := NewStatsService(companies, candidates, jobs).Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview() ошибка: %v", err)
	}
	if o.Companies != 1 || o.Candidates != 2 || o.Jobs != 2 || o.OpenJobs != 1 {
		t.Errorf("Overview = %+v", o)
	}
}

func TestWriteErr(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{name: "конфликт", err: repository.ErrConflict, target: ErrConflict},
		{name: "CHECK-ограничение", err: repository.ErrInvalid, target: ErrValidation},
		{name: "прочее", err: repository.ErrNotFound, target: repository.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := writeErr("запись", tt.err); !errors.Is(got, tt.target) {
				t.Errorf("writeErr(%v) = %v, хотели %v", tt.err, got, tt.target)
			}
		})
	}
}
