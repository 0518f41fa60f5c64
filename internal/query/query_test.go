package query

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/jobboard/internal/domain/model"
	"github.com/bigkaa/jobboard/internal/domain/role"
	"github.com/bigkaa/jobboard/internal/service"
)

const testJobID = "0b5c1c8e-3f7a-4d8e-9a4b-42c0ffee0042"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator(t *testing.T) *Validator {
	t.Helper()
	doc, err := LoadDocument()
	if err != nil {
		t.Fatalf("LoadDocument() ошибка: %v", err)
	}
	return NewValidator(doc)
}

// --- Фейковые источники ---

type fakeJobs struct {
	calls atomic.Int32
}

func (f *fakeJobs) List(_ context.Context, search string, page int) (*service.JobPage, error) {
	f.calls.Add(1)
	return &service.JobPage{Jobs: []*model.Job{{ID: testJobID, Title: "Go " + search}}, Total: 1, Page: page}, nil
}

func (f *fakeJobs) Get(_ context.Context, id string) (*model.Job, error) {
	f.calls.Add(1)
	if id != testJobID {
		return nil, service.ErrNotFound
	}
	return &model.Job{ID: id, Title: "Go developer", Status: model.JobStatusOpen}, nil
}

func (f *fakeJobs) ListByOwner(_ context.Context, ownerID string) ([]*model.Job, error) {
	f.calls.Add(1)
	return []*model.Job{{ID: testJobID, CompanyID: "c-" + ownerID}}, nil
}

type fakeCompanies struct{}

func (fakeCompanies) GetByOwner(_ context.Context, ownerID string) (*model.Company, error) {
	if ownerID == "u1" {
		return &model.Company{ID: "c1", OwnerID: "u1", Name: "Acme", ContactEmail: "hr@acme.example.com"}, nil
	}
	return nil, service.ErrNotFound
}

type fakeCandidates struct{}

func (fakeCandidates) GetByUser(_ context.Context, userID string) (*model.Candidate, error) {
	return nil, service.ErrNotFound
}

type fakeStats struct{}

func (fakeStats) Overview(context.Context) (*model.Overview, error) {
	return &model.Overview{Companies: 1}, nil
}

func newTestExecutor(t *testing.T, cache *ResultCache) (*Executor, *fakeJobs) {
	t.Helper()
	jobs := &fakeJobs{}
	defs := Catalog(Sources{Jobs: jobs, Companies: fakeCompanies{}, Candidates: fakeCandidates{}, Stats: fakeStats{}})
	e, err := NewExecutor(defs, testValidator(t), cache, testLogger())
	if err != nil {
		t.Fatalf("NewExecutor() ошибка: %v", err)
	}
	return e, jobs
}

// --- Ключи ---

func TestKey_Canonical(t *testing.T) {
	a := Key("job.list", Params{"q": "go", "page": "2"})
	b := Key("job.list", Params{"page": "2", "q": "go"})
	if a != b {
		t.Errorf("ключи различаются: %q != %q", a, b)
	}
	if a != "job.list?page=2&q=go" {
		t.Errorf("Key = %q", a)
	}
	if Key("stats.overview", nil) != "stats.overview" {
		t.Errorf("Key без параметров = %q", Key("stats.overview", nil))
	}
	if got := URL("job.getJob", Params{"jobId": "42"}); got != "/api/rpc/job.getJob?jobId=42" {
		t.Errorf("URL = %q", got)
	}
}

func TestParamsFromValues(t *testing.T) {
	p := ParamsFromValues(url.Values{"q": {"go", "rust"}, "page": {"1"}, "empty": {}})
	if p["q"] != "go" || p["page"] != "1" {
		t.Errorf("Params = %v", p)
	}
	if _, ok := p["empty"]; ok {
		t.Error("параметр без значений не должен попадать в Params")
	}
}

// --- Валидация ---

func TestValidator(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name    string
		query   string
		params  Params
		wantErr error
	}{
		{name: "job.list без параметров", query: JobList},
		{name: "job.list с поиском", query: JobList, params: Params{"q": "go", "page": "3"}},
		{name: "page не число", query: JobList, params: Params{"page": "abc"}, wantErr: ErrInvalidParams},
		{name: "page ноль", query: JobList, params: Params{"page": "0"}, wantErr: ErrInvalidParams},
		{name: "лишний параметр", query: JobList, params: Params{"sort": "asc"}, wantErr: ErrInvalidParams},
		{name: "jobId обязателен", query: JobGet, wantErr: ErrInvalidParams},
		{name: "jobId не UUID", query: JobGet, params: Params{"jobId": "42"}, wantErr: ErrInvalidParams},
		{name: "jobId UUID", query: JobGet, params: Params{"jobId": testJobID}},
		{name: "неизвестный запрос", query: "job.delete", wantErr: ErrUnknownQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.query, tt.params)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, хотели nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, хотели %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewExecutor_RejectsUndocumented(t *testing.T) {
	defs := []Definition{{Name: "job.delete", Run: func(context.Context, Params) (any, error) { return nil, nil }}}
	if _, err := NewExecutor(defs, testValidator(t), nil, testLogger()); err == nil {
		t.Error("NewExecutor() должен отклонить запрос без описания в OpenAPI")
	}

	dup := Catalog(Sources{})
	dup = append(dup, dup[0])
	if _, err := NewExecutor(dup, testValidator(t), nil, testLogger()); err == nil {
		t.Error("NewExecutor() должен отклонить дубликат")
	}
}

// --- Права ---

func TestExecute_Authorization(t *testing.T) {
	e, _ := newTestExecutor(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		p       Principal
		query   string
		params  Params
		wantErr error
		wantMsg string
	}{
		{name: "аноним читает список", p: Principal{}, query: JobList},
		{name: "аноним не видит статистику", p: Principal{}, query: StatsOverview, wantErr: ErrForbidden},
		{name: "кандидат не видит статистику", p: Principal{ID: "u2", Role: role.Candidate}, query: StatsOverview, wantErr: ErrForbidden},
		{name: "админ видит статистику", p: Principal{ID: "a", Role: role.Admin}, query: StatsOverview},
		{name: "компания читает свою", p: Principal{ID: "u1", Role: role.Company}, query: CompanyGetByOwner, params: Params{"ownerId": "u1"}},
		{name: "компания читает чужую", p: Principal{ID: "u1", Role: role.Company}, query: CompanyGetByOwner, params: Params{"ownerId": "u3"}, wantErr: ErrForbidden, wantMsg: CompanyGetByOwner + ": чужой ресурс"},
		{name: "админ читает любую", p: Principal{ID: "a", Role: role.Admin}, query: CompanyGetByOwner, params: Params{"ownerId": "u3"}},
		{name: "кандидат не читает компанию", p: Principal{ID: "u1", Role: role.Candidate}, query: CompanyGetByOwner, params: Params{"ownerId": "u1"}, wantErr: ErrForbidden},
		{name: "неизвестный запрос", p: Principal{}, query: "nope", wantErr: ErrUnknownQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Execute(ctx, tt.p, tt.query, tt.params)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Execute() = %v, хотели nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Execute() = %v, хотели %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Execute() = %q, хотели сообщение с %q", err, tt.wantMsg)
			}
		})
	}
}

func TestExecute_NotFoundAndNullProfiles(t *testing.T) {
	e, _ := newTestExecutor(t, nil)
	ctx := context.Background()

	_, err := e.Execute(ctx, Principal{}, JobGet, Params{"jobId": "11111111-2222-3333-4444-555555555555"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("job.getJob(неизвестный) = %v, хотели ErrNotFound", err)
	}

	v, err := e.Execute(ctx, Principal{ID: "u9", Role: role.Company}, CompanyGetByOwner, Params{"ownerId": "u9"})
	if err != nil {
		t.Fatalf("company.getByOwner без профиля: %v", err)
	}
	data, _ := json.Marshal(v)
	if string(data) != "null" {
		t.Errorf("company.getByOwner без профиля = %s, хотели null", data)
	}
}

// --- Кэш ---

func TestExecute_CachesResults(t *testing.T) {
	e, jobs := newTestExecutor(t, NewResultCache(10, time.Minute))
	ctx := context.Background()
	params := Params{"jobId": testJobID}

	for i := 0; i < 3; i++ {
		if _, err := e.Execute(ctx, Principal{}, JobGet, params); err != nil {
			t.Fatalf("Execute() ошибка: %v", err)
		}
	}
	if got := jobs.calls.Load(); got != 1 {
		t.Errorf("источник вызван %d раз, хотели 1", got)
	}

	e.Invalidate(JobGet)
	if _, err := e.Execute(ctx, Principal{}, JobGet, params); err != nil {
		t.Fatalf("Execute() после Invalidate: %v", err)
	}
	if got := jobs.calls.Load(); got != 2 {
		t.Errorf("после Invalidate источник вызван %d раз, хотели 2", got)
	}
}

func TestExecute_ErrorsNotCached(t *testing.T) {
	e, jobs := newTestExecutor(t, NewResultCache(10, time.Minute))
	params := Params{"jobId": "11111111-2222-3333-4444-555555555555"}

	for i := 0; i < 2; i++ {
		_, _ = e.Execute(context.Background(), Principal{}, JobGet, params)
	}
	if got := jobs.calls.Load(); got != 2 {
		t.Errorf("ошибки не должны кэшироваться: вызовов %d, хотели 2", got)
	}
}

// gatedJobs: источник, который ждёт сигнала перед ответом.
type gatedJobs struct {
	fakeJobs
	started chan struct{}
	release chan struct{}
}

func (g *gatedJobs) Get(ctx context.Context, id string) (*model.Job, error) {
	g.started <- struct{}{}
	<-g.release
	return g.fakeJobs.Get(ctx, id)
}

func TestExecute_InvalidateDuringRun(t *testing.T) {
	tests := []struct {
		name       string
		invalidate []string
		wantCached bool
	}{
		{"сброс того же запроса", []string{JobGet}, false},
		{"сброс другого запроса", []string{JobList}, true},
		{"без сброса", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &gatedJobs{started: make(chan struct{}), release: make(chan struct{})}
			cache := NewResultCache(10, time.Minute)
			defs := Catalog(Sources{Jobs: jobs, Companies: fakeCompanies{}, Candidates: fakeCandidates{}, Stats: fakeStats{}})
			e, err := NewExecutor(defs, testValidator(t), cache, testLogger())
			if err != nil {
				t.Fatalf("NewExecutor() ошибка: %v", err)
			}
			params := Params{"jobId": testJobID}

			done := make(chan error, 1)
			go func() {
				_, err := e.Execute(context.Background(), Principal{}, JobGet, params)
				done <- err
			}()

			<-jobs.started
			e.Invalidate(tt.invalidate...)
			close(jobs.release)
			if err := <-done; err != nil {
				t.Fatalf("Execute() ошибка: %v", err)
			}

			if _, ok := cache.cache.Peek(Key(JobGet, params)); ok != tt.wantCached {
				t.Errorf("результат в кэше = %v, хотели %v", ok, tt.wantCached)
			}
		})
	}
}

func TestResultCache_RemoveQuery(t *testing.T) {
	c := NewResultCache(10, time.Minute)
	c.Set(Key(JobList, nil), 1)
	c.Set(Key(JobList, Params{"q": "go"}), 2)
	c.Set(Key(JobListByOwner, Params{"ownerId": "u1"}), 3)

	if n := c.RemoveQuery(JobList); n != 2 {
		t.Errorf("RemoveQuery(job.list) = %d, хотели 2", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, хотели 1 (job.listByOwner не должен удаляться)", c.Len())
	}
	if NewResultCache(0, time.Minute) != nil {
		t.Error("NewResultCache(0) должен вернуть nil")
	}
}

func TestCompanyView_Email(t *testing.T) {
	data, err := json.Marshal(NewCompanyView(&model.Company{ID: "c1", Name: "Acme", ContactEmail: "hr@acme.example.com"}))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"contactEmail":"hr@acme.example.com"`) {
		t.Errorf("JSON = %s", data)
	}

	data, _ = json.Marshal(NewCompanyView(&model.Company{ID: "c1", Name: "Acme"}))
	if strings.Contains(string(data), "contactEmail") {
		t.Errorf("пустой email должен опускаться: %s", data)
	}
}
