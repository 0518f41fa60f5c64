// Пакет prefetch: параллельная предзагрузка данных страницы на сервере.
//
// Bootstrapper планирует именованные запросы без блокировки, собирает
// успешные результаты в Cache и сериализует его в payload гидратации.
// Ошибка любого запроса не прерывает остальные и не попадает в кэш:
// представление в этом случае отдаёт клиенту заглушку с адресом RPC.
package prefetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bigkaa/jobboard/internal/query"
)

// ErrNotSettled: payload запрошен до завершения всех prefetch.
var ErrNotSettled = errors.New("prefetch: запросы ещё не завершены")

// Значения по умолчанию.
const (
	DefaultTimeout     = 2 * time.Second
	DefaultConcurrency = 8
)

// Executor выполняет именованный запрос от имени субъекта.
type Executor interface {
	Execute(ctx context.Context, p query.Principal, name string, params query.Params) (any, error)
}

// Outcome: исход одного prefetch.
type Outcome string

const (
	// OutcomeSuccess: данные получены и помещены в кэш.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailure: ошибка, таймаут или panic запроса.
	OutcomeFailure Outcome = "failure"
	// OutcomeAbandoned: запрос страницы отменён клиентом.
	OutcomeAbandoned Outcome = "abandoned"
)

// Status: итог одного запланированного prefetch.
type Status struct {
	Name     string
	Params   query.Params
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Result: итог всех prefetch страницы.
type Result struct {
	Statuses []Status
}

// Failed: количество неуспешных prefetch.
func (r Result) Failed() int {
	n := 0
	for _, s := range r.Statuses {
		if s.Outcome != OutcomeSuccess {
			n++
		}
	}
	return n
}

// Err возвращает ошибку prefetch запроса name с параметрами params
// (nil: успех или запрос не планировался).
func (r Result) Err(name string, params query.Params) error {
	key := query.Key(name, params)
	for _, s := range r.Statuses {
		if query.Key(s.Name, s.Params) == key {
			return s.Err
		}
	}
	return nil
}

// Options: параметры Bootstrapper.
type Options struct {
	// Timeout: предельное время одного запроса.
	Timeout time.Duration
	// Concurrency: максимум одновременно выполняемых запросов.
	Concurrency int
}

// Bootstrapper: планировщик prefetch одного запроса страницы.
type Bootstrapper struct {
	ctx       context.Context
	exec      Executor
	principal query.Principal
	timeout   time.Duration
	sem       *semaphore.Weighted
	cache     *Cache
	logger    *slog.Logger

	group errgroup.Group

	mu        sync.Mutex
	scheduled map[string]bool
	statuses  []Status
	sealed    bool
	settled   bool
}

// New создаёт Bootstrapper. Контексты запросов производятся от ctx,
// поэтому отмена запроса страницы отменяет все prefetch.
func New(ctx context.Context, exec Executor, principal query.Principal, opts Options, logger *slog.Logger) *Bootstrapper {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Bootstrapper{
		ctx:       ctx,
		exec:      exec,
		principal: principal,
		timeout:   opts.Timeout,
		sem:       semaphore.NewWeighted(int64(opts.Concurrency)),
		cache:     NewCache(),
		logger:    logger.With(slog.String("component", "prefetch")),
		scheduled: make(map[string]bool),
	}
}

// Cache возвращает кэш результатов.
func (b *Bootstrapper) Cache() *Cache {
	return b.cache
}

// Schedule планирует запрос и сразу возвращает управление.
// Повторное планирование того же ключа игнорируется, как и планирование
// после Wait.
func (b *Bootstrapper) Schedule(name string, params query.Params) {
	key := query.Key(name, params)

	b.mu.Lock()
	if b.sealed {
		b.mu.Unlock()
		b.logger.Warn("Prefetch запланирован после ожидания, пропущен",
			slog.String("query", name),
		)
		return
	}
	if b.scheduled[key] {
		b.mu.Unlock()
		return
	}
	b.scheduled[key] = true
	b.mu.Unlock()

	b.group.Go(func() error {
		st := b.run(name, params)

		prefetchTotal.WithLabelValues(name, string(st.Outcome)).Inc()
		prefetchDuration.WithLabelValues(name).Observe(st.Duration.Seconds())

		b.mu.Lock()
		b.statuses = append(b.statuses, st)
		b.mu.Unlock()
		return nil
	})
}

// outcome: результат вызова Executor.
type outcome struct {
	data any
	err  error
}

// run выполняет один запрос. Никогда не паникует и не ждёт дольше таймаута:
// вызов Executor идёт в отдельной горутине, результат после таймаута
// отбрасывается.
func (b *Bootstrapper) run(name string, params query.Params) Status {
	start := time.Now()
	st := Status{Name: name, Params: params}
	finish := func(o Outcome, err error) Status {
		st.Outcome = o
		st.Err = err
		st.Duration = time.Since(start)
		if err != nil {
			b.logger.Debug("Prefetch не удался",
				slog.String("query", name),
				slog.String("outcome", string(o)),
				slog.String("error", err.Error()),
			)
		}
		return st
	}

	if err := b.sem.Acquire(b.ctx, 1); err != nil {
		return finish(OutcomeAbandoned, err)
	}
	defer b.sem.Release(1)

	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				b.logger.Error("Panic в prefetch",
					slog.String("query", name),
					slog.Any("panic", rec),
				)
				done <- outcome{err: fmt.Errorf("prefetch %s: panic: %v", name, rec)}
			}
		}()
		data, err := b.exec.Execute(ctx, b.principal, name, params)
		done <- outcome{data: data, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if b.ctx.Err() != nil {
				return finish(OutcomeAbandoned, res.err)
			}
			return finish(OutcomeFailure, res.err)
		}
		b.cache.put(name, params, res.data)
		return finish(OutcomeSuccess, nil)
	case <-ctx.Done():
		if b.ctx.Err() != nil {
			return finish(OutcomeAbandoned, b.ctx.Err())
		}
		return finish(OutcomeFailure, fmt.Errorf("prefetch %s: %w", name, ctx.Err()))
	}
}

// Wait дожидается завершения всех запланированных prefetch и возвращает
// их итог. После Wait новые запросы не планируются; повторный вызов
// возвращает тот же итог.
func (b *Bootstrapper) Wait() Result {
	b.mu.Lock()
	b.sealed = true
	b.mu.Unlock()

	_ = b.group.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.settled = true
	statuses := make([]Status, len(b.statuses))
	copy(statuses, b.statuses)
	return Result{Statuses: statuses}
}

// dehydratedQuery: элемент payload гидратации.
type dehydratedQuery struct {
	QueryKey []any          `json:"queryKey"`
	State    dehydrateState `json:"state"`
}

type dehydrateState struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// Dehydrate сериализует кэш в payload гидратации. До Wait возвращает
// ErrNotSettled: payload не должен содержать незавершённых запросов.
func (b *Bootstrapper) Dehydrate() ([]byte, error) {
	b.mu.Lock()
	settled := b.settled
	b.mu.Unlock()
	if !settled {
		return nil, ErrNotSettled
	}

	entries := b.cache.snapshot()
	payload := struct {
		Queries []dehydratedQuery `json:"queries"`
	}{Queries: make([]dehydratedQuery, 0, len(entries))}

	for _, e := range entries {
		params := e.params
		if params == nil {
			params = query.Params{}
		}
		payload.Queries = append(payload.Queries, dehydratedQuery{
			QueryKey: []any{e.name, params},
			State:    dehydrateState{Status: string(OutcomeSuccess), Data: e.data},
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("prefetch: сериализация кэша: %w", err)
	}
	return data, nil
}
