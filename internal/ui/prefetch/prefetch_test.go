package prefetch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/jobboard/internal/query"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// funcExecutor: Executor на функции.
type funcExecutor func(ctx context.Context, name string, params query.Params) (any, error)

func (f funcExecutor) Execute(ctx context.Context, _ query.Principal, name string, params query.Params) (any, error) {
	return f(ctx, name, params)
}

func TestBootstrapper_AllSettledBeforeDehydrate(t *testing.T) {
	exec := funcExecutor(func(_ context.Context, name string, params query.Params) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return map[string]string{"name": name, "id": params["id"]}, nil
	})
	b := New(context.Background(), exec, query.Principal{}, Options{}, testLogger())

	for _, id := range []string{"1", "2", "3", "4", "5"} {
		b.Schedule("job.getJob", query.Params{"id": id})
	}

	if _, err := b.Dehydrate(); !errors.Is(err, ErrNotSettled) {
		t.Fatalf("до Wait ожидался ErrNotSettled, получено %v", err)
	}

	res := b.Wait()
	if len(res.Statuses) != 5 || res.Failed() != 0 {
		t.Fatalf("ожидалось 5 успешных prefetch, получено %+v", res)
	}

	payload, err := b.Dehydrate()
	if err != nil {
		t.Fatalf("Dehydrate: %v", err)
	}
	var decoded struct {
		Queries []struct {
			QueryKey []json.RawMessage `json:"queryKey"`
			State    struct {
				Status string `json:"status"`
			} `json:"state"`
		} `json:"queries"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload не JSON: %v", err)
	}
	if len(decoded.Queries) != 5 {
		t.Fatalf("ожидалось 5 записей в payload, получено %d", len(decoded.Queries))
	}
	for _, q := range decoded.Queries {
		if q.State.Status != "success" || len(q.QueryKey) != 2 {
			t.Errorf("некорректная запись payload: %+v", q)
		}
	}
}

func TestBootstrapper_FailureLeavesEntryAbsent(t *testing.T) {
	boom := errors.New("db down")
	exec := funcExecutor(func(_ context.Context, name string, _ query.Params) (any, error) {
		if name == "company.getByOwner" {
			return nil, boom
		}
		return []string{"ok"}, nil
	})
	b := New(context.Background(), exec, query.Principal{}, Options{}, testLogger())

	owner := query.Params{"ownerId": "u1"}
	b.Schedule("company.getByOwner", owner)
	b.Schedule("job.listByOwner", owner)
	res := b.Wait()

	if res.Failed() != 1 {
		t.Fatalf("ожидался 1 неуспешный prefetch, получено %d", res.Failed())
	}
	if !errors.Is(res.Err("company.getByOwner", owner), boom) {
		t.Errorf("ожидалась исходная ошибка в итоге")
	}
	if _, ok := b.Cache().Get("company.getByOwner", owner); ok {
		t.Error("неуспешный запрос не должен попадать в кэш")
	}
	if _, ok := b.Cache().Get("job.listByOwner", owner); !ok {
		t.Error("успешный запрос должен быть в кэше")
	}

	payload, err := b.Dehydrate()
	if err != nil {
		t.Fatalf("Dehydrate: %v", err)
	}
	var decoded struct {
		Queries []json.RawMessage `json:"queries"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Queries) != 1 {
		t.Errorf("в payload должен быть только успешный запрос, получено %d", len(decoded.Queries))
	}
}

func TestBootstrapper_RecoversPanic(t *testing.T) {
	exec := funcExecutor(func(context.Context, string, query.Params) (any, error) {
		panic("unexpected")
	})
	b := New(context.Background(), exec, query.Principal{}, Options{}, testLogger())

	b.Schedule("stats.overview", nil)
	res := b.Wait()

	if len(res.Statuses) != 1 || res.Statuses[0].Outcome != OutcomeFailure {
		t.Fatalf("panic должна стать неуспешным исходом, получено %+v", res.Statuses)
	}
	if b.Cache().Len() != 0 {
		t.Error("кэш должен быть пуст")
	}
}

func TestBootstrapper_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	exec := funcExecutor(func(context.Context, string, query.Params) (any, error) {
		<-release // игнорирует контекст
		return "late", nil
	})
	b := New(context.Background(), exec, query.Principal{}, Options{Timeout: 20 * time.Millisecond}, testLogger())

	b.Schedule("job.list", nil)

	done := make(chan Result, 1)
	go func() { done <- b.Wait() }()

	select {
	case res := <-done:
		if res.Statuses[0].Outcome != OutcomeFailure {
			t.Errorf("ожидался failure по таймауту, получено %s", res.Statuses[0].Outcome)
		}
		if !errors.Is(res.Statuses[0].Err, context.DeadlineExceeded) {
			t.Errorf("ожидался DeadlineExceeded, получено %v", res.Statuses[0].Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait не должен ждать дольше таймаута запроса")
	}
}

func TestBootstrapper_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := funcExecutor(func(ctx context.Context, _ string, _ query.Params) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	b := New(ctx, exec, query.Principal{}, Options{Timeout: time.Minute}, testLogger())

	b.Schedule("job.list", nil)
	b.Schedule("stats.overview", nil)
	cancel()
	res := b.Wait()

	for _, st := range res.Statuses {
		if st.Outcome != OutcomeAbandoned {
			t.Errorf("%s: ожидался abandoned, получено %s", st.Name, st.Outcome)
		}
	}
	if b.Cache().Len() != 0 {
		t.Error("отменённые запросы не должны попадать в кэш")
	}
}

func TestBootstrapper_ScheduleDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	var running, peak atomic.Int32
	exec := funcExecutor(func(context.Context, string, query.Params) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return 1, nil
	})
	b := New(context.Background(), exec, query.Principal{}, Options{Concurrency: 2, Timeout: 5 * time.Second}, testLogger())

	scheduled := make(chan struct{})
	go func() {
		for i := range 10 {
			b.Schedule("job.getJob", query.Params{"jobId": string(rune('a' + i))})
		}
		close(scheduled)
	}()

	select {
	case <-scheduled:
	case <-time.After(time.Second):
		t.Fatal("Schedule не должен блокироваться при достижении лимита параллелизма")
	}

	close(release)
	res := b.Wait()
	if len(res.Statuses) != 10 || res.Failed() != 0 {
		t.Fatalf("ожидалось 10 успешных prefetch, получено %+v", res)
	}
	if peak.Load() > 2 {
		t.Errorf("превышен лимит параллелизма: %d", peak.Load())
	}
}

func TestBootstrapper_DeduplicatesAndSeals(t *testing.T) {
	var calls atomic.Int32
	exec := funcExecutor(func(context.Context, string, query.Params) (any, error) {
		calls.Add(1)
		return "x", nil
	})
	b := New(context.Background(), exec, query.Principal{}, Options{}, testLogger())

	b.Schedule("job.list", query.Params{"page": "1"})
	b.Schedule("job.list", query.Params{"page": "1"})
	b.Wait()
	b.Schedule("job.list", query.Params{"page": "2"})

	if calls.Load() != 1 {
		t.Errorf("ожидался 1 вызов, получено %d", calls.Load())
	}
}

func TestLookup(t *testing.T) {
	c := NewCache()
	c.put("job.getJob", query.Params{"jobId": "42"}, []int{42})
	ctx := WithCache(context.Background(), c)

	if v, ok := Lookup[[]int](ctx, "job.getJob", query.Params{"jobId": "42"}); !ok || v[0] != 42 {
		t.Errorf("ожидалось попадание, получено %v %v", v, ok)
	}
	if _, ok := Lookup[string](ctx, "job.getJob", query.Params{"jobId": "42"}); ok {
		t.Error("несовпадение типа должно давать промах")
	}
	if _, ok := Lookup[[]int](context.Background(), "job.getJob", nil); ok {
		t.Error("без кэша в контексте должен быть промах")
	}
}
