// Пакет query: именованные параметризованные запросы на чтение.
// Один и тот же запрос выполняется при серверном prefetch и при
// клиентском fallback через GET /api/rpc/{name}.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/bigkaa/jobboard/internal/domain/role"
)

// Ошибки выполнения запросов.
var (
	// ErrUnknownQuery: запрос с таким именем не зарегистрирован.
	ErrUnknownQuery = errors.New("неизвестный запрос")
	// ErrForbidden: роль или владелец не разрешают выполнение.
	ErrForbidden = errors.New("запрос недоступен для текущего пользователя")
	// ErrInvalidParams: параметры не прошли валидацию по OpenAPI-схеме.
	ErrInvalidParams = errors.New("некорректные параметры запроса")
	// ErrNotFound: запрошенный ресурс не существует.
	ErrNotFound = errors.New("ресурс не найден")
)

// Params: параметры запроса: строковые значения по имени.
type Params map[string]string

// Encode возвращает параметры в виде query string с сортировкой по ключу.
func (p Params) Encode() string {
	v := make(url.Values, len(p))
	for k, val := range p {
		v.Set(k, val)
	}
	return v.Encode()
}

// ParamsFromValues берёт первое значение каждого параметра URL.
func ParamsFromValues(v url.Values) Params {
	p := make(Params, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			p[k] = vals[0]
		}
	}
	return p
}

// Key: канонический ключ запроса: имя + отсортированные параметры.
// Одинаковые (name, params) всегда дают одинаковый ключ.
func Key(name string, params Params) string {
	if len(params) == 0 {
		return name
	}
	return name + "?" + params.Encode()
}

// URL возвращает адрес RPC endpoint для клиентского выполнения запроса.
func URL(name string, params Params) string {
	u := "/api/rpc/" + url.PathEscape(name)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Principal: субъект, от имени которого выполняется запрос.
// Нулевое значение: анонимный пользователь.
type Principal struct {
	ID   string
	Role role.Role
}

// RunFunc выполняет запрос. Параметры уже провалидированы.
type RunFunc func(ctx context.Context, params Params) (any, error)

// Definition: описание именованного запроса.
type Definition struct {
	// Name: имя запроса, например "job.getJob"
	Name string
	// Roles: роли, которым разрешён запрос (пусто - всем, включая анонимных)
	Roles []role.Role
	// OwnerParam: параметр, значение которого должно совпадать с ID
	// субъекта (admin проверку пропускает)
	OwnerParam string
	// Run: выполнение запроса
	Run RunFunc
}

// Executor: реестр запросов с проверкой прав, валидацией и кэшем результатов.
type Executor struct {
	defs      map[string]Definition
	validator *Validator
	cache     *ResultCache
	logger    *slog.Logger
}

// NewExecutor создаёт исполнитель запросов.
// Каждое определение должно быть описано в OpenAPI-документе.
// cache может быть nil - тогда результаты не кэшируются.
func NewExecutor(defs []Definition, validator *Validator, cache *ResultCache, logger *slog.Logger) (*Executor, error) {
	m := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if d.Name == "" || d.Run == nil {
			return nil, fmt.Errorf("некорректное определение запроса %q", d.Name)
		}
		if _, dup := m[d.Name]; dup {
			return nil, fmt.Errorf("запрос %q зарегистрирован дважды", d.Name)
		}
		if !validator.Has(d.Name) {
			return nil, fmt.Errorf("запрос %q отсутствует в OpenAPI-документе", d.Name)
		}
		m[d.Name] = d
	}
	return &Executor{
		defs:      m,
		validator: validator,
		cache:     cache,
		logger:    logger.With(slog.String("component", "query")),
	}, nil
}

// Execute выполняет запрос name от имени p.
func (e *Executor) Execute(ctx context.Context, p Principal, name string, params Params) (any, error) {
	def, ok := e.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, name)
	}
	if err := authorize(def, p, params); err != nil {
		return nil, err
	}
	if err := e.validator.Validate(name, params); err != nil {
		return nil, err
	}

	key := Key(name, params)
	var gen uint64
	if e.cache != nil {
		if v, hit := e.cache.Get(key); hit {
			return v, nil
		}
		gen = e.cache.Generation(name)
	}

	v, err := def.Run(ctx, params)
	if err != nil {
		return nil, err
	}

	if e.cache != nil && !e.cache.SetIfCurrent(name, key, v, gen) {
		e.logger.Debug("Результат устарел до записи в кэш",
			slog.String("query", name),
		)
	}
	return v, nil
}

// Invalidate удаляет из кэша результаты перечисленных запросов
// (все варианты параметров). Вызывается после изменения данных.
func (e *Executor) Invalidate(names ...string) {
	if e.cache == nil {
		return
	}
	for _, name := range names {
		n := e.cache.RemoveQuery(name)
		e.logger.Debug("Кэш запроса сброшен",
			slog.String("query", name),
			slog.Int("entries", n),
		)
	}
}

// authorize проверяет роль и владельца.
func authorize(def Definition, p Principal, params Params) error {
	if len(def.Roles) > 0 && !p.Role.OneOf(def.Roles...) {
		return fmt.Errorf("%w: %s для роли %s", ErrForbidden, def.Name, p.Role)
	}
	if def.OwnerParam != "" && p.Role != role.Admin {
		if p.ID == "" || params[def.OwnerParam] != p.ID {
			return fmt.Errorf("%w: %s: чужой ресурс", ErrForbidden, def.Name)
		}
	}
	return nil
}
