package query

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiYAML []byte

// rpcPrefix: префикс путей запросов в OpenAPI-документе.
const rpcPrefix = "/api/rpc/"

// LoadDocument загружает и валидирует встроенный OpenAPI-документ.
func LoadDocument() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiYAML)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки OpenAPI-документа: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("некорректный OpenAPI-документ: %w", err)
	}
	return doc, nil
}

// Validator: проверка параметров запросов по OpenAPI-документу.
type Validator struct {
	doc *openapi3.T
}

// NewValidator создаёт валидатор поверх загруженного документа.
func NewValidator(doc *openapi3.T) *Validator {
	return &Validator{doc: doc}
}

// Document возвращает OpenAPI-документ (для GET /api/openapi.json).
func (v *Validator) Document() *openapi3.T {
	return v.doc
}

// Has сообщает, описан ли запрос в документе.
func (v *Validator) Has(name string) bool {
	return v.operation(name) != nil
}

// Validate проверяет параметры: обязательные присутствуют, лишних нет,
// значения соответствуют схемам.
func (v *Validator) Validate(name string, params Params) error {
	op := v.operation(name)
	if op == nil {
		return fmt.Errorf("%w: %s", ErrUnknownQuery, name)
	}

	declared := make(map[string]bool, len(op.Parameters))
	for _, ref := range op.Parameters {
		p := ref.Value
		if p == nil || p.In != openapi3.ParameterInQuery {
			continue
		}
		declared[p.Name] = true

		value, ok := params[p.Name]
		if !ok || value == "" {
			if p.Required {
				return fmt.Errorf("%w: обязательный параметр %q не указан", ErrInvalidParams, p.Name)
			}
			continue
		}
		if p.Schema != nil && p.Schema.Value != nil {
			if err := p.Schema.Value.VisitJSON(value); err != nil {
				return fmt.Errorf("%w: параметр %q: %s", ErrInvalidParams, p.Name, firstLine(err.Error()))
			}
		}
	}

	var unknown []string
	for k := range params {
		if !declared[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: неизвестные параметры %s", ErrInvalidParams, strings.Join(unknown, ", "))
	}
	return nil
}

func (v *Validator) operation(name string) *openapi3.Operation {
	if v.doc == nil || v.doc.Paths == nil {
		return nil
	}
	item := v.doc.Paths.Value(rpcPrefix + name)
	if item == nil {
		return nil
	}
	return item.Get
}

// firstLine обрезает многострочное описание ошибки схемы kin-openapi.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
