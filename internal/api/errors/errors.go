// Пакет errors: ответы с ошибками RPC jobboard.
// Формат: {"error": {"code": "...", "message": "...", "query": "..."}}.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bigkaa/jobboard/internal/query"
)

// Коды ошибок, описанные в OpenAPI-документе.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeUnknownQuery    = "UNKNOWN_QUERY"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Detail: описание ошибки в ответе.
type Detail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Query: имя запроса, если ошибка относится к /api/rpc/{query}
	Query string `json:"query,omitempty"`
}

// Envelope: тело ответа с ошибкой.
type Envelope struct {
	Error Detail `json:"error"`
}

// Write записывает ошибку со статусом status.
func Write(w http.ResponseWriter, status int, d Detail) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Error: d})
}

// Classification: результат сопоставления ошибки запроса с HTTP-ответом.
type Classification struct {
	Status int
	Code   string
	// Internal: ошибка не из таксономии query, её нужно логировать.
	Internal bool
}

// Classify сопоставляет ошибку выполнения запроса со статусом и кодом.
// ErrForbidden для анонимного вызова превращается в 401: запрос мог бы
// выполниться после входа.
func Classify(err error, authenticated bool) Classification {
	switch {
	case errors.Is(err, query.ErrUnknownQuery):
		return Classification{Status: http.StatusNotFound, Code: CodeUnknownQuery}
	case errors.Is(err, query.ErrInvalidParams):
		return Classification{Status: http.StatusBadRequest, Code: CodeValidationError}
	case errors.Is(err, query.ErrNotFound):
		return Classification{Status: http.StatusNotFound, Code: CodeNotFound}
	case errors.Is(err, query.ErrForbidden) && !authenticated:
		return Classification{Status: http.StatusUnauthorized, Code: CodeUnauthorized}
	case errors.Is(err, query.ErrForbidden):
		return Classification{Status: http.StatusForbidden, Code: CodeForbidden}
	default:
		return Classification{Status: http.StatusInternalServerError, Code: CodeInternalError, Internal: true}
	}
}

// QueryError пишет ответ для ошибки запроса name. Текст внутренних
// ошибок клиенту не раскрывается.
func QueryError(w http.ResponseWriter, name string, err error, authenticated bool) Classification {
	c := Classify(err, authenticated)
	msg := messages[c.Code]
	if c.Code == CodeValidationError {
		msg = err.Error()
	}
	Write(w, c.Status, Detail{Code: c.Code, Message: msg, Query: name})
	return c
}

var messages = map[string]string{
	CodeUnknownQuery:  "Неизвестный запрос",
	CodeNotFound:      "Ресурс не найден",
	CodeUnauthorized:  "Требуется аутентификация",
	CodeForbidden:     "Недостаточно прав для запроса",
	CodeInternalError: "Внутренняя ошибка",
}
