// rpc.go: HTTP-доступ к именованным запросам: GET /api/rpc/{query}.
// Используется клиентским fallback, когда серверный prefetch не удался.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/jobboard/internal/api/errors"
	"github.com/bigkaa/jobboard/internal/query"
	"github.com/bigkaa/jobboard/internal/ui/auth"
)

// QueryExecutor: выполнение именованных запросов.
type QueryExecutor interface {
	Execute(ctx context.Context, p query.Principal, name string, params query.Params) (any, error)
}

// RPCHandler: обработчик /api/rpc/{query} и /api/openapi.json.
type RPCHandler struct {
	exec   QueryExecutor
	spec   []byte
	logger *slog.Logger
}

// NewRPCHandler создаёт обработчик RPC. spec - OpenAPI-документ в JSON.
func NewRPCHandler(exec QueryExecutor, spec []byte, logger *slog.Logger) *RPCHandler {
	return &RPCHandler{
		exec:   exec,
		spec:   spec,
		logger: logger.With(slog.String("component", "rpc_handler")),
	}
}

// rpcResponse: успешный ответ RPC.
type rpcResponse struct {
	Data any `json:"data"`
}

// Execute: GET /api/rpc/{query}?params.
// Сессия берётся из контекста (см. ui/middleware.Session).
func (h *RPCHandler) Execute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "query")
	session := auth.FromContext(r.Context())
	principal := query.Principal{ID: session.Subject(), Role: session.Role}

	data, err := h.exec.Execute(r.Context(), principal, name, query.ParamsFromValues(r.URL.Query()))
	if err != nil {
		h.writeQueryError(w, r, session, name, err)
		return
	}

	w.Header().Set("Cache-Control", "private, no-store")
	writeJSON(w, http.StatusOK, rpcResponse{Data: data})
}

// OpenAPI: GET /api/openapi.json.
func (h *RPCHandler) OpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.spec)
}

func (h *RPCHandler) writeQueryError(w http.ResponseWriter, r *http.Request, s auth.Session, name string, err error) {
	if r.Context().Err() != nil && errors.Is(err, r.Context().Err()) {
		// Клиент отключился: ответ уже никому не нужен.
		h.logger.Debug("Запрос прерван клиентом", slog.String("query", name))
		return
	}
	if c := apierrors.QueryError(w, name, err, s.Authenticated()); c.Internal {
		h.logger.Error("Ошибка выполнения запроса",
			slog.String("query", name),
			slog.String("error", err.Error()),
		)
	}
}
