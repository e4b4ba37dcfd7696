package httpapi

import (
	"net/http"

	"github.com/askfloyd/orchestrator/internal/auth"
)

// RegisterRoutes wires the handlers into the mux. Health endpoints bypass
// authentication.
func RegisterRoutes(mux *http.ServeMux, chatHandler *ChatHandler, healthHandler *HealthHandler, mw *auth.Middleware) {
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /readiness", healthHandler.Readiness)

	mux.Handle("POST /v1/chat", mw.HTTPMiddleware(http.HandlerFunc(chatHandler.Chat)))
	mux.Handle("POST /v1/ask", mw.HTTPMiddleware(http.HandlerFunc(chatHandler.Ask)))
}
