package handlers

import (
	"net/http"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers every route of the service and wraps it with CORS and
// panic recovery. Recovery sits inside the instrumentation so recovered
// panics are counted as 500s.
func NewRouter(h *PredictionHandler) http.Handler {
	recovery := gorillahandlers.RecoveryHandler(
		gorillahandlers.RecoveryLogger(recoveryLogger{}),
		gorillahandlers.PrintRecoveryStack(true),
	)

	r := mux.NewRouter()
	r.Use(requestIDMiddleware, instrumentMiddleware, recovery)

	r.HandleFunc("/", h.HandleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/predict", h.HandlePredict).Methods(http.MethodPost)
	r.HandleFunc("/model/info", h.HandleModelInfo).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{room_id}/summary", h.HandleRoomSummary).Methods(http.MethodGet)

	r.Path("/metrics").Handler(promhttp.Handler())

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins([]string{"*"}),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", RequestIDHeader}),
	)
	return cors(r)
}
