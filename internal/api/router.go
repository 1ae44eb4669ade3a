package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the HTTP route table. Analysis routes require a bearer
// token; register/login/health do not.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/", h.Root).Methods("GET")
	r.HandleFunc("/api/health", h.Health).Methods("GET")
	r.HandleFunc("/api/register", h.Register).Methods("POST")
	r.HandleFunc("/api/login", h.Login).Methods("POST")

	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(h.requireAuth)
	authed.HandleFunc("/analyze-currency", h.AnalyzeCurrency).Methods("POST")
	authed.HandleFunc("/analysis/{id}", h.GetAnalysis).Methods("GET")
	authed.HandleFunc("/analysis", h.ListAnalyses).Methods("GET")
	authed.HandleFunc("/webhook/{id}", h.TriggerWebhook).Methods("POST")

	return r
}
