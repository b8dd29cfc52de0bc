package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/authz-engine/pep-core/internal/metrics"
)

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewOpsRouter serves liveness, readiness and Prometheus metrics. It runs on
// its own listener so operational traffic never shares a port with the
// enforced resource API.
func NewOpsRouter(m metrics.Metrics, ready func() bool) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, HealthStatus{
			Status:    "UP",
			Timestamp: time.Now().UTC(),
		})
	}).Methods(http.MethodGet)

	router.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		status := HealthStatus{
			Timestamp: time.Now().UTC(),
			Checks:    map[string]string{},
		}
		if ready == nil || ready() {
			status.Status = "UP"
			status.Checks["pdp"] = "ready"
			writeHealth(w, http.StatusOK, status)
			return
		}
		status.Status = "DOWN"
		status.Checks["pdp"] = "not_ready"
		writeHealth(w, http.StatusServiceUnavailable, status)
	}).Methods(http.MethodGet)

	router.Handle("/metrics", m.HTTPHandler()).Methods(http.MethodGet)

	return router
}

func writeHealth(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
