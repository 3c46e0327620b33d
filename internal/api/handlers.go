package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/slatelabs/slatesync/internal/session"
)

type API struct {
	service *session.Service
}

func New(svc *session.Service) *API {
	return &API{service: svc}
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	st := a.service.Store()
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"store":           st.Name(),
		"line_count":      st.LineCount(),
		"active_sessions": a.service.SessionCount(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

type LineResponse struct {
	ID     int    `json:"id"`
	Value  string `json:"value"`
	Origin string `json:"origin,omitempty"`
}

// SlateHandler exposes the current committed slate for diagnostics.
func (a *API) SlateHandler(w http.ResponseWriter, r *http.Request) {
	lines := a.service.Store().Lines()

	response := make([]LineResponse, len(lines))
	for i, line := range lines {
		response[i] = LineResponse{ID: line.ID, Value: line.Value}
		if line.LastOrigin != nil {
			response[i].Origin = line.LastOrigin.String()
		}
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"store": a.service.Store().Name(),
		"lines": response,
	})
}
