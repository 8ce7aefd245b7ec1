package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"arcana-reading-server/internal/domain"
	"arcana-reading-server/internal/infra/gateway"
	"arcana-reading-server/internal/usecase"
)

// Server wires the HTTP surface: health, metrics, the websocket upgrade,
// and a read-only progress lookup that outlives a dropped connection.
type Server struct {
	readings   usecase.ReadingUseCase
	gw         *gateway.Gateway
	sendBuffer int
	log        *zerolog.Logger
}

func NewServer(readings usecase.ReadingUseCase, gw *gateway.Gateway, sendBuffer int, logger *zerolog.Logger) *Server {
	webLog := logger.With().Str("component", "Web").Logger()
	return &Server{readings: readings, gw: gw, sendBuffer: sendBuffer, log: &webLog}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/metrics", promhttp.Handler())
	r.Get("/ws", s.gw.ServeWS(s.sendBuffer))
	r.Get("/api/v1/jobs/{jobID}/progress", s.handleProgress)

	return r
}

type progressResponse struct {
	JobID       string `json:"jobId"`
	Current     int    `json:"current"`
	Total       int    `json:"total"`
	Percentage  int    `json:"percentage"`
	Status      string `json:"status"`
	FinalResult string `json:"finalResult,omitempty"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.readings.Find(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Str("job_id", jobID).Msg("progress lookup failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	prog := job.ProgressSnapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(progressResponse{
		JobID:       job.ID,
		Current:     prog.Current,
		Total:       prog.Total,
		Percentage:  prog.Percentage,
		Status:      string(prog.Status),
		FinalResult: job.FinalResult,
	})
}
