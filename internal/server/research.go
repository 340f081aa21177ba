package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/prospector/internal/agent/core"
	"github.com/mohammad-safakhou/prospector/internal/scheduler"
)

var (
	submittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospector_jobs_submitted_total",
		Help: "Research jobs accepted into the queue.",
	})
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospector_cache_hits_total",
		Help: "Submissions answered from the result cache.",
	})
	canceledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospector_jobs_canceled_total",
		Help: "Research jobs removed via the cancellation endpoint.",
	})
)

type researchRequest struct {
	Name      string   `json:"name"`
	Context   string   `json:"context"`
	Interests []string `json:"interests"`
}

type jobTimestamps struct {
	Created  time.Time  `json:"created"`
	Started  *time.Time `json:"started"`
	Finished *time.Time `json:"finished"`
}

type jobStatusResponse struct {
	JobID      string        `json:"jobId"`
	Status     string        `json:"status"`
	Progress   int           `json:"progress"`
	Result     *core.Report  `json:"result"`
	Error      *string       `json:"error"`
	Timestamps jobTimestamps `json:"timestamps"`
}

func statusResponse(job scheduler.Job) jobStatusResponse {
	resp := jobStatusResponse{
		JobID:    job.ID,
		Status:   string(job.Status),
		Progress: job.Progress,
		Result:   job.Result,
		Timestamps: jobTimestamps{
			Created:  job.CreatedAt,
			Started:  job.StartedAt,
			Finished: job.FinishedAt,
		},
	}
	if job.Error != "" {
		msg := job.Error
		resp.Error = &msg
	}
	return resp
}

// submitResearch validates the profile, answers from the cache when a
// fresh result exists, and otherwise enqueues a job.
func (s *Server) submitResearch(c echo.Context) error {
	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	profile := core.Profile{Name: req.Name, Context: strings.TrimSpace(req.Context)}
	for _, in := range req.Interests {
		if in = strings.TrimSpace(in); in != "" {
			profile.Interests = append(profile.Interests, in)
		}
	}

	job, cached, err := s.sched.Submit(c.Request().Context(), profile)
	if err != nil {
		if errors.Is(err, scheduler.ErrQueueFull) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "queue full, retry later")
		}
		return err
	}
	if cached != nil {
		cacheHitsTotal.Inc()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "completed",
			"cached": true,
			"result": cached,
		})
	}
	submittedTotal.Inc()
	return c.JSON(http.StatusAccepted, map[string]string{
		"jobId":     job.ID,
		"status":    "processing",
		"statusUrl": fmt.Sprintf("/api/research/%s", job.ID),
	})
}

func (s *Server) getResearch(c echo.Context) error {
	job, ok := s.sched.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	return c.JSON(http.StatusOK, statusResponse(job))
}

func (s *Server) listResearch(c echo.Context) error {
	jobs := s.sched.List()
	out := make([]jobStatusResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, statusResponse(job))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"jobs": out})
}

func (s *Server) cancelResearch(c echo.Context) error {
	if !s.sched.Cancel(c.Request().Context(), c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	canceledTotal.Inc()
	return c.JSON(http.StatusOK, map[string]string{"status": "canceled"})
}
