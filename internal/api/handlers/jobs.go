package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/investscope/internal/scheduler"
)

// JobRunner is the periodic scheduler as seen by the API.
type JobRunner interface {
	Stats() []scheduler.JobStats
	RunJob(name string) error
}

type JobsHandler struct {
	jobs JobRunner
}

func NewJobsHandler(jobs JobRunner) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// List GET /api/jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.jobs.Stats())
}

// Run POST /api/jobs/{name}/run
func (h *JobsHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.jobs.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]interface{}{"started": name})
}
