package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Nexora-Open-Source/feed-queue/middleware"
	"github.com/Nexora-Open-Source/feed-queue/types"
	"github.com/Nexora-Open-Source/feed-queue/utils"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxArgsBytes = 1 << 20

// SubmitResponse is returned when a task is accepted
type SubmitResponse struct {
	JobID    string          `json:"job_id"`
	Task     string          `json:"task"`
	Status   types.JobStatus `json:"status"`
	Location string          `json:"location"`
}

// HandleSubmitTask queues any registered task with a JSON body as its arguments
//
// @Summary Submit a task
// @Description Queues the named task. The request body is passed to the task as its JSON arguments.
// @Tags Jobs
// @Accept json
// @Produce json
// @Param name path string true "Task name, e.g. tasks.getFeed, tasks.add, tasks.fib"
// @Param args body object true "Task arguments, e.g. {\"url\": \"https://example.com/rss\"}"
// @Success 202 {object} SubmitResponse "Task accepted"
// @Failure 400 {object} middleware.APIError "Invalid JSON arguments"
// @Failure 404 {object} middleware.APIError "Unknown task"
// @Failure 503 {object} middleware.APIError "Queue is full"
// @Router /api/tasks/{name} [post]
func (h *Handler) HandleSubmitTask(w http.ResponseWriter, r *http.Request) {
	requestID := utils.RequestID(r)
	name := mux.Vars(r)["name"]

	if !h.Tasks.Has(name) {
		middleware.RespondNotFound(w, fmt.Errorf("unknown task %q", name), requestID)
		return
	}

	var args json.RawMessage
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxArgsBytes))
	if err := decoder.Decode(&args); err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("request body must hold the task arguments as JSON")
		}
		middleware.RespondValidationError(w, err, requestID)
		return
	}

	jobID, err := h.Queue.Submit(r.Context(), name, args)
	if err != nil {
		h.respondSubmitError(w, err, requestID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"job_id":     jobID,
		"task":       name,
	}).Info("Task queued")

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/api/jobs/"+jobID)
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(SubmitResponse{
		JobID:    jobID,
		Task:     name,
		Status:   types.StatusPending,
		Location: "/api/jobs/" + jobID,
	})
}

// HandleGetJobStatus returns the stored record of a job
//
// @Summary Get a job
// @Description Returns the job record: status, result when ready, trace when failed.
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} types.JobRecord
// @Failure 404 {object} middleware.APIError "Job not found"
// @Failure 503 {object} middleware.APIError "Result backend unavailable"
// @Router /api/jobs/{id} [get]
func (h *Handler) HandleGetJobStatus(w http.ResponseWriter, r *http.Request) {
	requestID := utils.RequestID(r)
	jobID := mux.Vars(r)["id"]

	rec, ok := h.lookup(w, r, jobID, requestID)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(rec)
}
