package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Nexora-Open-Source/feed-queue/feed"
	"github.com/Nexora-Open-Source/feed-queue/middleware"
	"github.com/Nexora-Open-Source/feed-queue/queue"
	"github.com/Nexora-Open-Source/feed-queue/tasks"
	"github.com/Nexora-Open-Source/feed-queue/types"
	"github.com/Nexora-Open-Source/feed-queue/utils"
	"github.com/Nexora-Open-Source/feed-queue/web"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// HandleIndex renders the submission form
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, web.IndexPage, web.IndexData{Feeds: h.Feeds})
}

/*
HandleQueue enqueues a feed fetch for the form field "url" and redirects to
its poll page.

Response:
  - 302 Found: Location /feed/{id}.
  - 400 Bad Request: url missing or blank.
  - 503 Service Unavailable: the broker refused the job.
*/
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	requestID := utils.RequestID(r)

	feedURL := strings.TrimSpace(r.PostFormValue("url"))
	if feedURL == "" {
		middleware.RespondBadRequest(w, fmt.Errorf("form field url is required"), requestID)
		return
	}

	jobID, err := h.Queue.Submit(r.Context(), tasks.GetFeedTask, tasks.FeedArgs{URL: feedURL})
	if err != nil {
		h.respondSubmitError(w, err, requestID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"job_id":     jobID,
		"url":        feedURL,
	}).Info("Feed job queued")

	http.Redirect(w, r, "/feed/"+jobID, http.StatusFound)
}

/*
HandleShowFeed answers one poll for job {id}.

Response:
  - 200 OK: the feed page when the job is ready, the raw trace as text/plain
    when it failed, the processing page otherwise.
  - 404 Not Found: unknown or expired job id.
*/
func (h *Handler) HandleShowFeed(w http.ResponseWriter, r *http.Request) {
	requestID := utils.RequestID(r)
	jobID := mux.Vars(r)["id"]

	rec, ok := h.lookup(w, r, jobID, requestID)
	if !ok {
		return
	}

	switch {
	case rec.Ready():
		h.render(w, r, web.FeedPage, feedData(rec))
	case rec.Failed():
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(rec.Trace))
	default:
		w.Header().Set("Cache-Control", "no-store")
		h.render(w, r, web.ProcessingPage, web.ProcessingData{
			JobID:          jobID,
			RefreshSeconds: int(h.RefreshInterval.Seconds()),
		})
	}
}

func feedData(rec *types.JobRecord) web.FeedData {
	data := web.FeedData{JobID: rec.JobID}
	if rec.Task == tasks.GetFeedTask {
		var result feed.Result
		if err := json.Unmarshal(rec.Result, &result); err == nil {
			data.Result = &result
			return data
		}
	}
	data.Raw = string(rec.Result)
	return data
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, jobID, requestID string) (*types.JobRecord, bool) {
	rec, err := h.Queue.Lookup(r.Context(), jobID)
	switch {
	case err == nil:
		return rec, true
	case errors.Is(err, queue.ErrJobNotFound):
		middleware.RespondNotFound(w, fmt.Errorf("job %s not found", jobID), requestID)
	default:
		h.Logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"job_id":     jobID,
			"error":      err.Error(),
		}).Error("Job lookup failed")
		middleware.RespondServiceUnavailable(w, fmt.Errorf("result backend unavailable"), requestID)
	}
	return nil, false
}

func (h *Handler) respondSubmitError(w http.ResponseWriter, err error, requestID string) {
	if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrBrokerClosed) {
		middleware.RespondServiceUnavailable(w, err, requestID)
		return
	}
	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"error":      err.Error(),
	}).Error("Job submission failed")
	middleware.RespondInternalError(w, fmt.Errorf("could not queue job"), requestID)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page string, data any) {
	if err := h.Pages.Render(w, page, data); err != nil {
		requestID := utils.RequestID(r)
		h.Logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"page":       page,
			"error":      err.Error(),
		}).Error("Failed to render page")
		middleware.RespondInternalError(w, fmt.Errorf("could not render page"), requestID)
	}
}
