/*
Package handlers provides the HTTP handlers of the feed queue.

The HTML front end (form, submit, poll) and the JSON API share one Handler
whose dependencies are injected as interfaces, so tests can swap in mocks.
*/
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/types"
	"github.com/Nexora-Open-Source/feed-queue/web"
	"github.com/sirupsen/logrus"
)

// JobQueue submits jobs and reads their records
type JobQueue interface {
	Submit(ctx context.Context, task string, args any) (string, error)
	Lookup(ctx context.Context, id string) (*types.JobRecord, error)
}

// TaskCatalog tells which task names a worker can run
type TaskCatalog interface {
	Has(name string) bool
}

// PageRenderer writes HTML pages
type PageRenderer interface {
	Render(w http.ResponseWriter, name string, data any) error
}

// Handler contains all service dependencies for HTTP handlers
type Handler struct {
	Queue           JobQueue
	Tasks           TaskCatalog
	Pages           PageRenderer
	Logger          *logrus.Logger
	Feeds           []web.FeedSource
	RefreshInterval time.Duration
}

// NewHandler creates a new handler instance with injected dependencies
func NewHandler(queue JobQueue, catalog TaskCatalog, pages PageRenderer, logger *logrus.Logger, refresh time.Duration) *Handler {
	return &Handler{
		Queue:           queue,
		Tasks:           catalog,
		Pages:           pages,
		Logger:          logger,
		Feeds:           DefaultFeeds(),
		RefreshInterval: refresh,
	}
}
