package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Nexora-Open-Source/feed-queue/web"
)

// DefaultFeeds are the sample feeds offered on the index page
func DefaultFeeds() []web.FeedSource {
	return []web.FeedSource{
		{Name: "BBC News", URL: "http://feeds.bbci.co.uk/news/rss.xml"},
		{Name: "TechCrunch", URL: "https://techcrunch.com/feed/"},
		{Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml"},
		{Name: "Go Blog", URL: "https://go.dev/blog/feed.atom"},
	}
}

// HandleGetFeeds lists the sample feed sources
//
// @Summary List sample feeds
// @Description Returns the feed sources offered on the index page.
// @Tags Feeds
// @Produce json
// @Success 200 {array} web.FeedSource
// @Router /api/feeds [get]
func (h *Handler) HandleGetFeeds(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Feeds)
}
