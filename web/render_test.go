package web

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

func TestRenderIndex(t *testing.T) {
	w := httptest.NewRecorder()

	err := newRenderer(t).Render(w, IndexPage, IndexData{Feeds: []FeedSource{{Name: "BBC News", URL: "http://feeds.bbci.co.uk/news/rss.xml"}}})

	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, `action="/queue"`)
	assert.Contains(t, body, `name="url"`)
	assert.Contains(t, body, "BBC News")
}

func TestRenderProcessingRefresh(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, newRenderer(t).Render(w, ProcessingPage, ProcessingData{JobID: "abc", RefreshSeconds: 3}))

	assert.Contains(t, w.Body.String(), `<meta http-equiv="refresh" content="3">`)
	assert.Contains(t, w.Body.String(), "abc")
}

func TestRenderFeedDocument(t *testing.T) {
	published := time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC)
	result := &feed.Result{Feed: &feed.Document{
		Title: "Example <Feed>",
		Link:  "http://example.com/",
		Entries: []feed.Entry{
			{Title: "First", Link: "http://example.com/1", Published: &published},
			{Title: "Second"},
		},
	}}
	w := httptest.NewRecorder()

	require.NoError(t, newRenderer(t).Render(w, FeedPage, FeedData{JobID: "abc", Result: result}))

	body := w.Body.String()
	assert.Contains(t, body, "Example &lt;Feed&gt;")
	assert.Contains(t, body, `<a href="http://example.com/1">First</a>`)
	assert.Contains(t, body, "Jan 2, 2024 15:04 UTC")
	assert.Less(t, strings.Index(body, "First"), strings.Index(body, "Second"))
}

func TestRenderFeedError(t *testing.T) {
	result := &feed.Result{Bozo: true, Error: &feed.ErrorDescriptor{Message: "unexpected EOF", Line: 4}}
	w := httptest.NewRecorder()

	require.NoError(t, newRenderer(t).Render(w, FeedPage, FeedData{Result: result}))

	assert.Contains(t, w.Body.String(), "unexpected EOF (line 4)")
}

func TestRenderRawResult(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, newRenderer(t).Render(w, FeedPage, FeedData{Raw: "[0,1,1,2]"}))

	assert.Contains(t, w.Body.String(), "<pre>[0,1,1,2]</pre>")
}

func TestRenderUnknownTemplate(t *testing.T) {
	w := httptest.NewRecorder()

	err := newRenderer(t).Render(w, "missing.html", nil)

	assert.Error(t, err)
	assert.Empty(t, w.Body.String())
}
