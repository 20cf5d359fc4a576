/*
Package feed fetches RSS/Atom documents and classifies how cleanly they parsed.

A parse produces a Result holding either the structured Document or an error
descriptor with the decoder's message and line. Deviations are tagged with a
Category; Category.Tolerated decides whether the document is still returned.

Usage:

	fetcher := feed.NewFetcher(nil, "feed-queue/1.0", 10<<20, logger)
	result, err := fetcher.Fetch(ctx, "https://example.com/rss.xml")
*/
package feed

import "fmt"

// Category tags a deviation from strict feed/XML rules
type Category string

const (
	CategoryNonXMLContentType         Category = "non-xml-content-type"
	CategoryCharacterEncodingUnknown  Category = "character-encoding-unknown"
	CategoryCharacterEncodingOverride Category = "character-encoding-override"
	CategoryXMLSyntax                 Category = "xml-syntax"
	CategoryUndecodableContent        Category = "undecodable-content"
	CategoryUndetectedFeedType        Category = "undetected-feed-type"
	CategoryMalformedFeed             Category = "malformed-feed"
)

// Tolerated reports whether a document flagged with this category is still usable
func (c Category) Tolerated() bool {
	switch c {
	case CategoryNonXMLContentType, CategoryCharacterEncodingUnknown, CategoryCharacterEncodingOverride:
		return true
	default:
		return false
	}
}

// ParseError is one flagged deviation
type ParseError struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Line     int      `json:"line,omitempty"`
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Category, e.Message, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// ErrorDescriptor is the payload stored instead of a document when parsing fails fatally
type ErrorDescriptor struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
}

// Result is the outcome of fetching one feed. Exactly one of Feed and Error is set.
type Result struct {
	Bozo      bool             `json:"bozo"`
	Deviation *ParseError      `json:"bozo_exception,omitempty"`
	Feed      *Document        `json:"feed,omitempty"`
	Error     *ErrorDescriptor `json:"error,omitempty"`
}

// Failed reports whether the result carries an error descriptor
func (r *Result) Failed() bool {
	return r.Error != nil
}

// classify folds the deviations collected during a parse into a Result.
// The first fatal deviation wins; otherwise the document is returned as parsed.
func classify(doc *Document, deviations []*ParseError) *Result {
	var tolerated *ParseError
	for _, dev := range deviations {
		if !dev.Category.Tolerated() {
			return &Result{
				Bozo:  true,
				Error: &ErrorDescriptor{Message: dev.Message, Line: dev.Line},
			}
		}
		if tolerated == nil {
			tolerated = dev
		}
	}

	return &Result{
		Bozo:      tolerated != nil,
		Deviation: tolerated,
		Feed:      doc,
	}
}

// HTTPError is returned when the feed server answers with a non-2xx status
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %s", e.Status)
}
