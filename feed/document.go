package feed

import (
	"time"

	"github.com/mmcdole/gofeed"
)

// Document is a parsed feed: channel metadata plus its entries in source order
type Document struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Link        string     `json:"link,omitempty"`
	FeedLink    string     `json:"feed_link,omitempty"`
	Language    string     `json:"language,omitempty"`
	Copyright   string     `json:"copyright,omitempty"`
	Generator   string     `json:"generator,omitempty"`
	Author      string     `json:"author,omitempty"`
	Updated     *time.Time `json:"updated,omitempty"`
	Published   *time.Time `json:"published,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	Image       *Image     `json:"image,omitempty"`
	FeedType    string     `json:"feed_type"`
	FeedVersion string     `json:"feed_version,omitempty"`
	Entries     []Entry    `json:"entries"`
}

// Entry is one item (RSS) or entry (Atom)
type Entry struct {
	Title       string      `json:"title"`
	Link        string      `json:"link,omitempty"`
	Description string      `json:"description,omitempty"`
	Content     string      `json:"content,omitempty"`
	Author      string      `json:"author,omitempty"`
	GUID        string      `json:"guid,omitempty"`
	Published   *time.Time  `json:"published,omitempty"`
	Updated     *time.Time  `json:"updated,omitempty"`
	Categories  []string    `json:"categories,omitempty"`
	Enclosures  []Enclosure `json:"enclosures,omitempty"`
}

// Image is the channel logo
type Image struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Enclosure is an attached media object
type Enclosure struct {
	URL    string `json:"url"`
	Type   string `json:"type,omitempty"`
	Length string `json:"length,omitempty"`
}

func newDocument(f *gofeed.Feed) *Document {
	doc := &Document{
		Title:       f.Title,
		Description: f.Description,
		Link:        f.Link,
		FeedLink:    f.FeedLink,
		Language:    f.Language,
		Copyright:   f.Copyright,
		Generator:   f.Generator,
		Author:      personName(f.Author),
		Updated:     f.UpdatedParsed,
		Published:   f.PublishedParsed,
		Categories:  f.Categories,
		FeedType:    f.FeedType,
		FeedVersion: f.FeedVersion,
		Entries:     make([]Entry, 0, len(f.Items)),
	}
	if f.Image != nil {
		doc.Image = &Image{URL: f.Image.URL, Title: f.Image.Title}
	}

	for _, item := range f.Items {
		entry := Entry{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Content:     item.Content,
			Author:      personName(item.Author),
			GUID:        item.GUID,
			Published:   item.PublishedParsed,
			Updated:     item.UpdatedParsed,
			Categories:  item.Categories,
		}
		for _, enc := range item.Enclosures {
			entry.Enclosures = append(entry.Enclosures, Enclosure{URL: enc.URL, Type: enc.Type, Length: enc.Length})
		}
		doc.Entries = append(doc.Entries, entry)
	}

	return doc
}

func personName(p *gofeed.Person) string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}
