// Package bookmarks converts a Netscape-style bookmarks export into album
// records.
//
// Conversion happens in two stages. The extractor locates a folder by its
// heading text, walks the folder's <DL> block (nested folders included) and
// tags every link with its nearest enclosing folder. The grammar parser then
// turns each link into an Album, rejecting anything that doesn't look like
//
//	<A HREF="https://www.youtube.com/watch?v=XXXXXXXXXXX" ADD_DATE="1711022745">Artist - Title (1989)</A>
//
// Any failure aborts the whole conversion.
package bookmarks

import (
	"time"
)

// RawLink is an anchor exactly as it was found in the document. Href and
// AddDate are nil when the attribute is missing.
type RawLink struct {
	Text    string
	Href    *string
	AddDate *string
}

// FolderLink is a RawLink tagged with the name of its nearest enclosing
// folder.
type FolderLink struct {
	RawLink
	Folder string
}

// HrefOrEmpty returns the link href, or "" when the anchor had none.
func (l FolderLink) HrefOrEmpty() string {
	if l.Href == nil {
		return ""
	}

	return *l.Href
}

// Album is a validated bookmark.
type Album struct {
	VideoID   string    `json:"videoId"`
	Artist    string    `json:"artist"`
	Title     string    `json:"title"`
	Published int       `json:"published"`
	Category  string    `json:"category"`
	AddDate   time.Time `json:"addDate"`
}
