package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/dselans/blastbeat-albums/bookmarks"
	"github.com/dselans/blastbeat-albums/events"
)

const (
	MinPublishedYear = 1000
	MaxPublishedYear = 9999
)

func Event(event *events.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	if event.ID == "" {
		return errors.New("event id cannot be empty")
	}

	if event.DataContentType == "" {
		return errors.New("event data content type cannot be empty")
	}

	if event.Source == "" {
		return errors.New("event source cannot be empty")
	}

	if event.Type == "" {
		return errors.New("event type cannot be empty")
	}

	if event.Time.IsZero() {
		return errors.New("event time cannot be zero")
	}

	if event.SpecVersion == "" {
		return errors.New("event spec version cannot be empty")
	}

	return nil
}

// ImportRequest validates the inputs of a bookmarks import before any work
// is done.
func ImportRequest(folder string, data []byte) error {
	if strings.TrimSpace(folder) == "" {
		return errors.New("folder cannot be empty")
	}

	if len(data) == 0 {
		return errors.New("bookmarks file cannot be empty")
	}

	return nil
}

// Album enforces the rules an album must satisfy before it is stored.
func Album(album *bookmarks.Album) error {
	if album == nil {
		return errors.New("album cannot be nil")
	}

	if utf8.RuneCountInString(album.VideoID) != bookmarks.VideoIDLength {
		return fmt.Errorf("album video id must be %d characters", bookmarks.VideoIDLength)
	}

	if album.Artist == "" {
		return errors.New("album artist cannot be empty")
	}

	if album.Title == "" {
		return errors.New("album title cannot be empty")
	}

	if album.Category == "" {
		return errors.New("album category cannot be empty")
	}

	if album.Published < MinPublishedYear || album.Published > MaxPublishedYear {
		return fmt.Errorf("album published year must be between %d and %d", MinPublishedYear, MaxPublishedYear)
	}

	if album.AddDate.IsZero() {
		return errors.New("album add date cannot be zero")
	}

	return nil
}
