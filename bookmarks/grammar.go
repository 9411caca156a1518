package bookmarks

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// YoutubeWatchPrefix is the only href form accepted for an album link.
	YoutubeWatchPrefix = "https://www.youtube.com/watch?v="

	// VideoIDLength is the number of characters (runes) taken from the href
	// after YoutubeWatchPrefix.
	VideoIDLength = 11

	// ArtistSeparator splits link text into artist and "Title (Year)".
	ArtistSeparator = " - "
)

var (
	titleYearRegex = regexp.MustCompile(`^(.+) \((\d{4})\)$`)
	yearOnlyRegex  = regexp.MustCompile(`^\s*\(\d{4}\)$`)
)

// ParseLink turns a single link into an Album. Rules are applied in order
// (href, add_date, text) and the first failing rule determines the error.
func ParseLink(link FolderLink) (*Album, error) {
	videoID, reason := parseVideoID(link.Href)
	if reason != "" {
		return nil, &LinkValidationError{Link: link, Reason: reason}
	}

	addDate, reason := parseAddDate(link.AddDate)
	if reason != "" {
		return nil, &LinkValidationError{Link: link, Reason: reason}
	}

	parts := strings.Split(strings.TrimSpace(link.Text), ArtistSeparator)
	if len(parts) != 2 {
		return nil, &LinkValidationError{
			Link:   link,
			Reason: "text must contain exactly one '" + ArtistSeparator + "' separator between artist and title",
		}
	}

	matches := titleYearRegex.FindStringSubmatch(parts[1])
	if yearOnlyRegex.MatchString(parts[1]) || (matches != nil && strings.TrimSpace(matches[1]) == "") {
		return nil, &LinkValidationError{Link: link, Reason: "title cannot be empty"}
	}

	if matches == nil {
		return nil, &LinkValidationError{
			Link:   link,
			Reason: "title must end with a four digit year in parentheses, e.g. 'Title (1989)'",
		}
	}

	published, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, &LinkValidationError{Link: link, Reason: "unable to parse year: " + err.Error()}
	}

	return &Album{
		VideoID:   videoID,
		Artist:    parts[0],
		Title:     matches[1],
		Published: published,
		Category:  strings.TrimSpace(link.Folder),
		AddDate:   addDate,
	}, nil
}

func parseVideoID(href *string) (string, string) {
	if href == nil {
		return "", "missing href"
	}

	if !strings.HasPrefix(*href, YoutubeWatchPrefix) {
		return "", "href must start with '" + YoutubeWatchPrefix + "'"
	}

	id := strings.TrimPrefix(*href, YoutubeWatchPrefix)
	if utf8.RuneCountInString(id) < VideoIDLength {
		return "", "href must contain an " + strconv.Itoa(VideoIDLength) + " character video id"
	}

	return string([]rune(id)[:VideoIDLength]), ""
}

func parseAddDate(addDate *string) (time.Time, string) {
	if addDate == nil {
		return time.Time{}, "missing add_date"
	}

	secs, err := strconv.ParseInt(*addDate, 10, 64)
	if err != nil {
		return time.Time{}, "add_date must be an integer unix timestamp"
	}

	return time.Unix(secs, 0).UTC(), ""
}
