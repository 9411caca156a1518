package bookmarks

import (
	"strings"

	"golang.org/x/net/html"
)

// HeadingOccurrence is a heading's text content and the offset where that
// text starts in the scanned string.
type HeadingOccurrence struct {
	Position int
	Text     string
}

// BlockRange is a half-open [Start, End) byte range of a matched tag pair.
type BlockRange struct {
	Start int
	End   int
}

// blockCounter tracks net open/close balance of a single tag. It resolves the
// first time at least one open has been seen and every open is closed.
type blockCounter struct {
	opens  int
	closes int
	start  int
	end    int
}

func (b *blockCounter) open(offset int) {
	if b.opens == 0 {
		b.start = offset
	}

	b.opens++
}

// close ignores closing tokens that precede the first open, such as the end of
// an enclosing block the heading itself sits in.
func (b *blockCounter) close(end int) {
	if b.opens == 0 {
		return
	}

	b.closes++
	b.end = end
}

func (b *blockCounter) balanced() bool {
	return b.opens >= 1 && b.opens == b.closes
}

func (b *blockCounter) blockRange() BlockRange {
	return BlockRange{Start: b.start, End: b.end}
}

// ResolveBlockAfterHeading finds the first heading whose text equals
// headingText (case-insensitive, edges trimmed) and returns the range of the
// first balanced tag block that follows it. Every heading closed during the
// walk, the target heading included, is returned in document order.
func ResolveBlockAfterHeading(haystack, headingText, tag string) (BlockRange, []HeadingOccurrence, error) {
	want := strings.TrimSpace(headingText)

	from, ok := findHeading(haystack, want)
	if !ok {
		return BlockRange{}, nil, &HeadingNotFoundError{HeadingText: headingText}
	}

	openToken := "<" + strings.ToLower(tag)
	closeToken := "</" + strings.ToLower(tag) + ">"

	counter := &blockCounter{}
	headings := make([]HeadingOccurrence, 0)

	for i := from; i < len(haystack); {
		next := strings.IndexByte(haystack[i:], '<')
		if next < 0 {
			break
		}

		i += next

		switch {
		case hasTokenPrefix(haystack[i:], openToken):
			counter.open(i)
			i += len(openToken)
		case hasPrefixFold(haystack[i:], closeToken):
			counter.close(i + len(closeToken))
			i += len(closeToken)

			if counter.balanced() {
				return counter.blockRange(), headings, nil
			}
		case isHeadingClose(haystack[i:]):
			headings = append(headings, headingBefore(haystack, i))
			i += len("</h1>")
		default:
			i++
		}
	}

	return BlockRange{}, headings, &UnterminatedBlockError{Tag: tag}
}

// findHeading returns the offset of the closing heading token whose text
// content matches want.
func findHeading(haystack, want string) (int, bool) {
	for i := 0; i < len(haystack); {
		next := strings.IndexByte(haystack[i:], '<')
		if next < 0 {
			return 0, false
		}

		i += next

		if isHeadingClose(haystack[i:]) {
			if strings.EqualFold(headingBefore(haystack, i).Text, want) {
				return i, true
			}

			i += len("</h1>")

			continue
		}

		i++
	}

	return 0, false
}

// headingBefore back-computes the text content of the heading whose closing
// token starts at closeAt: everything between the previous '>' and closeAt.
func headingBefore(haystack string, closeAt int) HeadingOccurrence {
	textStart := strings.LastIndexByte(haystack[:closeAt], '>') + 1

	return HeadingOccurrence{
		Position: textStart,
		Text:     strings.TrimSpace(html.UnescapeString(haystack[textStart:closeAt])),
	}
}

// isHeadingClose reports whether s starts with one of </h1> .. </h6>.
func isHeadingClose(s string) bool {
	if len(s) < 5 {
		return false
	}

	return s[0] == '<' && s[1] == '/' &&
		(s[2] == 'h' || s[2] == 'H') &&
		s[3] >= '1' && s[3] <= '6' &&
		s[4] == '>'
}

// hasTokenPrefix matches an opening tag token such as "<dl", requiring the
// tag name to end there so "<dlx" is not counted.
func hasTokenPrefix(s, token string) bool {
	if !hasPrefixFold(s, token) {
		return false
	}

	if len(s) == len(token) {
		return false
	}

	switch s[len(token)] {
	case '>', ' ', '\t', '\n', '\r', '\f', '/':
		return true
	}

	return false
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
