package bookmarks

import (
	"fmt"
)

// HeadingNotFoundError is returned when no heading with the requested text
// exists in the scanned document.
type HeadingNotFoundError struct {
	HeadingText string
}

func (e *HeadingNotFoundError) Error() string {
	return fmt.Sprintf("folder heading '%s' not found", e.HeadingText)
}

// UnterminatedBlockError is returned when a block tag is opened after a
// heading but the document ends before it is closed.
type UnterminatedBlockError struct {
	Tag string
}

func (e *UnterminatedBlockError) Error() string {
	return fmt.Sprintf("unterminated <%s> block", e.Tag)
}

// LinkValidationError carries the offending link verbatim along with the rule
// that rejected it.
type LinkValidationError struct {
	Link   FolderLink
	Reason string
}

func (e *LinkValidationError) Error() string {
	return fmt.Sprintf("link in folder %s with text '%s' and href '%s': %s",
		e.Link.Folder, e.Link.Text, e.Link.HrefOrEmpty(), e.Reason)
}
