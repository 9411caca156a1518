package bookmarks

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// FolderTag is the block tag that holds a folder's contents in a Netscape
// bookmarks export.
const FolderTag = "dl"

// ExtractFolderLinks returns every link under the folder named folderName,
// nested folders included. Each link is tagged with its nearest enclosing
// folder.
//
// Links are keyed by their display text: folders are visited in document
// order and a nested folder's pass overwrites whatever its ancestors recorded
// for the same text. Two different bookmarks sharing the same text therefore
// collapse into one, the later-visited one winning. Order of the result is
// order of first appearance.
func ExtractFolderLinks(doc, folderName string) ([]FolderLink, error) {
	if strings.TrimSpace(folderName) == "" {
		return nil, &HeadingNotFoundError{HeadingText: folderName}
	}

	_, headings, err := ResolveBlockAfterHeading(doc, folderName, FolderTag)
	if err != nil {
		return nil, err
	}

	links := newLinkSet()

	for _, h := range headings {
		// A heading without text can't name a category; its links stay with
		// the enclosing folder.
		if h.Text == "" {
			continue
		}

		sub := doc[h.Position:]

		block, _, err := ResolveBlockAfterHeading(sub, h.Text, FolderTag)
		if err != nil {
			return nil, err
		}

		raw, err := anchors(sub[block.Start:block.End])
		if err != nil {
			return nil, err
		}

		for _, r := range raw {
			links.put(FolderLink{RawLink: r, Folder: h.Text})
		}
	}

	return links.values(), nil
}

func anchors(fragment string) ([]RawLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse folder block")
	}

	links := make([]RawLink, 0)

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		link := RawLink{Text: s.Text()}

		if href, ok := s.Attr("href"); ok {
			link.Href = &href
		}

		if addDate, ok := s.Attr("add_date"); ok {
			link.AddDate = &addDate
		}

		links = append(links, link)
	})

	return links, nil
}

// linkSet is an insertion-ordered map of links keyed by display text.
type linkSet struct {
	order []string
	links map[string]FolderLink
}

func newLinkSet() *linkSet {
	return &linkSet{
		order: make([]string, 0),
		links: make(map[string]FolderLink),
	}
}

func (s *linkSet) put(link FolderLink) {
	if _, ok := s.links[link.Text]; !ok {
		s.order = append(s.order, link.Text)
	}

	s.links[link.Text] = link
}

func (s *linkSet) values() []FolderLink {
	out := make([]FolderLink, 0, len(s.order))

	for _, key := range s.order {
		out = append(out, s.links[key])
	}

	return out
}
