package bookmarks

import (
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

func newLink(text string, href, addDate *string) FolderLink {
	return FolderLink{
		RawLink: RawLink{Text: text, Href: href, AddDate: addDate},
		Folder:  " Thrash ",
	}
}

var _ = Describe("ParseLink", func() {
	It("parses a well formed link", func() {
		album, err := ParseLink(newLink(
			"Annihilator - Alice In Hell (1989)",
			strPtr("https://www.youtube.com/watch?v=IdRn9IYWuaQ"),
			strPtr("1711022745"),
		))
		Expect(err).ToNot(HaveOccurred())

		Expect(album).To(Equal(&Album{
			VideoID:   "IdRn9IYWuaQ",
			Artist:    "Annihilator",
			Title:     "Alice In Hell",
			Published: 1989,
			Category:  "Thrash",
			AddDate:   time.Unix(1711022745, 0).UTC(),
		}))
	})

	It("ignores trailing characters after the video id", func() {
		album, err := ParseLink(newLink(
			"Kreator - Pleasure To Kill (1986)",
			strPtr("https://www.youtube.com/watch?v=aaaaaaaaaaa&list=PL0123"),
			strPtr("1"),
		))
		Expect(err).ToNot(HaveOccurred())
		Expect(album.VideoID).To(Equal("aaaaaaaaaaa"))
	})

	It("trims surrounding whitespace of the text", func() {
		album, err := ParseLink(newLink(
			"  Death - Leprosy (1988)\n",
			strPtr("https://www.youtube.com/watch?v=ccccccccccc"),
			strPtr("1"),
		))
		Expect(err).ToNot(HaveOccurred())
		Expect(album.Artist).To(Equal("Death"))
		Expect(album.Title).To(Equal("Leprosy"))
	})

	table.DescribeTable("round trips artist, title, year and video id",
		func(artist, title string, year int, videoID string) {
			album, err := ParseLink(newLink(
				fmt.Sprintf("%s - %s (%d)", artist, title, year),
				strPtr(YoutubeWatchPrefix+videoID),
				strPtr("1711022745"),
			))
			Expect(err).ToNot(HaveOccurred())
			Expect(album.Artist).To(Equal(artist))
			Expect(album.Title).To(Equal(title))
			Expect(album.Published).To(Equal(year))
			Expect(album.VideoID).To(Equal(videoID))
		},
		table.Entry("lower bound year", "Bach", "Mass In B Minor", 1000, "AbCdEfGhI_-"),
		table.Entry("upper bound year", "Future Band", "Far Out", 9999, "00000000000"),
		table.Entry("parentheses in title", "Slayer", "Live Undead (EP)", 1984, "x1x2x3x4x5x"),
		table.Entry("hyphen without spaces", "Black-Sabbath", "Master-Of-Reality", 1971, "zzzzzzzzzzz"),
	)

	table.DescribeTable("rejects malformed links",
		func(text string, href, addDate *string, reason string) {
			link := newLink(text, href, addDate)

			album, err := ParseLink(link)
			Expect(album).To(BeNil())
			Expect(err).To(HaveOccurred())

			lve, ok := err.(*LinkValidationError)
			Expect(ok).To(BeTrue())
			Expect(lve.Link).To(Equal(link))
			Expect(lve.Reason).To(ContainSubstring(reason))
		},
		table.Entry("missing href",
			"A - B (1999)", nil, strPtr("1"), "missing href"),
		table.Entry("wrong host",
			"A - B (1999)", strPtr("https://youtube.com/watch?v=IdRn9IYWuaQ"), strPtr("1"), "must start with"),
		table.Entry("short video id",
			"A - B (1999)", strPtr("https://www.youtube.com/watch?v=IdRn9IY"), strPtr("1"), "11 character video id"),
		table.Entry("short multibyte video id",
			"A - B (1999)", strPtr(YoutubeWatchPrefix+"ééééééé"), strPtr("1"), "11 character video id"),
		table.Entry("missing add_date",
			"A - B (1999)", strPtr(YoutubeWatchPrefix+"IdRn9IYWuaQ"), nil, "missing add_date"),
		table.Entry("non numeric add_date",
			"A - B (1999)", strPtr(YoutubeWatchPrefix+"IdRn9IYWuaQ"), strPtr("yesterday"), "integer unix timestamp"),
		table.Entry("no separator",
			"A B (1999)", strPtr(YoutubeWatchPrefix+"IdRn9IYWuaQ"), strPtr("1"), "exactly one"),
		table.Entry("two separators",
			"A - B - C (1999)", strPtr(YoutubeWatchPrefix+"IdRn9IYWuaQ"), strPtr("1"), "exactly one"),
		table.Entry("no year",
			"A - B", strPtr(YoutubeWatchPrefix+"IdRn9IYWuaQ"), strPtr("1"), "four digit year"),
		table.Entry("year without parentheses",
			"A - B 1999", strPtr(YoutubeWatchPrefix+"IdRn9IYWuaQ"), strPtr("1"), "four digit year"),
		table.Entry("three digit year",
			"A - B (999)", strPtr(YoutubeWatchPrefix+"IdRn9IYWuaQ"), strPtr("1"), "four digit year"),
		table.Entry("five digit year",
			"A - B (19999)", strPtr(YoutubeWatchPrefix+"IdRn9IYWuaQ"), strPtr("1"), "four digit year"),
		table.Entry("trailing content after year",
			"A - B (1999) remastered", strPtr(YoutubeWatchPrefix+"IdRn9IYWuaQ"), strPtr("1"), "four digit year"),
		table.Entry("no space before year",
			"A - B(1999)", strPtr(YoutubeWatchPrefix+"IdRn9IYWuaQ"), strPtr("1"), "four digit year"),
		table.Entry("empty title",
			"A -  (1999)", strPtr(YoutubeWatchPrefix+"IdRn9IYWuaQ"), strPtr("1"), "title cannot be empty"),
		table.Entry("blank title",
			"A -    (1999)", strPtr(YoutubeWatchPrefix+"IdRn9IYWuaQ"), strPtr("1"), "title cannot be empty"),
	)

	It("reads a missing href as empty", func() {
		Expect(newLink("A - B (1999)", nil, nil).HrefOrEmpty()).To(Equal(""))
		Expect(newLink("A - B (1999)", strPtr("x"), nil).HrefOrEmpty()).To(Equal("x"))
	})

	It("takes the video id by characters rather than bytes", func() {
		id := strings.Repeat("é", VideoIDLength)

		album, err := ParseLink(newLink("A - B (1999)", strPtr(YoutubeWatchPrefix+id+"&t=42"), strPtr("1")))
		Expect(err).ToNot(HaveOccurred())
		Expect(album.VideoID).To(Equal(id))
	})

	It("applies the href rule before the text rules", func() {
		_, err := ParseLink(newLink("not an album", nil, nil))
		Expect(err.(*LinkValidationError).Reason).To(Equal("missing href"))
	})

	It("reports the folder, text and href in the error message", func() {
		_, err := ParseLink(FolderLink{
			RawLink: RawLink{
				Text:    "Some Band - Some Album (2001)",
				Href:    strPtr("https://vimeo.com/123456789"),
				AddDate: strPtr("1"),
			},
			Folder: "Broken",
		})

		Expect(err.Error()).To(Equal("link in folder Broken with text 'Some Band - Some Album (2001)' " +
			"and href 'https://vimeo.com/123456789': href must start with '" + YoutubeWatchPrefix + "'"))
	})
})
