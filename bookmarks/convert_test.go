package bookmarks

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Convert", func() {
	It("converts every link of a folder tree into albums", func() {
		albums, err := Convert([]byte(fixture()), "Metal")
		Expect(err).ToNot(HaveOccurred())
		Expect(albums).To(HaveLen(4))

		Expect(albums[0]).To(Equal(&Album{
			VideoID:   "IdRn9IYWuaQ",
			Artist:    "Annihilator",
			Title:     "Alice In Hell",
			Published: 1989,
			Category:  "Metal",
			AddDate:   time.Unix(1711022745, 0).UTC(),
		}))

		categories := make([]string, 0, len(albums))
		for _, a := range albums {
			categories = append(categories, a.Category)
		}

		Expect(categories).To(Equal([]string{"Metal", "Thrash", "Crossover", "Metal"}))
	})

	It("fails the whole batch on the first malformed link", func() {
		albums, err := Convert([]byte(fixture()), "Bookmarks bar")
		Expect(albums).To(BeNil())

		lve, ok := err.(*LinkValidationError)
		Expect(ok).To(BeTrue())
		Expect(lve.Link.Folder).To(Equal("Broken"))
	})

	It("surfaces extraction errors unchanged", func() {
		_, err := Convert([]byte(fixture()), "NoSuchFolder")

		var target *HeadingNotFoundError
		Expect(err).To(BeAssignableToTypeOf(target))
	})
})
