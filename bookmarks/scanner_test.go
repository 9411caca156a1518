package bookmarks

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Scanner", func() {
	Context("blockCounter", func() {
		It("resolves on the first balanced close", func() {
			b := &blockCounter{}

			b.open(5)
			b.open(9)
			b.close(20)
			Expect(b.balanced()).To(BeFalse())

			b.close(30)
			Expect(b.balanced()).To(BeTrue())
			Expect(b.blockRange()).To(Equal(BlockRange{Start: 5, End: 30}))
		})

		It("is never balanced before an open", func() {
			b := &blockCounter{}
			Expect(b.balanced()).To(BeFalse())
		})

		It("ignores closes seen before the first open", func() {
			b := &blockCounter{}

			b.close(3)
			b.open(10)
			Expect(b.balanced()).To(BeFalse())

			b.close(20)
			Expect(b.balanced()).To(BeTrue())
			Expect(b.blockRange()).To(Equal(BlockRange{Start: 10, End: 20}))
		})
	})

	Context("ResolveBlockAfterHeading", func() {
		It("spans nested same-tag blocks", func() {
			s := "<h3>A</h3><dl><dl></dl></dl>tail"

			r, headings, err := ResolveBlockAfterHeading(s, "A", "dl")
			Expect(err).ToNot(HaveOccurred())
			Expect(r).To(Equal(BlockRange{Start: 10, End: len(s) - len("tail")}))
			Expect(headings).To(Equal([]HeadingOccurrence{{Position: 4, Text: "A"}}))
		})

		It("matches headings case-insensitively with surrounding whitespace", func() {
			s := "<H3 ADD_DATE=\"1\">  Thrash \n</H3><DL><p></DL>"

			r, headings, err := ResolveBlockAfterHeading(s, " thrash", "dl")
			Expect(err).ToNot(HaveOccurred())
			Expect(s[r.Start:r.End]).To(Equal("<DL><p></DL>"))
			Expect(headings).To(HaveLen(1))
			Expect(headings[0].Text).To(Equal("Thrash"))
		})

		It("records headings between the target heading and its block", func() {
			s := "<h3>A</h3><h4>B</h4><dl><p><a>x</a></dl>"

			r, headings, err := ResolveBlockAfterHeading(s, "A", "dl")
			Expect(err).ToNot(HaveOccurred())
			Expect(s[r.Start:r.End]).To(Equal("<dl><p><a>x</a></dl>"))
			Expect(headings).To(Equal([]HeadingOccurrence{
				{Position: 4, Text: "A"},
				{Position: 14, Text: "B"},
			}))
		})

		It("ignores tags that only share a prefix with the block tag", func() {
			s := "<h3>A</h3><dlx></dlx><dl></dl>"

			r, _, err := ResolveBlockAfterHeading(s, "A", "dl")
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Start).To(Equal(21))
			Expect(s[r.Start:r.End]).To(Equal("<dl></dl>"))
		})

		It("returns a balanced range for the fixture's folders", func() {
			doc := fixture()

			for _, name := range []string{"Bookmarks", "Bookmarks bar", "Metal", "Thrash", "Crossover", "Jazz"} {
				r, _, err := ResolveBlockAfterHeading(doc, name, "dl")
				Expect(err).ToNot(HaveOccurred())
				Expect(r.Start).To(BeNumerically("<", r.End))

				block := strings.ToLower(doc[r.Start:r.End])
				opens := strings.Count(block, "<dl>")
				Expect(opens).To(BeNumerically(">=", 1))
				Expect(strings.Count(block, "</dl>")).To(Equal(opens))
			}
		})

		It("returns HeadingNotFoundError for unknown headings", func() {
			_, _, err := ResolveBlockAfterHeading("<h3>A</h3><dl></dl>", "B", "dl")
			Expect(err).To(HaveOccurred())

			var target *HeadingNotFoundError
			Expect(err).To(BeAssignableToTypeOf(target))
			Expect(err.(*HeadingNotFoundError).HeadingText).To(Equal("B"))
		})

		It("skips the close of an enclosing block before the heading's own block", func() {
			s := "<dl><h3>A</h3></dl><h3>B</h3><dl><dt>x</dt></dl>tail"

			r, _, err := ResolveBlockAfterHeading(s, "A", "dl")
			Expect(err).ToNot(HaveOccurred())
			Expect(r).To(Equal(BlockRange{
				Start: strings.Index(s, "<dl><dt>"),
				End:   len(s) - len("tail"),
			}))
		})

		It("returns UnterminatedBlockError when the block never closes", func() {
			_, _, err := ResolveBlockAfterHeading("<h3>A</h3><dl><dl></dl>", "A", "dl")
			Expect(err).To(HaveOccurred())

			var target *UnterminatedBlockError
			Expect(err).To(BeAssignableToTypeOf(target))
			Expect(err.Error()).To(Equal("unterminated <dl> block"))
		})

		It("returns UnterminatedBlockError when no block follows the heading", func() {
			_, _, err := ResolveBlockAfterHeading("<h3>A</h3><p>nothing here</p>", "A", "dl")

			var target *UnterminatedBlockError
			Expect(err).To(BeAssignableToTypeOf(target))
		})
	})
})
