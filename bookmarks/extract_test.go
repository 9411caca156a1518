package bookmarks

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func textsAndFolders(links []FolderLink) [][2]string {
	out := make([][2]string, 0, len(links))

	for _, l := range links {
		out = append(out, [2]string{l.Text, l.Folder})
	}

	return out
}

var _ = Describe("ExtractFolderLinks", func() {
	var doc string

	BeforeEach(func() {
		doc = fixture()
	})

	It("returns links of the folder and all nested folders with their nearest folder", func() {
		links, err := ExtractFolderLinks(doc, "Metal")
		Expect(err).ToNot(HaveOccurred())

		Expect(textsAndFolders(links)).To(Equal([][2]string{
			{"Annihilator - Alice In Hell (1989)", "Metal"},
			{"Kreator - Pleasure To Kill (1986)", "Thrash"},
			{"Nuclear Assault - Game Over (1986)", "Crossover"},
			{"Death - Leprosy (1988)", "Metal"},
		}))
	})

	It("returns only the nested links when asked for the nested folder", func() {
		links, err := ExtractFolderLinks(doc, "thrash")
		Expect(err).ToNot(HaveOccurred())

		Expect(textsAndFolders(links)).To(Equal([][2]string{
			{"Kreator - Pleasure To Kill (1986)", "Thrash"},
			{"Nuclear Assault - Game Over (1986)", "Crossover"},
		}))
	})

	It("keeps href and add_date verbatim", func() {
		links, err := ExtractFolderLinks(doc, "Jazz")
		Expect(err).ToNot(HaveOccurred())
		Expect(links).To(HaveLen(1))

		Expect(*links[0].Href).To(Equal("https://www.youtube.com/watch?v=ddddddddddd&list=PL0123456789"))
		Expect(*links[0].AddDate).To(Equal("1711022749"))
		Expect(links[0].Folder).To(Equal("Jazz"))
	})

	It("decodes entities in heading text", func() {
		links, err := ExtractFolderLinks(doc, "Rock & Roll")
		Expect(err).ToNot(HaveOccurred())
		Expect(links).To(HaveLen(1))
		Expect(links[0].Folder).To(Equal("Rock & Roll"))
	})

	It("collapses links with identical text, keeping the later one", func() {
		links, err := ExtractFolderLinks(doc, "Doom")
		Expect(err).ToNot(HaveOccurred())
		Expect(links).To(HaveLen(1))
		Expect(*links[0].Href).To(Equal("https://www.youtube.com/watch?v=ggggggggggg"))
		Expect(*links[0].AddDate).To(Equal("1711022752"))
	})

	It("tolerates anchors without href or add_date", func() {
		links, err := ExtractFolderLinks(`<h3>Odd</h3><dl><p><dt><a>Just Text</a></dl>`, "Odd")
		Expect(err).ToNot(HaveOccurred())
		Expect(links).To(HaveLen(1))
		Expect(links[0].Href).To(BeNil())
		Expect(links[0].AddDate).To(BeNil())
		Expect(links[0].Text).To(Equal("Just Text"))
	})

	It("keeps links of an untitled sub-folder in the enclosing folder", func() {
		html := `<h3>Outer</h3><dl><p>` +
			`<dt><h3></h3><dl><p><dt><a href="x">Inner Link</a></dl><p>` +
			`</dl>`

		links, err := ExtractFolderLinks(html, "Outer")
		Expect(err).ToNot(HaveOccurred())
		Expect(textsAndFolders(links)).To(Equal([][2]string{{"Inner Link", "Outer"}}))
	})

	It("fails with HeadingNotFoundError for unknown folders", func() {
		_, err := ExtractFolderLinks(doc, "NoSuchFolder")

		var target *HeadingNotFoundError
		Expect(err).To(BeAssignableToTypeOf(target))
	})

	It("fails with HeadingNotFoundError for a blank folder name", func() {
		_, err := ExtractFolderLinks(doc, "   ")

		var target *HeadingNotFoundError
		Expect(err).To(BeAssignableToTypeOf(target))
	})

	It("fails with UnterminatedBlockError when the folder block never closes", func() {
		_, err := ExtractFolderLinks(`<h3>Open</h3><dl><p><dt><a href="x">y</a>`, "Open")

		var target *UnterminatedBlockError
		Expect(err).To(BeAssignableToTypeOf(target))
	})
})
