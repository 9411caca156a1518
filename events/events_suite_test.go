package events

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("Event", func() {
	It("survives an encode/decode cycle", func() {
		e := New(TypeBookmarksImport, "Metal", map[string]interface{}{
			"folder": "Metal",
			"html":   "<h3>Metal</h3><dl></dl>",
			"count":  3,
		})

		data, err := e.Marshal()
		Expect(err).ToNot(HaveOccurred())

		decoded, err := Unmarshal(data)
		Expect(err).ToNot(HaveOccurred())

		Expect(decoded.ID).To(Equal(e.ID))
		Expect(decoded.Type).To(Equal(TypeBookmarksImport))
		Expect(decoded.Source).To(Equal(Source))
		Expect(decoded.SpecVersion).To(Equal(SpecVersion))
		Expect(decoded.Subject).To(Equal("Metal"))
		Expect(decoded.Time.Equal(e.Time)).To(BeTrue())
		Expect(decoded.String("folder")).To(Equal("Metal"))
		Expect(decoded.Data).To(HaveKeyWithValue("count", float64(3)))
	})

	It("rejects garbage", func() {
		_, err := Unmarshal([]byte{0xff, 0xff, 0xff})
		Expect(err).To(HaveOccurred())
	})

	It("returns an empty string for missing or non-string data", func() {
		e := New(TypeAlbumsImported, "", map[string]interface{}{"n": 1})
		Expect(e.String("n")).To(Equal(""))
		Expect(e.String("missing")).To(Equal(""))
	})
})
