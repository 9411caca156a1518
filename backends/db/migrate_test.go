package db

import (
	"testing/fstest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/dselans/blastbeat-albums/migrations"
)

var _ = Describe("loadMigrations", func() {
	It("groups sql files by directory in name order", func() {
		fsys := fstest.MapFS{
			"002_second/b.sql": {Data: []byte("SELECT 2;")},
			"002_second/a.sql": {Data: []byte("SELECT 1;")},
			"001_first/up.sql": {Data: []byte("SELECT 0;")},
			"003_empty/README": {Data: []byte("nothing")},
			"stray.sql":        {Data: []byte("SELECT 3;")},
		}

		ms, err := loadMigrations(fsys)
		Expect(err).ToNot(HaveOccurred())
		Expect(ms).To(Equal([]migration{
			{Name: "001_first", Files: []string{"up.sql"}},
			{Name: "002_second", Files: []string{"a.sql", "b.sql"}},
		}))
	})

	It("finds the embedded albums migration", func() {
		ms, err := loadMigrations(migrations.FS)
		Expect(err).ToNot(HaveOccurred())
		Expect(ms).ToNot(BeEmpty())
		Expect(ms[0].Name).To(Equal("001_create_albums"))
	})
})
