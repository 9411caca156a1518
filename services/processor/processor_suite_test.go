package processor

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/dselans/blastbeat-albums/bookmarks"
	"github.com/dselans/blastbeat-albums/clog"
	"github.com/dselans/blastbeat-albums/events"
	"github.com/dselans/blastbeat-albums/services/album"
	"github.com/dselans/blastbeat-albums/services/state"
)

func TestProcessor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Processor Suite")
}

type fakeImporter struct {
	requests []*album.ImportRequest
	err      error
}

func (f *fakeImporter) Import(_ context.Context, req *album.ImportRequest) (*album.ImportResult, error) {
	f.requests = append(f.requests, req)

	if f.err != nil {
		return nil, f.err
	}

	return &album.ImportResult{Import: &state.Import{ID: "abc", Folder: req.Folder, Inserted: 1}}, nil
}

// fakeAcker satisfies amqp.Acknowledger.
type fakeAcker struct {
	acks int
}

func (f *fakeAcker) Ack(_ uint64, _ bool) error {
	f.acks++
	return nil
}

func (f *fakeAcker) Nack(_ uint64, _ bool, _ bool) error { return nil }

func (f *fakeAcker) Reject(_ uint64, _ bool) error { return nil }

func delivery(acker *fakeAcker, event *events.Event) amqp.Delivery {
	body, err := event.Marshal()
	Expect(err).ToNot(HaveOccurred())

	return amqp.Delivery{
		Acknowledger: acker,
		RoutingKey:   event.Type,
		Body:         body,
	}
}

var _ = Describe("Processor", func() {
	var (
		importer *fakeImporter
		logger   *clog.TestLogger
		p        *Processor
		acker    *fakeAcker
	)

	BeforeEach(func() {
		importer = &fakeImporter{}
		logger = &clog.TestLogger{}
		acker = &fakeAcker{}

		p = &Processor{
			options: &Options{
				Log:          logger,
				AlbumService: importer,
				ShutdownCtx:  context.Background(),
			},
			log: logger,
		}
	})

	Context("validateOptions", func() {
		It("rejects nil rabbit instances", func() {
			opts := &Options{
				Log:          logger,
				AlbumService: importer,
				ShutdownCtx:  context.Background(),
				RabbitMap: map[string]*RabbitConfig{
					"bookmarks": {RabbitInstance: nil, Func: "ConsumeFunc"},
				},
			}

			_, err := New(opts)
			Expect(err).To(MatchError(ContainSubstring("rabbit instance for 'bookmarks' cannot be nil")))
		})

		It("requires the album service", func() {
			_, err := New(&Options{Log: logger, ShutdownCtx: context.Background()})
			Expect(err).To(MatchError(ContainSubstring("AlbumService cannot be nil")))
		})
	})

	Context("ConsumeFunc", func() {
		It("runs an import for bookmarks.import events", func() {
			event := events.New(events.TypeBookmarksImport, "upload-1", map[string]interface{}{
				"folder": "Metal",
				"html":   "<DL><p></DL><p>",
			})

			Expect(p.ConsumeFunc(delivery(acker, event))).To(Succeed())

			Expect(acker.acks).To(Equal(1))
			Expect(importer.requests).To(HaveLen(1))
			Expect(importer.requests[0].Folder).To(Equal("Metal"))
			Expect(string(importer.requests[0].Data)).To(Equal("<DL><p></DL><p>"))
			Expect(importer.requests[0].DryRun).To(BeFalse())
		})

		It("passes the dry run flag through", func() {
			event := events.New(events.TypeBookmarksImport, "upload-1", map[string]interface{}{
				"folder": "Metal",
				"html":   "<DL><p></DL><p>",
				"dryRun": true,
			})

			Expect(p.ConsumeFunc(delivery(acker, event))).To(Succeed())
			Expect(importer.requests[0].DryRun).To(BeTrue())
		})

		It("ignores other event types", func() {
			event := events.New(events.TypeAlbumsImported, "abc", nil)

			Expect(p.ConsumeFunc(delivery(acker, event))).To(Succeed())
			Expect(acker.acks).To(Equal(1))
			Expect(importer.requests).To(BeEmpty())
		})

		It("drops events missing a folder", func() {
			event := events.New(events.TypeBookmarksImport, "upload-1", map[string]interface{}{
				"html": "<DL><p></DL><p>",
			})

			Expect(p.ConsumeFunc(delivery(acker, event))).To(Succeed())
			Expect(importer.requests).To(BeEmpty())
			Expect(logger.Lines()).To(ContainElement(ContainSubstring("missing data.folder")))
		})

		It("drops messages that aren't events", func() {
			msg := amqp.Delivery{Acknowledger: acker, Body: []byte("not an event")}

			Expect(p.ConsumeFunc(msg)).To(Succeed())
			Expect(acker.acks).To(Equal(1))
			Expect(importer.requests).To(BeEmpty())
		})

		It("drops events that fail validation", func() {
			event := events.New(events.TypeBookmarksImport, "upload-1", nil)
			event.Time = time.Time{}

			Expect(p.ConsumeFunc(delivery(acker, event))).To(Succeed())
			Expect(importer.requests).To(BeEmpty())
		})

		It("logs link context when an import fails validation", func() {
			href := "https://vimeo.com/123"
			importer.err = &bookmarks.LinkValidationError{
				Link:   bookmarks.FolderLink{RawLink: bookmarks.RawLink{Text: "Some Band - X (2001)", Href: &href}, Folder: "Broken"},
				Reason: "bad href",
			}

			event := events.New(events.TypeBookmarksImport, "upload-1", map[string]interface{}{
				"folder": "Broken",
				"html":   "<DL><p></DL><p>",
			})

			Expect(p.ConsumeFunc(delivery(acker, event))).To(Succeed())
			Expect(logger.Lines()).To(ContainElement(ContainSubstring("bookmark failed validation")))
			Expect(logger.Lines()).To(ContainElement(ContainSubstring("unable to import folder 'Broken'")))
		})

		It("logs import errors without returning them", func() {
			importer.err = errors.New("db down")

			event := events.New(events.TypeBookmarksImport, "upload-1", map[string]interface{}{
				"folder": "Metal",
				"html":   "<DL><p></DL><p>",
			})

			Expect(p.ConsumeFunc(delivery(acker, event))).To(Succeed())
			Expect(logger.Lines()).To(ContainElement(ContainSubstring("db down")))
		})
	})
})
