package processor

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dselans/blastbeat-albums/bookmarks"
	"github.com/dselans/blastbeat-albums/events"
	"github.com/dselans/blastbeat-albums/services/album"
	"github.com/dselans/blastbeat-albums/util"
)

// handleBookmarksImport runs an import for a bookmarks.import event. The
// event carries the folder name in data.folder and the exported bookmarks
// file in data.html.
func (p *Processor) handleBookmarksImport(ctx context.Context, event *events.Event) error {
	_, logger := util.MethodSetup(ctx, p.log, zap.String("method", "handleBookmarksImport"))

	folder := event.String("folder")
	html := event.String("html")

	if folder == "" {
		return errors.New("bookmarks.import event is missing data.folder")
	}

	if html == "" {
		return errors.New("bookmarks.import event is missing data.html")
	}

	res, err := p.options.AlbumService.Import(ctx, &album.ImportRequest{
		Folder: folder,
		Data:   []byte(html),
		DryRun: event.Data["dryRun"] == true,
	})
	if err != nil {
		var lve *bookmarks.LinkValidationError
		if errors.As(err, &lve) {
			logger.Error("bookmark failed validation",
				zap.String("folder", lve.Link.Folder),
				zap.String("text", lve.Link.Text),
				zap.String("href", lve.Link.HrefOrEmpty()),
				zap.String("reason", lve.Reason),
			)
		}

		return errors.Wrapf(err, "unable to import folder '%s'", folder)
	}

	logger.Info("imported bookmarks",
		zap.String("importID", res.ID),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
	)

	return nil
}
