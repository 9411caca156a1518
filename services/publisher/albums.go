package publisher

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/dselans/blastbeat-albums/events"
	"github.com/dselans/blastbeat-albums/services/state"
)

func (p *Publisher) PublishAlbumsImported(ctx context.Context, imp *state.Import) error {
	if ctx == nil {
		return errors.New("context cannot be nil")
	}

	event, err := newAlbumsImportedEvent(imp)
	if err != nil {
		return err
	}

	if err := p.Publish(ctx, event); err != nil {
		return errors.Wrap(err, "failed to publish albums.imported event")
	}

	return nil
}

func newAlbumsImportedEvent(imp *state.Import) (*events.Event, error) {
	if imp == nil {
		return nil, errors.New("import cannot be nil")
	}

	if imp.ID == "" {
		return nil, errors.New("import id cannot be empty")
	}

	// structpb only takes []interface{} for lists
	skipped := make([]interface{}, 0, len(imp.SkippedVideoIDs))
	for _, id := range imp.SkippedVideoIDs {
		skipped = append(skipped, id)
	}

	return events.New(events.TypeAlbumsImported, imp.ID, map[string]interface{}{
		"folder":          imp.Folder,
		"parsed":          imp.Parsed,
		"inserted":        imp.Inserted,
		"skipped":         imp.Skipped,
		"skippedVideoIds": skipped,
		"startedAt":       imp.StartedAt.Format(time.RFC3339Nano),
		"finishedAt":      imp.FinishedAt.Format(time.RFC3339Nano),
	}), nil
}
