// Package events defines the envelope used for messages on the event bus.
//
// Envelopes are CloudEvents-shaped and encoded as a protobuf Struct so that
// consumers don't need generated code to decode them.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	SpecVersion     = "1.0"
	DataContentType = "application/protobuf"
	Source          = "blastbeat-albums"

	TypeAlbumsImported  = "albums.imported"
	TypeBookmarksImport = "bookmarks.import"
)

type Event struct {
	ID              string
	Source          string
	Type            string
	SpecVersion     string
	DataContentType string
	Subject         string
	Time            time.Time
	Data            map[string]interface{}
}

func New(eventType, subject string, data map[string]interface{}) *Event {
	return &Event{
		ID:              uuid.New().String(),
		Source:          Source,
		Type:            eventType,
		SpecVersion:     SpecVersion,
		DataContentType: DataContentType,
		Subject:         subject,
		Time:            time.Now().UTC(),
		Data:            data,
	}
}

func (e *Event) Marshal() ([]byte, error) {
	if e == nil {
		return nil, errors.New("event cannot be nil")
	}

	data := e.Data
	if data == nil {
		data = map[string]interface{}{}
	}

	st, err := structpb.NewStruct(map[string]interface{}{
		"id":              e.ID,
		"source":          e.Source,
		"type":            e.Type,
		"specVersion":     e.SpecVersion,
		"datacontenttype": e.DataContentType,
		"subject":         e.Subject,
		"time":            e.Time.Format(time.RFC3339Nano),
		"data":            data,
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to build event struct")
	}

	return proto.Marshal(st)
}

func Unmarshal(b []byte) (*Event, error) {
	st := &structpb.Struct{}

	if err := proto.Unmarshal(b, st); err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal event")
	}

	fields := st.GetFields()

	e := &Event{
		ID:              fields["id"].GetStringValue(),
		Source:          fields["source"].GetStringValue(),
		Type:            fields["type"].GetStringValue(),
		SpecVersion:     fields["specVersion"].GetStringValue(),
		DataContentType: fields["datacontenttype"].GetStringValue(),
		Subject:         fields["subject"].GetStringValue(),
		Data:            fields["data"].GetStructValue().AsMap(),
	}

	if ts := fields["time"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, errors.Wrap(err, "unable to parse event time")
		}

		e.Time = t
	}

	return e, nil
}

// String returns Data[key] if it is a string.
func (e *Event) String(key string) string {
	v, _ := e.Data[key].(string)
	return v
}
