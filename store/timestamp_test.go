package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToTimeNormalizesAllWireShapes(t *testing.T) {
	want := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
	}{
		{"native time.Time", want},
		{"wrapper struct", Timestamp{Seconds: want.Unix()}},
		{"wrapper pointer", &Timestamp{Seconds: want.Unix()}},
		{"json round-tripped wrapper", map[string]any{"seconds": float64(want.Unix()), "nanos": float64(0)}},
		{"epoch millis int64", want.UnixMilli()},
		{"epoch millis float64", float64(want.UnixMilli())},
		{"rfc3339 string", want.Format(time.RFC3339Nano)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, ToTime(tt.in).Equal(want), "got %v", ToTime(tt.in))
		})
	}
}

func TestToTimeUnknownShapesReturnZero(t *testing.T) {
	assert.True(t, ToTime(nil).IsZero())
	assert.True(t, ToTime("not a timestamp").IsZero())
	assert.True(t, ToTime(map[string]any{"foo": "bar"}).IsZero())
	assert.True(t, ToTime((*time.Time)(nil)).IsZero())
}

func TestDocumentTimeReadsField(t *testing.T) {
	doc := Document{"created_at": "2026-03-10T09:30:00Z"}
	assert.Equal(t, time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC), doc.Time("created_at").UTC())
	assert.True(t, doc.Time("missing").IsZero())
}
