package form

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled() *CreateForm {
	f := NewCreateForm(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC), "")
	f.Title = "Morning show"
	f.VideoInput = "https://example.com/a.mp4"
	f.StreamKey = "abcd-efgh"
	return f
}

func TestDefaults(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	f := NewCreateForm(time.Date(2024, 5, 1, 23, 5, 0, 0, loc), "")
	assert.Equal(t, "2024-05-01", f.Date)
	assert.Equal(t, "23:05", f.Time)
	assert.Equal(t, DefaultRTMPServer, f.RTMPServer)
	assert.Equal(t, DurationInfinite, f.DurationType)
	assert.Equal(t, 60, f.Duration)
	assert.Empty(t, f.Title)

	f = NewCreateForm(time.Now(), "rtmp://live.example.com/app")
	assert.Equal(t, "rtmp://live.example.com/app", f.RTMPServer)
}

func TestValidate(t *testing.T) {
	f := NewCreateForm(time.Now(), "")
	f.RTMPServer = "  "
	errs := f.Validate()
	for _, field := range []string{"title", "videoInput", "rtmpServer", "streamKey"} {
		assert.Contains(t, errs, field)
	}
	assert.NotContains(t, errs, "duration")
	assert.ErrorIs(t, errs.Err(), ErrInvalidForm)

	f = filled()
	assert.Empty(t, f.Validate())
	assert.NoError(t, f.Validate().Err())

	f.DurationType = DurationCustom
	f.Duration = 0
	assert.Contains(t, f.Validate(), "duration")

	f = filled()
	f.Date = "01/05/2024"
	f.Time = "9am"
	errs = f.Validate()
	assert.Contains(t, errs, "date")
	assert.Contains(t, errs, "time")
}

func TestPayload(t *testing.T) {
	f := filled()
	f.Date = "2024-05-01"
	f.Time = "21:15"
	p, err := f.Payload(time.FixedZone("ICT", 7*3600))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T14:15:00.000Z", p.BroadcastDateTime)
	assert.Nil(t, p.DurationMinutes)
	assert.Equal(t, f.VideoInput, p.VideoURL)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"title": "Morning show",
		"streamKey": "abcd-efgh",
		"rtmpServer": "rtmp://a.rtmp.youtube.com/live2",
		"broadcastDateTime": "2024-05-01T14:15:00.000Z",
		"durationMinutes": null,
		"videoUrl": "https://example.com/a.mp4"
	}`, string(raw))

	f.DurationType = DurationCustom
	f.Duration = 90
	p, err = f.Payload(time.UTC)
	require.NoError(t, err)
	require.NotNil(t, p.DurationMinutes)
	assert.Equal(t, 90, *p.DurationMinutes)

	f.Title = ""
	_, err = f.Payload(time.UTC)
	assert.ErrorIs(t, err, ErrInvalidForm)
}

func TestReset(t *testing.T) {
	f := filled()
	f.Date = "2024-06-01"
	f.Time = "08:00"
	f.RTMPServer = "rtmp://live.example.com/app"
	f.DurationType = DurationCustom
	f.Duration = 15

	f.Reset()
	assert.Empty(t, f.Title)
	assert.Empty(t, f.VideoInput)
	assert.Empty(t, f.StreamKey)
	assert.Equal(t, DurationInfinite, f.DurationType)
	assert.Equal(t, DefaultDuration, f.Duration)
	assert.Equal(t, "2024-06-01", f.Date)
	assert.Equal(t, "08:00", f.Time)
	assert.Equal(t, "rtmp://live.example.com/app", f.RTMPServer)
}
