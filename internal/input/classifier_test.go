package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"/data/meeting.mp4", KindVideo},
		{"/data/meeting.MKV", KindVideo},
		{"recording.mov", KindVideo},
		{"call.m4a", KindAudio},
		{"call.flac", KindAudio},
		{"call.wav", KindAudio},
		{"notes.json", KindTranscript},
		{"notes.srt", KindTranscript},
		{"notes.txt", KindTranscript},
		{"archive.zip", KindUnknown},
		{"noextension", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path))
		})
	}
}

func TestClassify_WebmIsVideo(t *testing.T) {
	// webm is in both allow-lists; video wins so extraction runs.
	assert.Equal(t, KindVideo, Classify("screen-share.webm"))
}

func TestKindIsMedia(t *testing.T) {
	assert.True(t, KindVideo.IsMedia())
	assert.True(t, KindAudio.IsMedia())
	assert.False(t, KindTranscript.IsMedia())
	assert.False(t, KindUnknown.IsMedia())
}
