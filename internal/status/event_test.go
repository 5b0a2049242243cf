package status

import (
	"testing"

	"github.com/stretchr/testify/require"

	"audio-job-service/internal/entity"
)

func strPtr(s string) *string { return &s }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		clip entity.AudioClip
		want Status
	}{
		{name: "pending", clip: entity.AudioClip{}, want: StatusProcessing},
		{name: "empty key is still pending", clip: entity.AudioClip{S3Key: strPtr("")}, want: StatusProcessing},
		{name: "artifact written", clip: entity.AudioClip{S3Key: strPtr("clips/a.wav")}, want: StatusSuccess},
		{name: "failed", clip: entity.AudioClip{Failed: true}, want: StatusFailed},
		{name: "failed wins over key", clip: entity.AudioClip{Failed: true, S3Key: strPtr("clips/a.wav")}, want: StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(&tt.clip))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	require.False(t, StatusProcessing.Terminal())
	for _, s := range []Status{StatusSuccess, StatusFailed, StatusError, StatusTimeout} {
		require.True(t, s.Terminal(), s)
		require.True(t, s.Valid(), s)
	}
	require.False(t, Status("queued").Valid())
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"status":"success","audioUrl":"https://x/y.wav","service":"styletts2"}`))
	require.NoError(t, err)
	require.Equal(t, Success("https://x/y.wav", entity.ServiceTextToSpeech), ev)

	ev, err = ParseEvent([]byte(`{"status":"error","message":"Audio not found"}`))
	require.NoError(t, err)
	require.Equal(t, Error(MsgNotFound), ev)

	_, err = ParseEvent([]byte(`{"status":"queued"}`))
	require.Error(t, err)

	_, err = ParseEvent([]byte(`not json`))
	require.Error(t, err)
}
