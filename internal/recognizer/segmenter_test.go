package recognizer

import (
	"context"
	"encoding/binary"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/transcript"
	"github.com/stretchr/testify/require"
)

// tone returns a frame of samples constant at amplitude.
func tone(samples int, amplitude int16) audio.Frame {
	pcm := make([]byte, samples*2)
	for i := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(amplitude))
	}
	return audio.Frame{PCM: pcm, Samples: samples}
}

type recordingTranscriber struct {
	calls atomic.Int32
	last  []byte
	text  string
	err   error
}

func (r *recordingTranscriber) Transcribe(_ context.Context, pcm []byte, _ int) (string, error) {
	r.calls.Add(1)
	r.last = append([]byte(nil), pcm...)
	return r.text, r.err
}

func TestSegmenterEndpointsOnSilence(t *testing.T) {
	tr := &recordingTranscriber{text: "  hello world "}
	seg := NewSegmenter(tr, 16000, EndpointConfig{SilenceMs: 500})
	ctx := context.Background()

	// 250ms frames: leading silence, two speech frames, two silent frames.
	res, err := seg.Accept(ctx, tone(4000, 0))
	require.NoError(t, err)
	require.False(t, res.Finalized())
	require.False(t, seg.Pending())

	for range 2 {
		res, err = seg.Accept(ctx, tone(4000, 2000))
		require.NoError(t, err)
		require.False(t, res.Finalized())
	}
	require.True(t, seg.Pending())

	res, err = seg.Accept(ctx, tone(4000, 10))
	require.NoError(t, err)
	require.False(t, res.Finalized())

	res, err = seg.Accept(ctx, tone(4000, 10))
	require.NoError(t, err)
	require.True(t, res.Finalized())
	require.Equal(t, "hello world", res.Text)
	require.Equal(t, int32(1), tr.calls.Load())
	require.Len(t, tr.last, 4*4000*2)
	require.False(t, seg.Pending())
}

func TestSegmenterForcesEndpointAtMaxLength(t *testing.T) {
	tr := &recordingTranscriber{text: "long"}
	seg := NewSegmenter(tr, 16000, EndpointConfig{MaxUtteranceMs: 500})

	res, err := seg.Accept(context.Background(), tone(4000, 5000))
	require.NoError(t, err)
	require.False(t, res.Finalized())

	res, err = seg.Accept(context.Background(), tone(4000, 5000))
	require.NoError(t, err)
	require.True(t, res.Finalized())
	require.Equal(t, "long", res.Text)
}

func TestSegmenterFlushFinalizesPendingSpeech(t *testing.T) {
	tr := &recordingTranscriber{text: "partial"}
	seg := NewSegmenter(tr, 16000, EndpointConfig{})

	res, err := seg.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{}, res)
	require.Zero(t, tr.calls.Load())

	_, err = seg.Accept(context.Background(), tone(1600, 3000))
	require.NoError(t, err)

	res, err = seg.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Text: "partial", Final: true}, res)
	require.False(t, seg.Pending())
}

func TestSegmenterNormalizesTranscriberText(t *testing.T) {
	tr := &recordingTranscriber{text: " [BLANK_AUDIO] so i said no.  then we left "}
	seg := NewSegmenter(tr, 16000, EndpointConfig{}, WithTextOptions(transcript.Options{CapitalizeSentences: true}))

	_, err := seg.Accept(context.Background(), tone(1600, 3000))
	require.NoError(t, err)

	res, err := seg.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Text: "So I said no. Then we left", Final: true}, res)
}

func TestSegmenterAnnotationOnlyTranscriptIsNotFinalized(t *testing.T) {
	tr := &recordingTranscriber{text: "[BLANK_AUDIO]"}
	seg := NewSegmenter(tr, 16000, EndpointConfig{})

	_, err := seg.Accept(context.Background(), tone(1600, 3000))
	require.NoError(t, err)

	res, err := seg.Flush(context.Background())
	require.NoError(t, err)
	require.False(t, res.Finalized())
}

func TestSegmenterEmptyTranscriptIsNotFinalized(t *testing.T) {
	tr := &recordingTranscriber{text: "   "}
	seg := NewSegmenter(tr, 16000, EndpointConfig{})

	_, err := seg.Accept(context.Background(), tone(1600, 3000))
	require.NoError(t, err)
	res, err := seg.Flush(context.Background())
	require.NoError(t, err)
	require.True(t, res.Final)
	require.False(t, res.Finalized())
}

func TestSegmenterWrapsTranscriberError(t *testing.T) {
	boom := errors.New("boom")
	seg := NewSegmenter(&recordingTranscriber{err: boom}, 16000, EndpointConfig{})

	_, err := seg.Accept(context.Background(), tone(1600, 3000))
	require.NoError(t, err)
	_, err = seg.Flush(context.Background())
	require.ErrorIs(t, err, boom)
	require.False(t, seg.Pending())
}

func TestComputeRMS(t *testing.T) {
	require.Zero(t, computeRMS(nil))
	require.InDelta(t, 1000, computeRMS(tone(10, 1000).PCM), 0.001)
	require.InDelta(t, 1000, computeRMS(tone(10, -1000).PCM), 0.001)
}

func TestDurationMs(t *testing.T) {
	require.Equal(t, 250, durationMs(8000, 16000))
	require.Equal(t, 0, durationMs(8000, 0))
}
