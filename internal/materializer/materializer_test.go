package materializer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/retry"
)

type putCall struct {
	data        []byte
	filename    string
	contentType string
}

type recordingUploader struct {
	mu    sync.Mutex
	calls []putCall
	err   error
}

func (u *recordingUploader) Put(_ context.Context, data []byte, filename, contentType string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, putCall{data: append([]byte(nil), data...), filename: filename, contentType: contentType})
	if u.err != nil {
		return "", u.err
	}
	return "https://files.local/" + filename, nil
}

// chunkedReader hands out its chunks one Read at a time.
type chunkedReader struct {
	chunks [][]byte
	closed bool
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkedReader) Close() error {
	r.closed = true
	return nil
}

type scriptedDownloader struct {
	failures int
	calls    int
	payloads [][]byte
}

func (d *scriptedDownloader) Download(_ context.Context, _ string) ([]byte, string, error) {
	d.calls++
	if d.calls <= d.failures {
		return nil, "", errors.New("connection reset")
	}
	return d.payloads[d.calls-1], "image/webp", nil
}

func noSleepPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Backoff: retry.Fixed(2 * time.Second)}.
		WithSleep(func(context.Context, time.Duration) error { return nil })
}

func TestInlineArtifactIsKept(t *testing.T) {
	up := &recordingUploader{}
	m := New(Options{Uploader: up})
	res, err := m.Materialize(context.Background(), generation.InlineArtifact("data:image/png;base64,AAAA"), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", res.URL)
	assert.True(t, res.Durable)
	assert.Empty(t, up.calls)
}

func TestStreamIsConcatenatedIntoOneUpload(t *testing.T) {
	up := &recordingUploader{}
	stream := &chunkedReader{chunks: [][]byte{
		bytes.Repeat([]byte{'a'}, 10),
		bytes.Repeat([]byte{'b'}, 20),
		bytes.Repeat([]byte{'c'}, 30),
	}}
	m := New(Options{Uploader: up})

	res, err := m.Materialize(context.Background(), generation.StreamArtifact(stream, "image/png"), "job-2")
	require.NoError(t, err)
	require.Len(t, up.calls, 1)
	assert.Len(t, up.calls[0].data, 60)
	assert.Equal(t, "image/png", up.calls[0].contentType)
	assert.Equal(t, "https://files.local/job-2", res.URL)
	assert.True(t, stream.closed)
}

func TestStreamUploadFailureIsPersistenceError(t *testing.T) {
	up := &recordingUploader{err: errors.New("disk full")}
	m := New(Options{Uploader: up})
	_, err := m.Materialize(context.Background(), generation.StreamArtifact(bytes.NewReader([]byte("x")), ""), "job")
	require.ErrorIs(t, err, domain.ErrPersistence)
}

func TestRemoteSucceedsOnThirdAttempt(t *testing.T) {
	up := &recordingUploader{}
	dl := &scriptedDownloader{failures: 2, payloads: [][]byte{nil, nil, []byte("third")}}
	m := New(Options{Uploader: up, Downloader: dl, Policy: noSleepPolicy()})

	res, err := m.Materialize(context.Background(), generation.RemoteArtifact("https://replicate.delivery/out.webp"), "job-3")
	require.NoError(t, err)
	assert.Equal(t, 3, dl.calls)
	require.Len(t, up.calls, 1)
	assert.Equal(t, []byte("third"), up.calls[0].data)
	assert.Equal(t, "image/webp", up.calls[0].contentType)
	assert.Equal(t, "https://files.local/job-3", res.URL)
	assert.True(t, res.Durable)
}

func TestRemoteFallsBackToProviderURL(t *testing.T) {
	up := &recordingUploader{}
	dl := &scriptedDownloader{failures: 3}
	m := New(Options{Uploader: up, Downloader: dl, Policy: noSleepPolicy()})

	res, err := m.Materialize(context.Background(), generation.RemoteArtifact("https://replicate.delivery/out.webp"), "job-4")
	require.NoError(t, err)
	assert.Equal(t, 3, dl.calls)
	assert.Empty(t, up.calls)
	assert.Equal(t, "https://replicate.delivery/out.webp", res.URL)
	assert.False(t, res.Durable)
}

func TestRemoteWaitsFixedBackoff(t *testing.T) {
	var waits []time.Duration
	policy := retry.Policy{MaxAttempts: 3, Backoff: retry.Fixed(DefaultBackoff)}.
		WithSleep(func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		})
	m := New(Options{Uploader: &recordingUploader{}, Downloader: &scriptedDownloader{failures: 3}, Policy: policy})
	_, err := m.Materialize(context.Background(), generation.RemoteArtifact("https://x/y.png"), "job")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, waits)
}

func TestRemoteCanceledContextIsReturned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := New(Options{Uploader: &recordingUploader{}, Downloader: &scriptedDownloader{failures: 3}, Policy: noSleepPolicy()})
	_, err := m.Materialize(ctx, generation.RemoteArtifact("https://x/y.png"), "job")
	require.ErrorIs(t, err, context.Canceled)
}

func TestHTTPDownloader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	d := NewHTTPDownloader(srv.Client())
	data, ct, err := d.Download(context.Background(), srv.URL+"/ok.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, "image/jpeg", ct)

	_, _, err = d.Download(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)

	_, _, err = d.Download(context.Background(), "ftp://example.com/a.png")
	assert.Error(t, err)
}
