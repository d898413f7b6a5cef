package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rusthing/capturer/internal/broadcast"
	"github.com/rusthing/capturer/internal/domain"
	"github.com/rusthing/capturer/internal/ffmpegrun"
	"github.com/rusthing/capturer/internal/stream"
	"github.com/rusthing/capturer/internal/upload"
)

type fakeProber struct{}

func (fakeProber) Probe(ctx context.Context, url string) (domain.StreamMetadata, error) {
	return domain.StreamMetadata{Video: domain.VideoCodec{Kind: domain.VideoH264}}, nil
}

// newTestRegistry returns a registry whose fake spawn emits chunks once the
// first subscriber attaches, plus a channel that receives the session's bus
// when the first GetSubscription spawns it.
func newTestRegistry(t *testing.T, chunks ...[]byte) (*stream.Registry, <-chan *broadcast.Bus) {
	t.Helper()
	busCh := make(chan *broadcast.Bus, 1)
	spawn := func(ctx context.Context, program string, args []string, dataOut *broadcast.Bus, exitSignal chan<- struct{}, readBufferSize int) (*ffmpegrun.ChildHandle, error) {
		go func() {
			for _, c := range chunks {
				for dataOut.Send(c) == broadcast.ErrNoSubscribers {
					time.Sleep(time.Millisecond)
				}
			}
		}()
		busCh <- dataOut
		return &ffmpegrun.ChildHandle{Pid: 1}, nil
	}
	reg := stream.NewRegistry(stream.Config{IdleDetectInterval: time.Hour, SweepInterval: time.Hour}, fakeProber{}, spawn)
	t.Cleanup(reg.Close)
	return reg, busCh
}

func TestHandleStreamLiveFLV_MissingStreamURL(t *testing.T) {
	reg, _ := newTestRegistry(t, []byte("flv-header"))
	s := NewServer(reg, upload.NoopUploader{}, nil, Config{})

	req := httptest.NewRequest(http.MethodGet, "/capturer/stream.live.flv", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleStreamLiveFLV_StreamsHeaderChunk(t *testing.T) {
	reg, _ := newTestRegistry(t, []byte("flv-header"))
	s := NewServer(reg, upload.NoopUploader{}, nil, Config{})

	req := httptest.NewRequest(http.MethodGet, "/capturer/stream.live.flv?streamUrl=rtsp://cam/1", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 500*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "video/x-flv" {
		t.Errorf("Content-Type = %q, want video/x-flv", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("flv-header")) {
		t.Errorf("body = %q, want to contain flv-header", rec.Body.Bytes())
	}
}

func TestHandleCaptureToJPEG_MissingStreamURL(t *testing.T) {
	reg, _ := newTestRegistry(t)
	s := NewServer(reg, upload.NoopUploader{}, nil, Config{})

	req := httptest.NewRequest(http.MethodPost, "/capturer/capture_to_jpeg", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCaptureToJPEG_WrongMethod(t *testing.T) {
	reg, _ := newTestRegistry(t)
	s := NewServer(reg, upload.NoopUploader{}, nil, Config{})

	req := httptest.NewRequest(http.MethodGet, "/capturer/capture_to_jpeg", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandleCaptureToJPEG_FfmpegFailureReturnsFailureEnvelope(t *testing.T) {
	reg, _ := newTestRegistry(t)
	s := NewServer(reg, upload.NoopUploader{}, nil, Config{FFmpegPath: "sh"})

	body := `{"streamUrl":"rtsp://cam/1"}`
	req := httptest.NewRequest(http.MethodPost, "/capturer/capture_to_jpeg", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (envelope carries failure)", rec.Code)
	}
	var resp captureToJPEGResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Result != "failure" {
		t.Errorf("result = %q, want failure", resp.Result)
	}
}
