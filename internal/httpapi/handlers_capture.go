package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rusthing/capturer/internal/capture"
	"github.com/rusthing/capturer/internal/metrics"
)

type captureToJPEGRequest struct {
	StreamURL     string `json:"streamUrl"`
	Bucket        string `json:"bucket,omitempty"`
	CurrentUserID string `json:"currentUserId,omitempty"`
}

type captureToJPEGResponse struct {
	Result string `json:"result"`
	Msg    string `json:"msg"`
}

// handleCaptureToJPEG implements POST /capturer/capture_to_jpeg: grab one
// JPEG frame from streamUrl via ffmpeg, then upload it, returning the
// success/failure envelope capturer_svc.rs's Ro/RoResult shape.
func (s *Server) handleCaptureToJPEG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body captureToJPEGRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}
	if body.StreamURL == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "streamUrl is required")
		return
	}

	bucket := body.Bucket
	if bucket == "" {
		bucket = s.defaultBucket
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	start := time.Now()
	jpegBytes, err := capture.Capture(ctx, s.ffmpegPath, body.StreamURL, s.jpegQuality)
	metrics.CaptureDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CaptureFailuresTotal.Inc()
		s.logger.Warn("capture failed", slog.String("streamUrl", body.StreamURL), slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, captureToJPEGResponse{Result: "failure", Msg: "capture failed: " + err.Error()})
		return
	}

	key := strconv.FormatInt(time.Now().UnixMilli(), 10) + ".jpg"
	result, err := s.uploader.Upload(ctx, bucket, key, jpegBytes, body.CurrentUserID)
	if err != nil || !result.Success {
		metrics.UploadFailuresTotal.Inc()
		msg := result.Msg
		if err != nil {
			msg = err.Error()
		}
		s.logger.Warn("upload failed", slog.String("bucket", bucket), slog.String("key", key), slog.String("error", msg))
		writeJSON(w, http.StatusOK, captureToJPEGResponse{Result: "failure", Msg: "capture failed: " + msg})
		return
	}

	writeJSON(w, http.StatusOK, captureToJPEGResponse{Result: "success", Msg: "capture succeeded"})
}
