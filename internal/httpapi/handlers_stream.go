package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/rusthing/capturer/internal/domain"
)

// handleStreamLiveFLV implements GET /capturer/stream.live.flv?streamUrl=...:
// it attaches a subscription to the named source's session, creating the
// session on first use, and streams FLV chunks until the client disconnects
// or the session ends.
func (s *Server) handleStreamLiveFLV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	streamURL := trimmedQuery(r, "streamUrl")
	if streamURL == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "streamUrl is required")
		return
	}

	subscriberID := uuid.New().String()
	logger := s.logger.With(slog.String("streamUrl", streamURL), slog.String("subscriberId", subscriberID))

	sub, err := s.registry.GetSubscription(r.Context(), streamURL)
	if err != nil {
		logger.Warn("subscription failed", slog.String("error", err.Error()))
		writeStreamError(w, err)
		return
	}
	defer sub.Release()

	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "video/x-flv")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	logger.Info("stream subscriber attached")
	for {
		chunk, err := sub.Next(r.Context())
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("stream subscriber detached", slog.String("error", err.Error()))
			}
			return
		}
		if _, err := w.Write(chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeStreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrFfprobeCmd), errors.Is(err, domain.ErrFfprobeParseStructure),
		errors.Is(err, domain.ErrFfprobeParseUTF8), errors.Is(err, domain.ErrFfprobeParseJSON):
		writeError(w, http.StatusBadGateway, "probe_failed", "unable to probe source stream")
	case errors.Is(err, domain.ErrCmdSpawnFail), errors.Is(err, domain.ErrCmdRunFail):
		writeError(w, http.StatusBadGateway, "spawn_failed", "unable to start capture process")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
