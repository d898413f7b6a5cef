// Package capture implements the one-shot JPEG snapshot path: a single
// ffmpeg invocation that grabs one frame from an RTSP source. Grounded on
// original_source/capturer-svr/src/ffmpeg/ffmpeg_cmd.rs's capture_to_jpeg.
package capture

import (
	"context"
	"strconv"

	"github.com/rusthing/capturer/internal/ffmpegrun"
)

// MinJPEGQuality and MaxJPEGQuality bound ffmpeg's mjpeg -q:v scale
// (lower is better quality).
const (
	MinJPEGQuality = 1
	MaxJPEGQuality = 31
)

// ClampQuality clamps q into ffmpeg's valid mjpeg -q:v range.
func ClampQuality(q int) int {
	if q < MinJPEGQuality {
		return MinJPEGQuality
	}
	if q > MaxJPEGQuality {
		return MaxJPEGQuality
	}
	return q
}

// Capture shells out to ffmpeg to grab a single JPEG frame from streamURL.
func Capture(ctx context.Context, ffmpegPath, streamURL string, quality int) ([]byte, error) {
	q := strconv.Itoa(ClampQuality(quality))
	args := []string{
		"-rtsp_transport", "tcp",
		"-i", streamURL,
		"-vframes", "1",
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", q,
		"pipe:1",
	}
	return ffmpegrun.Execute(ctx, ffmpegPath, args)
}
