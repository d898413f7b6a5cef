// Package ffmpegargs builds the ffmpeg argument vector used to transcode an
// RTSP source to FLV on stdout (component C3). Grounded on torrent-engine's
// buildStreamingFFmpegArgs (internal/api/http/streaming_ffmpeg.go): a pure
// function over a value-type config, no I/O, deterministic output.
package ffmpegargs

import (
	"fmt"

	"github.com/rusthing/capturer/internal/domain"
)

// mp3CopySampleRates are the sample rates at which an MP3 source can be
// passed through unmodified; anything else is re-encoded to AAC.
var mp3CopySampleRates = map[int]bool{44100: true, 22050: true, 11025: true}

// Build returns the ffmpeg argv for streaming url as FLV to stdout, given
// its probed metadata. Build is pure: identical inputs yield identical
// output, byte for byte.
func Build(url string, meta domain.StreamMetadata) ([]string, error) {
	if meta.Video.Kind == domain.VideoUnset {
		return nil, fmt.Errorf("%w: no video codec", domain.ErrFfprobeParseStructure)
	}

	args := []string{
		"-rtsp_transport", "tcp",
		"-i", url,
		"-f", "flv",
		"-flvflags", "no_duration_filesize",
	}

	args = append(args, videoArgs(meta.Video)...)
	args = append(args, audioArgs(meta.Audio, meta.SampleRate)...)
	args = append(args, "pipe:1")
	return args, nil
}

func videoArgs(v domain.VideoCodec) []string {
	if v.Kind == domain.VideoH264 {
		return []string{"-c:v", "copy"}
	}
	return []string{
		"-c:v", "libx264",
		"-preset", "superfast",
		"-tune", "zerolatency",
		"-crf", "32",
		"-profile:v", "baseline",
		"-threads", "1",
	}
}

func audioArgs(a domain.AudioCodec, sampleRate int) []string {
	switch a.Kind {
	case domain.AudioAAC:
		return []string{"-c:a", "copy"}
	case domain.AudioMP3:
		if mp3CopySampleRates[sampleRate] {
			return []string{"-c:a", "copy"}
		}
		return []string{"-c:a", "aac"}
	case domain.AudioUnknown, domain.AudioNotSupported, domain.AudioAbsent:
		return []string{"-an"}
	default:
		return []string{"-c:a", "aac"}
	}
}
