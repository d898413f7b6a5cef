// Package ffprobe invokes ffprobe to recover enough codec metadata to pick
// an ffmpeg transcode argv (component C2). Grounded on torrent-engine's own
// probe package (internal/services/torrent/engine/ffprobe) and on
// original_source/capturer-svr/src/ffmpeg/ffmpeg_cmd.rs's probe_stream_info,
// whose codec/fps mapping this package reproduces with Go int arithmetic
// (at least 32 bits) instead of the original's silently-truncating u8
// parse: fps as num/den
// should not be parsed into 8-bit integers, since real-world rates like
// 30000/1001 would truncate to garbage before the division even runs.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rusthing/capturer/internal/domain"
	"github.com/rusthing/capturer/internal/metrics"
)

// Prober runs ffprobe against a single binary path.
type Prober struct {
	binary string
}

// New returns a Prober. An empty binary falls back to "ffprobe" on PATH.
func New(binary string) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{binary: bin}
}

// Probe runs ffprobe against url and parses the resulting StreamMetadata.
func (p *Prober) Probe(ctx context.Context, url string) (domain.StreamMetadata, error) {
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "error",
		"-show_streams",
		"-show_entries", "stream=codec_type,codec_name,width,height,r_frame_rate,sample_rate",
		"-of", "json",
		url,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	if runErr != nil {
		if _, ok := runErr.(*exec.Error); ok {
			metrics.ProbeFailuresTotal.WithLabelValues("spawn").Inc()
			return domain.StreamMetadata{}, fmt.Errorf("%w: %v", domain.ErrFfprobeCmd, runErr)
		}
		metrics.ProbeFailuresTotal.WithLabelValues("spawn").Inc()
		msg := strings.TrimSpace(stderr.String())
		return domain.StreamMetadata{}, fmt.Errorf("%w: %s", domain.ErrFfprobeCmd, msg)
	}

	meta, err := parse(stdout.Bytes())
	if err != nil {
		metrics.ProbeFailuresTotal.WithLabelValues(probeFailureKind(err)).Inc()
	}
	return meta, err
}

func probeFailureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrFfprobeParseUTF8):
		return "utf8"
	case errors.Is(err, domain.ErrFfprobeParseJSON):
		return "json"
	case errors.Is(err, domain.ErrFfprobeParseStructure):
		return "structure"
	default:
		return "unknown"
	}
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	SampleRate string `json:"sample_rate"`
}

func parse(raw []byte) (domain.StreamMetadata, error) {
	if !utf8.Valid(raw) {
		return domain.StreamMetadata{}, domain.ErrFfprobeParseUTF8
	}

	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.StreamMetadata{}, fmt.Errorf("%w: %v", domain.ErrFfprobeParseJSON, err)
	}

	meta := domain.StreamMetadata{Audio: domain.AudioCodec{Kind: domain.AudioAbsent}}
	sawVideo := false

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if s.CodecName == "" {
				return domain.StreamMetadata{}, fmt.Errorf("%w: no video codec", domain.ErrFfprobeParseStructure)
			}
			meta.Video = mapVideoCodec(s.CodecName)
			meta.Width = s.Width
			meta.Height = s.Height
			meta.FPS, meta.FPSKnown = parseFrameRate(s.RFrameRate)
			sawVideo = true
		case "audio":
			meta.Audio = mapAudioCodec(s.CodecName)
			if s.SampleRate != "" {
				if rate, err := strconv.Atoi(s.SampleRate); err == nil {
					meta.SampleRate = rate
				}
			}
		}
	}

	if !sawVideo {
		return domain.StreamMetadata{}, fmt.Errorf("%w: no video codec", domain.ErrFfprobeParseStructure)
	}

	return meta, nil
}

func mapVideoCodec(name string) domain.VideoCodec {
	switch name {
	case "h264":
		return domain.VideoCodec{Kind: domain.VideoH264}
	case "hevc":
		return domain.VideoCodec{Kind: domain.VideoH265}
	default:
		return domain.VideoCodec{Kind: domain.VideoOther, Name: name}
	}
}

func mapAudioCodec(name string) domain.AudioCodec {
	switch name {
	case "":
		return domain.AudioCodec{Kind: domain.AudioUnknown}
	case "aac":
		return domain.AudioCodec{Kind: domain.AudioAAC}
	case "mp2":
		return domain.AudioCodec{Kind: domain.AudioMP2}
	case "mp3":
		return domain.AudioCodec{Kind: domain.AudioMP3}
	case "pcm_mulaw":
		return domain.AudioCodec{Kind: domain.AudioG711Mu}
	case "pcm_alaw":
		return domain.AudioCodec{Kind: domain.AudioG711A}
	case "adpcm_g726le":
		return domain.AudioCodec{Kind: domain.AudioG726}
	default:
		return domain.AudioCodec{Kind: domain.AudioNotSupported, Name: name}
	}
}

// parseFrameRate parses ffprobe's "num/den" r_frame_rate using Go int
// arithmetic (at least 32 bits); the quotient is truncated toward zero, so
// 30000/1001 yields 29. den == 0, or either half failing to parse, yields
// unknown.
func parseFrameRate(raw string) (fps int, known bool) {
	pos := strings.IndexByte(raw, '/')
	if pos < 0 {
		return 0, false
	}
	num, errNum := strconv.Atoi(raw[:pos])
	den, errDen := strconv.Atoi(raw[pos+1:])
	if errNum != nil || errDen != nil || den == 0 {
		return 0, false
	}
	return num / den, true
}
