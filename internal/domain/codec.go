// Package domain holds the codec and stream-metadata types shared between
// the probe, argv builder, and stream session layers.
package domain

// VideoCodecKind identifies the coarse video codec family reported by ffprobe.
type VideoCodecKind int

const (
	VideoUnset VideoCodecKind = iota
	VideoH264
	VideoH265
	VideoOther
)

// VideoCodec is a closed sum type: Kind selects the variant, Name carries
// the raw ffprobe codec_name string for the Other variant (and is left
// empty for H264/H265).
type VideoCodec struct {
	Kind VideoCodecKind
	Name string
}

func (c VideoCodec) String() string {
	switch c.Kind {
	case VideoH264:
		return "h264"
	case VideoH265:
		return "h265"
	case VideoOther:
		return "other(" + c.Name + ")"
	default:
		return "unset"
	}
}

// AudioCodecKind identifies the coarse audio codec family reported by ffprobe.
type AudioCodecKind int

const (
	AudioAbsent AudioCodecKind = iota
	AudioUnknown
	AudioAAC
	AudioMP2
	AudioMP3
	AudioG711Mu
	AudioG711A
	AudioG726
	AudioNotSupported
)

// AudioCodec mirrors VideoCodec's closed-sum-type shape: Name carries the
// raw codec_name for AudioNotSupported, kept for observability; the argv
// builder does not read it.
type AudioCodec struct {
	Kind AudioCodecKind
	Name string
}

func (c AudioCodec) String() string {
	switch c.Kind {
	case AudioAbsent:
		return "absent"
	case AudioUnknown:
		return "unknown"
	case AudioAAC:
		return "aac"
	case AudioMP2:
		return "mp2"
	case AudioMP3:
		return "mp3"
	case AudioG711Mu:
		return "g711mu"
	case AudioG711A:
		return "g711a"
	case AudioG726:
		return "g726"
	case AudioNotSupported:
		return "unsupported(" + c.Name + ")"
	default:
		return "unset"
	}
}

// StreamMetadata is the probed subset of an RTSP source's codec
// parameters used to pick an ffmpeg transcode argv (C3).
type StreamMetadata struct {
	Video      VideoCodec
	Width      int
	Height     int
	FPS        int  // 0 means unknown (denominator was 0, or r_frame_rate was unparsable)
	FPSKnown   bool
	Audio      AudioCodec
	SampleRate int // 0 means absent/unknown
}
