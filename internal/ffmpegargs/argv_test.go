package ffmpegargs

import (
	"reflect"
	"testing"

	"github.com/rusthing/capturer/internal/domain"
)

func TestBuild_FixtureS2_H265WithG711Mu(t *testing.T) {
	meta := domain.StreamMetadata{
		Video: domain.VideoCodec{Kind: domain.VideoH265},
		Audio: domain.AudioCodec{Kind: domain.AudioG711Mu},
	}
	got, err := Build("<url>", meta)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{
		"-rtsp_transport", "tcp", "-i", "<url>", "-f", "flv", "-flvflags", "no_duration_filesize",
		"-c:v", "libx264", "-preset", "superfast", "-tune", "zerolatency", "-crf", "32",
		"-profile:v", "baseline", "-threads", "1",
		"-c:a", "aac",
		"pipe:1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got  %#v\nwant %#v", got, want)
	}
}

func TestBuild_FixtureS3_H264WithMP3At22050(t *testing.T) {
	meta := domain.StreamMetadata{
		Video:      domain.VideoCodec{Kind: domain.VideoH264},
		Audio:      domain.AudioCodec{Kind: domain.AudioMP3},
		SampleRate: 22050,
	}
	got, err := Build("<url>", meta)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{
		"-rtsp_transport", "tcp", "-i", "<url>", "-f", "flv", "-flvflags", "no_duration_filesize",
		"-c:v", "copy",
		"-c:a", "copy",
		"pipe:1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got  %#v\nwant %#v", got, want)
	}
}

func TestBuild_FixtureS4_H264NoAudio(t *testing.T) {
	meta := domain.StreamMetadata{
		Video: domain.VideoCodec{Kind: domain.VideoH264},
		Audio: domain.AudioCodec{Kind: domain.AudioAbsent},
	}
	got, err := Build("<url>", meta)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{
		"-rtsp_transport", "tcp", "-i", "<url>", "-f", "flv", "-flvflags", "no_duration_filesize",
		"-c:v", "copy",
		"-an",
		"pipe:1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got  %#v\nwant %#v", got, want)
	}
}

func TestBuild_MissingVideoCodec_Errors(t *testing.T) {
	_, err := Build("<url>", domain.StreamMetadata{})
	if err == nil {
		t.Fatal("expected error for unset video codec")
	}
}

func TestBuild_MP3AtUnsupportedRate_ReencodesToAAC(t *testing.T) {
	meta := domain.StreamMetadata{
		Video:      domain.VideoCodec{Kind: domain.VideoH264},
		Audio:      domain.AudioCodec{Kind: domain.AudioMP3},
		SampleRate: 48000,
	}
	got, err := Build("<url>", meta)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{
		"-rtsp_transport", "tcp", "-i", "<url>", "-f", "flv", "-flvflags", "no_duration_filesize",
		"-c:v", "copy",
		"-c:a", "aac",
		"pipe:1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got  %#v\nwant %#v", got, want)
	}
}

func TestBuild_OtherVideoCodec_UsesTranscodeBranch(t *testing.T) {
	meta := domain.StreamMetadata{
		Video: domain.VideoCodec{Kind: domain.VideoOther, Name: "vp9"},
		Audio: domain.AudioCodec{Kind: domain.AudioUnknown},
	}
	got, err := Build("<url>", meta)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got[8] != "-c:v" || got[9] != "libx264" {
		t.Fatalf("expected transcode branch for Other video codec, got %#v", got)
	}
}

func TestBuild_IsDeterministic(t *testing.T) {
	meta := domain.StreamMetadata{
		Video:      domain.VideoCodec{Kind: domain.VideoH264},
		Audio:      domain.AudioCodec{Kind: domain.AudioMP3},
		SampleRate: 11025,
	}
	a, errA := Build("rtsp://host/stream", meta)
	b, errB := Build("rtsp://host/stream", meta)
	if errA != nil || errB != nil {
		t.Fatalf("Build errors: %v %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical argv for identical inputs, got %#v vs %#v", a, b)
	}
}
