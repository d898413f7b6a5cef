package domain

import "errors"

// Sentinel errors identifying the probe/argv/runtime failure taxonomy.
// Concrete failures wrap one of these with fmt.Errorf("%w: ...") so callers
// can branch with errors.Is while still seeing the underlying cause.
var (
	ErrFfprobeCmd            = errors.New("ffprobe command failed")
	ErrFfprobeParseUTF8      = errors.New("ffprobe output is not valid utf-8")
	ErrFfprobeParseJSON      = errors.New("ffprobe output is not valid json")
	ErrFfprobeParseStructure = errors.New("ffprobe output missing required fields")

	ErrCmdSpawnFail = errors.New("failed to spawn subprocess")
	ErrCmdRunFail   = errors.New("subprocess exited with a non-zero status")

	ErrSessionNotFound = errors.New("session not found")
)
