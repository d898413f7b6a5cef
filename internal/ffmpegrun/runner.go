// Package ffmpegrun spawns ffmpeg/ffprobe subprocesses (component C1): a
// blocking one-shot Execute for ffprobe-style calls, and a fire-and-forget
// SpawnStreaming that pumps a child's stdout into a broadcast.Bus. Grounded
// on torrent-engine's FFmpegProcess (internal/api/http/streaming_ffmpeg.go)
// for exec.Cmd lifecycle shape, and on original_source/capturer-svr's
// ffmpeg_cmd.rs for the read-loop/exit-signal/tolerance contract.
package ffmpegrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rusthing/capturer/internal/broadcast"
	"github.com/rusthing/capturer/internal/domain"
)

// DefaultReadBufferSize is the chunk size used when the caller passes 0.
const DefaultReadBufferSize = 65536

// noSubscriberTolerance is how long SpawnStreaming keeps a child alive while
// every send to its bus fails with broadcast.ErrNoSubscribers.
const noSubscriberTolerance = 30 * time.Second

// Execute runs program with args to completion and returns its stdout.
// Non-zero exit is reported as domain.ErrCmdRunFail wrapping the captured
// stderr; failure to start the process is domain.ErrCmdSpawnFail.
func Execute(ctx context.Context, program string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCmdRunFail, stderr.String())
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCmdSpawnFail, err)
	}
	return stdout.Bytes(), nil
}

// ChildHandle identifies a streaming subprocess started by SpawnStreaming.
type ChildHandle struct {
	Pid int

	mu     sync.Mutex
	cmd    *exec.Cmd
	killed bool
}

// Kill terminates the child if it is still alive. Idempotent.
func (c *ChildHandle) Kill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.killed {
		return
	}
	c.killed = true
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

// SpawnStreaming starts program with args, capturing stdout. A background
// goroutine reads up to readBufferSize bytes at a time (DefaultReadBufferSize
// when readBufferSize <= 0) and forwards each chunk to dataOut.Send. On EOF
// or a read error the bus is closed, exitSignal receives exactly one value,
// and the child is killed if still running.
//
// A run of consecutive broadcast.ErrNoSubscribers results from Send is
// tolerated for up to 30s; a successful send resets the clock. If the
// drought persists past that, the child is killed early as if it had exited.
func SpawnStreaming(ctx context.Context, program string, args []string, dataOut *broadcast.Bus, exitSignal chan<- struct{}, readBufferSize int) (*ChildHandle, error) {
	if readBufferSize <= 0 {
		readBufferSize = DefaultReadBufferSize
	}

	cmd := exec.CommandContext(ctx, program, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCmdSpawnFail, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCmdSpawnFail, err)
	}

	handle := &ChildHandle{Pid: cmd.Process.Pid, cmd: cmd}

	go pumpStdout(stdout, dataOut, exitSignal, handle, readBufferSize)

	return handle, nil
}

func pumpStdout(stdout io.ReadCloser, dataOut *broadcast.Bus, exitSignal chan<- struct{}, handle *ChildHandle, readBufferSize int) {
	var noSubscriberSince time.Time

	finish := func() {
		dataOut.Close()
		select {
		case exitSignal <- struct{}{}:
		default:
		}
		handle.Kill()
	}

	buf := make([]byte, readBufferSize)
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sendErr := dataOut.Send(chunk)
			switch {
			case sendErr == nil:
				noSubscriberSince = time.Time{}
			case errors.Is(sendErr, broadcast.ErrNoSubscribers):
				if noSubscriberSince.IsZero() {
					noSubscriberSince = time.Now()
				} else if time.Since(noSubscriberSince) > noSubscriberTolerance {
					finish()
					return
				}
			default:
				finish()
				return
			}
		}
		if readErr != nil {
			finish()
			return
		}
	}
}
