package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/Iron-Ham/quorum/internal/errors"
	"github.com/Iron-Ham/quorum/internal/event"
	"github.com/Iron-Ham/quorum/internal/protocol"
)

const (
	// maxStderrBytes bounds the stderr tail kept for error context.
	maxStderrBytes = 64 << 10

	// scanSlack is extra scanner headroom past the output cap so the cap
	// is detected by byte accounting rather than a token-too-long error.
	scanSlack = 64 << 10
)

// attemptOutcome carries what a single worker run produced, independent of
// how the attempt is classified.
type attemptOutcome struct {
	exitCode     int
	signal       string
	output       string
	truncated    bool
	workerReason string
}

// runAttempt spawns one worker process and supervises it to completion.
// It returns only after the process has terminated: the command is waited
// on in every path, so a nil-or-not return implies the worker is gone.
func (s *Supervisor) runAttempt(ctx context.Context, req Request, inv *invocation) (attemptOutcome, error) {
	out := attemptOutcome{exitCode: -1}

	attemptCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	cmd := exec.Command(req.Command[0], req.Command[1:]...)
	cmd.Dir = req.Dir
	cmd.Env = buildEnv(s.envAllowlist, req.ExtraEnv)

	stderr := newCappedBuffer(maxStderrBytes)
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return out, errors.NewProcessError("opening worker stdin failed", err).
			WithKind("start_failed").
			WithTaskID(req.TaskID)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return out, errors.NewProcessError("opening worker stdout failed", err).
			WithKind("start_failed").
			WithTaskID(req.TaskID)
	}

	if err := cmd.Start(); err != nil {
		return out, errors.NewProcessError(errors.Sanitize(err.Error()), errors.ErrWorkerStartFailed).
			WithKind("start_failed").
			WithTaskID(req.TaskID)
	}

	// Prompt goes over stdin, then stdin closes so the worker sees EOF.
	go func() {
		if prompt := strings.TrimSpace(req.Prompt); prompt != "" {
			_, _ = io.WriteString(stdin, prompt+"\n")
		}
		_ = stdin.Close()
	}()

	// Timeout and out-of-band stop both funnel into the same escalating,
	// verified termination.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-attemptCtx.Done():
			_ = terminate(cmd.Process, s.grace)
		case <-inv.stopCh:
			_ = terminate(cmd.Process, s.grace)
		case <-done:
		}
	}()

	capExceeded := s.consumeStream(stdout, req, &out)
	if capExceeded {
		// Nobody reads the pipe past the cap; kill the worker so Wait
		// cannot block on a full pipe.
		_ = terminate(cmd.Process, s.grace)
	}

	waitErr := cmd.Wait()
	out.exitCode = cmd.ProcessState.ExitCode()
	out.signal = exitSignal(cmd)

	return out, s.classifyAttempt(ctx, attemptCtx, req, inv, &out, waitErr, capExceeded, stderr.String())
}

// consumeStream reads the worker's stdout line by line until EOF or the
// output cap. Reports whether the cap was exceeded; on cap the process is
// terminated so the pipe drains immediately.
func (s *Supervisor) consumeStream(stdout io.Reader, req Request, out *attemptOutcome) bool {
	var text strings.Builder
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64<<10), int(req.MaxOutputBytes)+scanSlack)

	var bytesRead int64
	capExceeded := false
	malformed := 0

	for scanner.Scan() {
		line := scanner.Bytes()
		bytesRead += int64(len(line)) + 1
		if bytesRead > req.MaxOutputBytes {
			capExceeded = true
			out.truncated = true
			break
		}

		rec, err := protocol.ParseLine(line)
		if err != nil {
			// Untrusted stream: skip bad lines, never abort on them.
			malformed++
			continue
		}
		s.handleRecord(rec, req, &text)
	}
	if err := scanner.Err(); err == bufio.ErrTooLong {
		capExceeded = true
		out.truncated = true
	}
	if malformed > 0 {
		s.logger.WithTask(req.TaskID).Warn("skipped malformed worker records", "count", malformed)
	}

	out.output = text.String()
	return capExceeded
}

func (s *Supervisor) handleRecord(rec protocol.Record, req Request, text *strings.Builder) {
	switch rec.Type {
	case protocol.RecordAssistant:
		for _, delta := range rec.TextDeltas() {
			text.WriteString(delta)
			if req.OnDelta != nil {
				req.OnDelta(delta)
			}
			s.publish(event.NewAgentOutputEvent(req.TaskID, delta))
		}
		if s.sink != nil {
			s.sink.OnAssistantContent(rec.Content)
		}
	case protocol.RecordToolResult:
		if s.sink != nil {
			s.sink.OnToolResult(rec)
		}
	case protocol.RecordResult:
		s.recordTerminal(rec, req)
	}
}

func (s *Supervisor) recordTerminal(rec protocol.Record, req Request) {
	s.mu.Lock()
	inv := s.active[req.TaskID]
	s.mu.Unlock()
	if inv == nil {
		return
	}
	inv.mu.Lock()
	inv.terminalStatus = rec.Status
	inv.terminalReason = rec.Reason
	inv.mu.Unlock()
}

// classifyAttempt turns the raw process outcome into a structured error,
// or nil on success. Classification uses exit codes, signals, and kinds
// only; worker output text never influences it.
func (s *Supervisor) classifyAttempt(ctx, attemptCtx context.Context, req Request, inv *invocation, out *attemptOutcome, waitErr error, capExceeded bool, stderrTail string) error {
	status, reason := inv.terminal()
	out.workerReason = reason

	switch {
	case inv.stopRequested():
		return errors.Wrapf(errors.ErrCanceled, "task %s stopped", req.TaskID)

	case ctx.Err() != nil:
		return errors.Wrapf(errors.ErrCanceled, "task %s cancelled", req.TaskID)

	case attemptCtx.Err() == context.DeadlineExceeded:
		return errors.NewTimeoutError("worker invocation", req.Timeout)

	case capExceeded:
		return errors.Wrapf(errors.ErrBufferExceeded, "task %s output exceeded %d bytes", req.TaskID, req.MaxOutputBytes)
	}

	if waitErr == nil {
		if status == protocol.StatusFailure {
			return errors.NewProcessError(errors.Sanitize(reason), nil).
				WithKind("worker_failure").
				WithTaskID(req.TaskID).
				WithRole(req.Role)
		}
		return nil
	}

	procErr := errors.NewProcessError(errors.Sanitize(firstLine(stderrTail)), nil).
		WithTaskID(req.TaskID).
		WithRole(req.Role)
	if out.signal != "" {
		return procErr.WithSignal(strings.ToLower(out.signal))
	}
	return procErr.WithExitCode(out.exitCode)
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "worker exited abnormally"
	}
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return text
}

// cappedBuffer is a size-bounded write sink. Writes past the cap are
// discarded, never buffered.
type cappedBuffer struct {
	mu        sync.Mutex
	max       int
	buf       bytes.Buffer
	truncated bool
}

func newCappedBuffer(max int) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(p)
	remaining := c.max - c.buf.Len()
	if remaining <= 0 {
		c.truncated = true
		return n, nil
	}
	if len(p) > remaining {
		p = p[:remaining]
		c.truncated = true
	}
	_, _ = c.buf.Write(p)
	return n, nil
}

func (c *cappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}
