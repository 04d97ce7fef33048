// Package runtime implements the adapters that drive agents on behalf of a
// session: spawning local CLI subprocesses, proxying to a remote backend,
// and a deterministic in-process mock. Adapters push converted output into
// the session and are the only place agent I/O happens.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bazelment/agenthub/internal/ndjson"
	"github.com/bazelment/agenthub/internal/procattr"
	"github.com/bazelment/agenthub/schema"
	"github.com/bazelment/agenthub/session"
)

// Sink receives adapter output. *session.Session satisfies it.
type Sink interface {
	Ingest(conv schema.Conversion)
	Exit(err error)
}

// DefaultStopGrace is how long a stopping process gets between SIGTERM and
// SIGKILL.
const DefaultStopGrace = 5 * time.Second

// stderrTailLimit bounds how much stderr is retained for error reports.
const stderrTailLimit = 8 * 1024

// processAdapter runs one agent CLI subprocess and bridges its NDJSON
// stdout into the session.
type processAdapter struct {
	agent     schema.Agent
	family    *family
	sink      Sink
	logger    *slog.Logger
	workDir   string
	stopGrace time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stopped bool

	done      chan struct{}
	firstLine chan struct{}
	firstOnce sync.Once
}

func newProcessAdapter(p session.Params, f *family, sink Sink, cfg Config, logger *slog.Logger) *processAdapter {
	grace := cfg.StopGrace
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	return &processAdapter{
		agent:     p.Agent,
		family:    f,
		sink:      sink,
		logger:    logger.With("agent", p.Agent),
		workDir:   p.WorkDir,
		stopGrace: grace,
		done:      make(chan struct{}),
		firstLine: make(chan struct{}),
	}
}

// Start resolves the binary, spawns it in its own process group, and begins
// pumping stdout into the session.
func (a *processAdapter) Start(ctx context.Context) error {
	bin, err := exec.LookPath(a.family.bin)
	if err != nil {
		return &CLINotFoundError{Agent: a.agent, Path: a.family.bin, Err: err}
	}

	cmd := exec.Command(bin, a.family.args...)
	cmd.Dir = a.workDir
	procattr.Set(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return &ProcessError{Agent: a.agent, ExitCode: -1, Err: err}
	}

	a.mu.Lock()
	a.cmd = cmd
	a.stdin = stdin
	a.mu.Unlock()

	a.logger.Info("agent process started", "pid", cmd.Process.Pid, "bin", bin)

	go a.pump(stdout, stderr)

	// The ctx deadline bounds spawn plus first output. Only the deadline is
	// taken: the registry cancels ctx as soon as Start returns, while the
	// watchdog has to keep running until the agent speaks.
	if deadline, ok := ctx.Deadline(); ok {
		go a.watchStartup(time.Until(deadline))
	}
	return nil
}

// watchStartup kills a session whose agent produced no output within the
// startup window. A single stdout line disarms it; once armed past the
// deadline it reports the failure, which ends the session and stops the
// process.
func (a *processAdapter) watchStartup(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-a.firstLine:
	case <-a.done:
	case <-timer.C:
		a.logger.Warn("agent produced no output within the startup window", "window", d)
		a.sink.Exit(fmt.Errorf("agent startup: no output within %s", d))
	}
}

// pump reads stdout and stderr until the process exits, then reports the
// exit to the session.
func (a *processAdapter) pump(stdout, stderr io.Reader) {
	var stderrTail strings.Builder
	var g errgroup.Group

	g.Go(func() error {
		r := ndjson.NewReader(stdout)
		for {
			line, err := r.ReadLine()
			if len(line) > 0 {
				a.firstOnce.Do(func() { close(a.firstLine) })
				a.sink.Ingest(a.family.convert(line))
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		}
	})
	g.Go(func() error {
		buf := make([]byte, 4096)
		for {
			n, err := stderr.Read(buf)
			if n > 0 && stderrTail.Len() < stderrTailLimit {
				stderrTail.Write(buf[:n])
			}
			if err != nil {
				return nil
			}
		}
	})

	pumpErr := g.Wait()
	waitErr := a.cmd.Wait()

	a.mu.Lock()
	stopped := a.stopped
	a.mu.Unlock()

	// Unblock Stop before reporting the exit: Exit ends the session, and
	// ending the session calls Stop, which waits on done.
	close(a.done)

	switch {
	case stopped:
		// Session already ended; the exit is expected.
		a.sink.Exit(nil)
	case waitErr != nil:
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		a.sink.Exit(&ProcessError{
			Agent:    a.agent,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderrTail.String()),
			Err:      waitErr,
		})
	case pumpErr != nil:
		a.sink.Exit(fmt.Errorf("reading agent output: %w", pumpErr))
	default:
		a.sink.Exit(nil)
	}
}

// Send writes one user message line to the agent's stdin.
func (a *processAdapter) Send(ctx context.Context, text string) error {
	line, err := a.family.encodeSend(text)
	if err != nil {
		return err
	}
	return a.writeLine(line)
}

// ReplyQuestion forwards an answer to the agent.
func (a *processAdapter) ReplyQuestion(ctx context.Context, p session.Pending, answer string) error {
	if a.family.encodeQuestionReply == nil {
		return fmt.Errorf("agent %s does not ask questions", a.agent)
	}
	line, err := a.family.encodeQuestionReply(p.NativeID, p.Payload, answer)
	if err != nil {
		return err
	}
	return a.writeLine(line)
}

// ReplyPermission forwards an allow/deny decision to the agent.
func (a *processAdapter) ReplyPermission(ctx context.Context, p session.Pending, decision string) error {
	if a.family.encodePermissionReply == nil {
		return fmt.Errorf("agent %s does not request permissions", a.agent)
	}
	line, err := a.family.encodePermissionReply(p.NativeID, p.Payload, decision)
	if err != nil {
		return err
	}
	return a.writeLine(line)
}

func (a *processAdapter) writeLine(line []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stdin == nil {
		return fmt.Errorf("agent process not started")
	}
	if a.stopped {
		return fmt.Errorf("agent process stopped")
	}
	if _, err := a.stdin.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing to agent stdin: %w", err)
	}
	return nil
}

// Stop terminates the process group: SIGTERM, a grace period, then SIGKILL.
// Safe to call repeatedly and after the process already exited.
func (a *processAdapter) Stop() {
	a.mu.Lock()
	if a.stopped || a.cmd == nil {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	cmd := a.cmd
	stdin := a.stdin
	a.mu.Unlock()

	if stdin != nil {
		stdin.Close()
	}
	if err := procattr.SignalGroup(cmd.Process, syscall.SIGTERM); err != nil {
		a.logger.Debug("signaling agent process group", "error", err)
	}

	select {
	case <-a.done:
	case <-time.After(a.stopGrace):
		a.logger.Warn("agent did not exit in time, killing", "grace", a.stopGrace)
		if err := procattr.KillGroup(cmd.Process); err != nil {
			a.logger.Debug("killing agent process group", "error", err)
		}
		<-a.done
	}
}
