package script

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Process is a running converter subprocess.
type Process struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *drainReader
	pipe    io.Closer
	closing chan struct{}
	group   *errgroup.Group
	once    sync.Once
	err     error
}

// drainReader closes done once the stream has ended.
type drainReader struct {
	r    io.Reader
	done chan struct{}
	once sync.Once
}

func (d *drainReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err != nil {
		d.once.Do(func() { close(d.done) })
	}
	return n, err
}

// Spawn starts script. An empty interpreter runs the script directly.
// stderr lines are forwarded to logger at warn level. The process is
// killed when ctx is cancelled.
func Spawn(ctx context.Context, logger *slog.Logger, interpreter, script string) (*Process, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var cmd *exec.Cmd
	if interpreter == "" {
		cmd = exec.CommandContext(ctx, script)
	} else {
		cmd = exec.CommandContext(ctx, interpreter, script)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", script, err)
	}

	p := &Process{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  &drainReader{r: stdout, done: make(chan struct{})},
		pipe:    stdout,
		closing: make(chan struct{}),
		group:   new(errgroup.Group),
	}
	// Wait closes the pipes, so it must not run before stderr is drained
	// and stdout is read to the end or no longer wanted.
	p.group.Go(func() error {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Warn(scanner.Text(), "script", script, "stream", "stderr")
		}
		select {
		case <-p.stdout.done:
		case <-p.closing:
		}
		return cmd.Wait()
	})
	return p, nil
}

// Stdin is the request stream of the process
func (p *Process) Stdin() io.Writer {
	return p.stdin
}

// Stdout is the response stream of the process
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Pid returns the process id
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Abort kills the process and closes its stdout so a pending read
// returns. Close must still be called.
func (p *Process) Abort() {
	_ = p.cmd.Process.Kill()
	_ = p.pipe.Close()
}

// Close closes stdin and waits for the process to exit.
func (p *Process) Close() error {
	p.once.Do(func() {
		_ = p.stdin.Close()
		close(p.closing)
		p.err = p.group.Wait()
	})
	return p.err
}
