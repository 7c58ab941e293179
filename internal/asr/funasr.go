package asr

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"tingxie/internal/config"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// FunASR runs the recognition worker as a long-lived subprocess. Construction
// is expensive (the worker loads model weights); instances are meant to be
// shared for the whole process, see Shared.
type FunASR struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	stderr *tailBuffer
	logger *logrus.Logger

	mu     sync.Mutex // serializes the request/response protocol
	exited chan struct{}
	closed bool
}

type workerRequest struct {
	Audio string `json:"audio"`
}

type workerResponse struct {
	Ready bool   `json:"ready,omitempty"`
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// NewFunASR verifies the model directories, spawns the worker, and waits for
// its ready handshake. A missing model directory yields NotReadyError naming
// the path; all transcription must stay blocked until the models exist.
func NewFunASR(cfg *config.Config, logger *logrus.Logger) (*FunASR, error) {
	asrDir, vadDir, puncDir := cfg.ModelDirs()
	for _, dir := range []string{asrDir, vadDir, puncDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return nil, &NotReadyError{Path: dir, Err: err}
		}
	}

	extra, err := shlex.Split(cfg.Engine.WorkerArgs)
	if err != nil {
		return nil, fmt.Errorf("parse engine.worker_args: %w", err)
	}
	args := append(extra,
		"--asr-model", asrDir,
		"--vad-model", vadDir,
		"--punc-model", puncDir,
	)

	cmd := exec.Command(cfg.Engine.WorkerCommand, args...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("MODELSCOPE_CACHE=%s", cfg.Models.CacheDir))
	for k, v := range cfg.Engine.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}
	stderr := &tailBuffer{limit: 8 * 1024}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start recognition worker %q: %w", cfg.Engine.WorkerCommand, err)
	}

	e := &FunASR{
		cmd:    cmd,
		stdin:  stdin,
		reader: bufio.NewReader(stdout),
		stderr: stderr,
		logger: logger,
		exited: make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(e.exited)
	}()

	timeout := time.Duration(cfg.Engine.StartupTimeoutSec * float64(time.Second))
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if err := e.awaitReady(timeout); err != nil {
		_ = e.Close()
		return nil, err
	}
	logger.Infof("recognition worker ready (pid %d)", cmd.Process.Pid)
	return e, nil
}

func (e *FunASR) awaitReady(timeout time.Duration) error {
	type readyResult struct {
		resp workerResponse
		err  error
	}
	ch := make(chan readyResult, 1)
	go func() {
		var r readyResult
		r.err = e.readLine(&r.resp)
		ch <- r
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("recognition worker handshake: %w (stderr: %s)", r.err, e.stderr.Tail())
		}
		if r.resp.Error != "" {
			return fmt.Errorf("recognition worker failed to load models: %s", r.resp.Error)
		}
		if !r.resp.Ready {
			return fmt.Errorf("recognition worker sent unexpected handshake")
		}
		return nil
	case <-e.exited:
		return fmt.Errorf("recognition worker exited during startup (stderr: %s)", e.stderr.Tail())
	case <-time.After(timeout):
		return fmt.Errorf("recognition worker did not become ready within %s", timeout)
	}
}

// Transcribe sends one audio path to the worker and waits for its text. The
// protocol is strict request/response over pipes, so calls are serialized; a
// failed call only fails its own request.
func (e *FunASR) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !e.alive() {
		return Result{}, &InvocationError{Err: fmt.Errorf("recognition worker is not running")}
	}

	enc := json.NewEncoder(e.stdin)
	if err := enc.Encode(workerRequest{Audio: audioPath}); err != nil {
		return Result{}, &InvocationError{Err: fmt.Errorf("send request: %w", err)}
	}
	var resp workerResponse
	if err := e.readLine(&resp); err != nil {
		return Result{}, &InvocationError{Err: fmt.Errorf("read response: %w (stderr: %s)", err, e.stderr.Tail())}
	}
	if resp.Error != "" {
		return Result{}, &InvocationError{Err: fmt.Errorf("%s", resp.Error)}
	}
	return Result{Text: resp.Text}, nil
}

func (e *FunASR) readLine(resp *workerResponse) error {
	line, err := e.reader.ReadBytes('\n')
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes.TrimSpace(line), resp)
}

func (e *FunASR) alive() bool {
	select {
	case <-e.exited:
		return false
	default:
		return true
	}
}

// Alive reports whether the worker process is still running.
func (e *FunASR) Alive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed && e.alive()
}

// Close terminates the worker. Safe to call more than once.
func (e *FunASR) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	_ = e.stdin.Close()
	select {
	case <-e.exited:
	case <-time.After(3 * time.Second):
		if e.cmd.Process != nil {
			_ = e.cmd.Process.Kill()
		}
		<-e.exited
	}
	return nil
}

// tailBuffer keeps the last limit bytes written, enough stderr for diagnostics
// without holding a chatty worker's full output.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.limit {
		b.buf = b.buf[len(b.buf)-b.limit:]
	}
	return len(p), nil
}

func (b *tailBuffer) Tail() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
