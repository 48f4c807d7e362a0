// Package spawn implements the Singleton Spawner (C8): at most one broker
// runs on a host at a time, even when many tool-server processes start
// concurrently. Grounded on a lock-file + PID-file + HTTP discovery probe
// protocol (the shape a cross-process daemon-takeover implementation in
// the example pack uses), adapted here from "takeover" semantics to
// "reuse existing, else spawn".
package spawn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	gopsprocess "github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// Result describes the broker a caller ended up talking to, whether it was
// already running or freshly spawned by this call.
type Result struct {
	AlreadyRunning bool
	Discovery      Discovery
}

// Discovery mirrors the /discover response's JSON shape.
type Discovery struct {
	Identifier string `json:"identifier"`
	ServerID   string `json:"serverId"`
	WSHost     string `json:"wsHost"`
	WSPort     int    `json:"wsPort"`
	WSURL      string `json:"wsUrl"`
	Timestamp  int64  `json:"timestamp"`
}

// lockRecord is the JSON body of the cross-process lock file.
type lockRecord struct {
	PID       int    `json:"pid"`
	UpdatedAt string `json:"updatedAt"`
}

// Options configures one Ensure call.
type Options struct {
	DiscoveryPort int
	LockTimeout   time.Duration
	ReadyTimeout  time.Duration

	// BrokerBinary and Args describe how to exec the detached broker
	// process; BrokerBinary defaults to the currently running executable.
	BrokerBinary string
	Args         []string

	// BaseDir overrides the directory holding the lock file, PID file, and
	// stdout/stderr logs; defaults to os.TempDir().
	BaseDir string
}

func (o Options) baseDir() string {
	if o.BaseDir != "" {
		return o.BaseDir
	}
	return os.TempDir()
}

func (o Options) lockPath() string  { return filepath.Join(o.baseDir(), "console-mcp-broker.lock.json") }
func (o Options) pidPath() string   { return filepath.Join(o.baseDir(), "console-mcp-broker.pid") }
func (o Options) outLogPath() string {
	return filepath.Join(o.baseDir(), "console-mcp-broker.stdout.log")
}
func (o Options) errLogPath() string {
	return filepath.Join(o.baseDir(), "console-mcp-broker.stderr.log")
}

func (o Options) discoverURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/discover", o.DiscoveryPort)
}

// Ensure probes for a running broker and, if none answers, spawns one,
// following the protocol in §4.7: probe, acquire lock, re-probe, spawn,
// wait for readiness, release. log may be nil, in which case Ensure runs
// silently.
func Ensure(ctx context.Context, log *zap.SugaredLogger, opts Options) (Result, error) {
	if d, ok := probe(ctx, opts, time.Second); ok {
		logInfow(log, "found running broker", "serverId", d.ServerID)
		return Result{AlreadyRunning: true, Discovery: d}, nil
	}

	logInfow(log, "no broker answered /discover, acquiring spawn lock")
	release, err := acquireLock(opts)
	if err != nil {
		logErrorw(log, "failed to acquire spawn lock", "error", err)
		return Result{}, fmt.Errorf("acquire spawn lock: %w", err)
	}
	defer release()

	if d, ok := probe(ctx, opts, time.Second); ok {
		logInfow(log, "broker appeared while waiting for the spawn lock", "serverId", d.ServerID)
		return Result{AlreadyRunning: true, Discovery: d}, nil
	}

	logInfow(log, "spawning detached broker process")
	if err := spawnDetached(opts); err != nil {
		logErrorw(log, "failed to spawn broker", "error", err)
		return Result{}, fmt.Errorf("spawn broker: %w", err)
	}

	d, ok := waitForReady(ctx, opts)
	if !ok {
		logErrorw(log, "spawned broker did not become ready", "timeout", opts.ReadyTimeout)
		return Result{}, fmt.Errorf("broker did not become ready within %s", opts.ReadyTimeout)
	}
	logInfow(log, "spawned broker is ready", "serverId", d.ServerID)
	return Result{AlreadyRunning: false, Discovery: d}, nil
}

// logInfow and logErrorw no-op when log is nil, so callers that don't care
// about spawn diagnostics (e.g. tests) can pass nil.
func logInfow(log *zap.SugaredLogger, msg string, kv ...interface{}) {
	if log != nil {
		log.Infow(msg, kv...)
	}
}

func logErrorw(log *zap.SugaredLogger, msg string, kv ...interface{}) {
	if log != nil {
		log.Errorw(msg, kv...)
	}
}

func probe(ctx context.Context, opts Options, timeout time.Duration) (Discovery, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.discoverURL(), nil)
	if err != nil {
		return Discovery{}, false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Discovery{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Discovery{}, false
	}

	var d Discovery
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return Discovery{}, false
	}
	return d, true
}

func waitForReady(ctx context.Context, opts Options) (Discovery, bool) {
	deadline := time.Now().Add(opts.ReadyTimeout)
	for time.Now().Before(deadline) {
		if d, ok := probe(ctx, opts, 500*time.Millisecond); ok {
			return d, true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return Discovery{}, false
}

// acquireLock takes the cross-process file lock, reclaiming it if the PID
// it names is no longer alive. It bounds the whole acquisition by
// opts.LockTimeout. There is no file-locking library anywhere in the
// example pack (see DESIGN.md), so this uses O_EXCL on the standard
// library's os package as the mutual-exclusion primitive.
func acquireLock(opts Options) (release func(), err error) {
	deadline := time.Now().Add(opts.LockTimeout)
	path := opts.lockPath()

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			rec := lockRecord{PID: os.Getpid(), UpdatedAt: time.Now().UTC().Format(time.RFC3339)}
			enc := json.NewEncoder(f)
			_ = enc.Encode(rec)
			f.Close()
			return func() { _ = os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}

		if reclaimIfStale(path) {
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for lock at %s", path)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func reclaimIfStale(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return os.IsNotExist(err)
	}
	var rec lockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		_ = os.Remove(path)
		return true
	}
	if rec.PID <= 0 || !processAlive(rec.PID) {
		_ = os.Remove(path)
		return true
	}
	return false
}

// processAlive reports whether pid names a live process, using gopsutil so
// the check works the same way across the platforms gopsutil supports
// rather than relying on the Unix-only "signal 0" trick.
func processAlive(pid int) bool {
	running, err := gopsprocess.PidExists(int32(pid))
	if err != nil {
		return false
	}
	return running
}

// spawnDetached execs the broker as a fully detached process with
// stdout/stderr redirected to well-known log files; the child is
// responsible for writing and removing its own PID file.
func spawnDetached(opts Options) error {
	bin := opts.BrokerBinary
	if bin == "" {
		self, err := os.Executable()
		if err != nil {
			return err
		}
		bin = self
	}

	outLog, err := os.OpenFile(opts.outLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	errLog, err := os.OpenFile(opts.errLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		outLog.Close()
		return err
	}

	cmd := exec.Command(bin, opts.Args...)
	cmd.Stdout = outLog
	cmd.Stderr = errLog
	cmd.Stdin = nil
	detachProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		outLog.Close()
		errLog.Close()
		return err
	}

	// The parent does not wait for the child; it owns its own lifetime
	// from here, writing and removing its own PID file on start/exit.
	go func() {
		_ = cmd.Wait()
		outLog.Close()
		errLog.Close()
	}()

	return nil
}

// WritePIDFile and RemovePIDFile are called by the broker process itself
// (cmd/broker), not by the spawner, per the protocol's "child writes its
// own PID file" step.

// WritePIDFile records the current process's PID at the well-known path.
// Ensure does not read this file; it detects a running broker by probing
// /discover.
func WritePIDFile(opts Options) error {
	return os.WriteFile(opts.pidPath(), []byte(fmt.Sprintf("%d", os.Getpid())), 0o600)
}

// RemovePIDFile deletes the PID file on clean shutdown.
func RemovePIDFile(opts Options) error {
	err := os.Remove(opts.pidPath())
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
