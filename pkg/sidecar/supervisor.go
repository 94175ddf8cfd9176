// Package sidecar supervises the two daemons the gateway depends on: the
// DocStore (a PocketBase-compatible document server on loopback) and the
// agent daemon that answers chat requests. It also owns workspace
// scaffolding, pairing-code scraping from daemon output, and keyring
// persistence of the desktop bearer token.
package sidecar

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

const defaultDocStoreAddr = "127.0.0.1:8090"

// Options configures a Supervisor. Empty binary paths disable the respective
// daemon, letting a deployment bring its own.
type Options struct {
	// ConfigDir holds config.toml and the DocStore data directory.
	ConfigDir    string
	WorkspaceDir string

	DocStoreBin        string
	DocStoreAddr       string
	DocStoreDataDir    string
	DocStoreMigrations string

	AgentBin string
	// AgentEnv is appended to the agent daemon's environment, after the
	// supervisor's own variables.
	AgentEnv []string

	Logger *slog.Logger
}

// Supervisor owns the daemon child processes. Shutdown order is always agent
// first, DocStore second, so the agent never sees its store disappear
// mid-request.
type Supervisor struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	docstore *exec.Cmd
	agent    *exec.Cmd

	lines chan string
	wg    sync.WaitGroup
}

// New builds a Supervisor. Nothing is spawned yet.
func New(opts Options) *Supervisor {
	if opts.DocStoreAddr == "" {
		opts.DocStoreAddr = defaultDocStoreAddr
	}
	if opts.DocStoreDataDir == "" {
		opts.DocStoreDataDir = filepath.Join(opts.ConfigDir, "pocketbase")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Supervisor{
		opts:   opts,
		logger: opts.Logger.With("component", "sidecar"),
		lines:  make(chan string, 64),
	}
}

// DocStoreURL is the loopback base URL of the supervised DocStore.
func (s *Supervisor) DocStoreURL() string {
	return "http://" + s.opts.DocStoreAddr
}

// Lines streams scanned stdout/stderr lines from the agent daemon. The
// channel closes once both pipes are drained after the process exits.
func (s *Supervisor) Lines() <-chan string { return s.lines }

// EnsureWorkspaceReady scaffolds the config and workspace before any daemon
// starts. A missing config or an empty workspace triggers a full onboard run;
// an intact config with a partially deleted workspace only gets the skeleton
// repaired.
func (s *Supervisor) EnsureWorkspaceReady() error {
	configPath := filepath.Join(s.opts.ConfigDir, "config.toml")
	_, err := os.Stat(configPath)
	configExists := err == nil

	empty, err := workspaceEffectivelyEmpty(s.opts.WorkspaceDir)
	if err != nil {
		return fmt.Errorf("inspect workspace dir: %w", err)
	}

	switch {
	case !configExists || empty:
		if err := s.runOnboard(configExists); err != nil {
			return err
		}
	case WorkspaceSkeletonMissing(s.opts.WorkspaceDir):
		if err := RepairWorkspaceSkeleton(s.opts.WorkspaceDir); err != nil {
			return err
		}
	}

	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("workspace scaffolding incomplete: missing %s", configPath)
	}
	return nil
}

// runOnboard invokes the agent binary's onboard subcommand to write the
// initial config and workspace. force is set when a config already exists but
// the workspace is empty.
func (s *Supervisor) runOnboard(force bool) error {
	if s.opts.AgentBin == "" {
		// No agent binary: scaffold the skeleton ourselves so the gateway can
		// still serve journal and library routes.
		if err := os.MkdirAll(s.opts.WorkspaceDir, 0o755); err != nil {
			return fmt.Errorf("create workspace dir: %w", err)
		}
		return RepairWorkspaceSkeleton(s.opts.WorkspaceDir)
	}

	args := []string{"onboard", "--memory", "sqlite"}
	if force {
		args = append(args, "--force")
	}
	cmd := exec.Command(s.opts.AgentBin, args...)
	cmd.Env = append(os.Environ(), "NIGHTJAR_CONFIG_DIR="+s.opts.ConfigDir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("agent onboard failed: %w\n%s", err, out)
	}
	return nil
}

// StartDocStore spawns the DocStore daemon on loopback with its data and
// migrations directories. A missing binary path is a no-op so deployments can
// point the gateway at an externally managed store.
func (s *Supervisor) StartDocStore() error {
	if s.opts.DocStoreBin == "" {
		return nil
	}
	if err := os.MkdirAll(s.opts.DocStoreDataDir, 0o755); err != nil {
		return fmt.Errorf("create DocStore data dir: %w", err)
	}

	args := []string{
		"serve",
		"--http", s.opts.DocStoreAddr,
		"--dir", s.opts.DocStoreDataDir,
	}
	if s.opts.DocStoreMigrations != "" {
		args = append(args, "--migrationsDir", s.opts.DocStoreMigrations)
	}
	cmd := exec.Command(s.opts.DocStoreBin, args...)
	dieWithParent(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn DocStore daemon: %w", err)
	}

	s.mu.Lock()
	s.docstore = cmd
	s.mu.Unlock()
	s.logger.Info("DocStore daemon started", "addr", s.opts.DocStoreAddr, "pid", cmd.Process.Pid)
	return nil
}

// StartAgent spawns the agent daemon with its embedded DocStore disabled and
// pointed at ours instead. Its stdout and stderr are scanned line by line
// into Lines() so the pairing bootstrap can watch for a code.
func (s *Supervisor) StartAgent() error {
	if s.opts.AgentBin == "" {
		return nil
	}

	cmd := exec.Command(s.opts.AgentBin, "daemon")
	cmd.Env = append(os.Environ(),
		"NIGHTJAR_CONFIG_DIR="+s.opts.ConfigDir,
		"NIGHTJAR_WORKSPACE="+s.opts.WorkspaceDir,
		"NIGHTJAR_POCKETBASE_DISABLE=1",
		"NIGHTJAR_POCKETBASE_URL="+s.DocStoreURL(),
	)
	if token := LoadGatewayToken(); token != "" {
		cmd.Env = append(cmd.Env, "NIGHTJAR_GATEWAY_TOKEN="+token)
	}
	cmd.Env = append(cmd.Env, s.opts.AgentEnv...)
	dieWithParent(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("agent stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("agent stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn agent daemon: %w", err)
	}

	s.mu.Lock()
	s.agent = cmd
	s.mu.Unlock()
	s.logger.Info("agent daemon started", "pid", cmd.Process.Pid)

	s.wg.Add(2)
	go s.scan(stdout)
	go s.scan(stderr)
	go func() {
		s.wg.Wait()
		close(s.lines)
	}()
	return nil
}

func (s *Supervisor) scan(r io.Reader) {
	defer s.wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		select {
		case s.lines <- scanner.Text():
		default:
			// A slow consumer must not back-pressure the daemon's pipes.
		}
	}
}

// Shutdown stops the agent, then the DocStore. Each child gets an interrupt
// and the remaining context budget before being killed outright.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	agent, docstore := s.agent, s.docstore
	s.agent, s.docstore = nil, nil
	s.mu.Unlock()

	s.stop(ctx, "agent", agent)
	s.stop(ctx, "docstore", docstore)
}

func (s *Supervisor) stop(ctx context.Context, name string, cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("daemon stopped", "daemon", name)
	case <-ctx.Done():
		s.logger.Warn("daemon did not stop in time, killing", "daemon", name)
		_ = cmd.Process.Kill()
		<-done
	case <-time.After(10 * time.Second):
		_ = cmd.Process.Kill()
		<-done
	}
}
