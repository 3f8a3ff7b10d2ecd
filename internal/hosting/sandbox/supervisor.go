package sandbox

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"
)

// Supervisor owns the table of running sandbox server processes, one per
// port. All lifecycle transitions for a port run under that port's mutex,
// so two concurrent uploads for the same world cannot both spawn and leak
// an orphan process.
type Supervisor struct {
	binary      string
	stopTimeout time.Duration
	hub         *LogHub
	log         *log.Logger

	mu    sync.Mutex
	procs map[int]*process
	locks map[int]*sync.Mutex
}

type process struct {
	port      int
	worldName string
	cmd       *exec.Cmd
	done      chan struct{}
}

func NewSupervisor(binary string, stopTimeout time.Duration, hub *LogHub, logger *log.Logger) *Supervisor {
	if stopTimeout <= 0 {
		stopTimeout = 10 * time.Second
	}
	return &Supervisor{
		binary:      binary,
		stopTimeout: stopTimeout,
		hub:         hub,
		log:         logger,
		procs:       map[int]*process{},
		locks:       map[int]*sync.Mutex{},
	}
}

// Start launches the server for worldName on port, first terminating any
// process already bound to the port and waiting for its exit. The new
// process is only spawned after the old one's exit has been observed.
func (s *Supervisor) Start(ctx context.Context, worldName string, port int, configPath string) error {
	lock := s.portLock(port)
	lock.Lock()
	defer lock.Unlock()

	if prev := s.handle(port); prev != nil {
		if err := s.terminate(ctx, prev); err != nil {
			return err
		}
	}

	cmd := exec.Command(s.binary, "--server", "--worldname", worldName, "--config", configPath)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("server %s: stdout pipe: %w", worldName, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("server %s: stderr pipe: %w", worldName, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn server for %s on port %d: %w", worldName, port, err)
	}

	p := &process{port: port, worldName: worldName, cmd: cmd, done: make(chan struct{})}
	s.mu.Lock()
	s.procs[port] = p
	s.mu.Unlock()

	go s.forward(p, stdout)
	go s.forward(p, stderr)
	go func() {
		err := cmd.Wait()
		close(p.done)
		s.mu.Lock()
		if s.procs[port] == p {
			delete(s.procs, port)
		}
		s.mu.Unlock()
		if err != nil {
			s.log.Printf("[world %s:%d] exited: %v", p.worldName, p.port, err)
		} else {
			s.log.Printf("[world %s:%d] exited", p.worldName, p.port)
		}
	}()

	s.log.Printf("[world %s:%d] started (pid %d)", worldName, port, cmd.Process.Pid)
	return nil
}

// Stop terminates the process on port, if any.
func (s *Supervisor) Stop(ctx context.Context, port int) error {
	lock := s.portLock(port)
	lock.Lock()
	defer lock.Unlock()

	p := s.handle(port)
	if p == nil {
		return nil
	}
	return s.terminate(ctx, p)
}

func (s *Supervisor) Running(port int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[port] != nil
}

// RunningPorts lists ports with a live process, ascending.
func (s *Supervisor) RunningPorts() []int {
	s.mu.Lock()
	out := make([]int, 0, len(s.procs))
	for port := range s.procs {
		out = append(out, port)
	}
	s.mu.Unlock()
	sort.Ints(out)
	return out
}

// Close stops every running process. Used on shutdown.
func (s *Supervisor) Close(ctx context.Context) {
	for _, port := range s.RunningPorts() {
		if err := s.Stop(ctx, port); err != nil {
			s.log.Printf("supervisor: stop port %d: %v", port, err)
		}
	}
}

// terminate sends a graceful interrupt and waits for the exit to be
// observed, escalating to a kill after the stop timeout. Callers must hold
// the port lock.
func (s *Supervisor) terminate(ctx context.Context, p *process) error {
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		// Already gone: the wait goroutine will clear the handle.
		s.log.Printf("[world %s:%d] interrupt: %v", p.worldName, p.port, err)
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.stopTimeout):
	}

	s.log.Printf("[world %s:%d] did not stop within %s, killing", p.worldName, p.port, s.stopTimeout)
	if err := p.cmd.Process.Kill(); err != nil {
		s.log.Printf("[world %s:%d] kill: %v", p.worldName, p.port, err)
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.stopTimeout):
		return fmt.Errorf("server on port %d did not exit after kill", p.port)
	}
}

func (s *Supervisor) handle(port int) *process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[port]
}

func (s *Supervisor) portLock(port int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock := s.locks[port]
	if lock == nil {
		lock = &sync.Mutex{}
		s.locks[port] = lock
	}
	return lock
}

func (s *Supervisor) forward(p *process, r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for sc.Scan() {
		line := sc.Text()
		s.log.Printf("[world %s:%d] %s", p.worldName, p.port, line)
		if s.hub != nil {
			s.hub.Publish(p.port, line)
		}
	}
}
