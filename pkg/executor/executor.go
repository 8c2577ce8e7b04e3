// Package executor implements the executor (C8): it orchestrates the VM
// host (C6), filesystem facet (C5), and function binder (C7) for one
// script execution, enforcing a wall-clock deadline via a VM interrupt
// callback, a periodic memory-cap check against the configured budget,
// and harvesting the result, captured logs, and files-touched digest.
package executor

import (
	"context"
	"time"

	"github.com/alennartz/toolscript/pkg/binder"
	"github.com/alennartz/toolscript/pkg/catalogue"
	"github.com/alennartz/toolscript/pkg/coerce"
	toolerrors "github.com/alennartz/toolscript/pkg/errors"
	"github.com/alennartz/toolscript/pkg/fsfacet"
	"github.com/alennartz/toolscript/pkg/httpgateway"
	"github.com/alennartz/toolscript/pkg/logger"
	"github.com/alennartz/toolscript/pkg/mcpgateway"
	"github.com/alennartz/toolscript/pkg/vm"
)

// Defaults per §4.7.
const (
	DefaultTimeout           = 30 * time.Second
	DefaultMemoryLimitBytes  = 64 * 1024 * 1024
	DefaultCallCountLimit    = 100
	DefaultFilesystemEnabled = true // stdio/direct-local mode default

	// memoryCheckInterval is how often the watchdog goroutine samples
	// VM.CheckMemory while a script is running.
	memoryCheckInterval = 20 * time.Millisecond
)

// Config configures one Executor. It is built once and reused across
// executions; only the per-call Request varies.
type Config struct {
	Catalogue         *catalogue.Catalogue
	HTTP              *httpgateway.Gateway
	MCP               *mcpgateway.Gateway
	Timeout           time.Duration
	MemoryLimitBytes  uint64
	CallCountLimit    int
	FilesystemEnabled bool
	FilesystemConfig  fsfacet.Config
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MemoryLimitBytes == 0 {
		c.MemoryLimitBytes = DefaultMemoryLimitBytes
	}
	if c.CallCountLimit == 0 {
		c.CallCountLimit = DefaultCallCountLimit
	}
	return c
}

// Executor runs scripts against one descriptor catalogue and effect
// gateways.
type Executor struct {
	cfg Config
}

// New constructs an Executor.
func New(cfg Config) *Executor {
	return &Executor{cfg: cfg.withDefaults()}
}

// Request is one execution's script plus per-request credentials and
// optional overrides of the executor's defaults.
type Request struct {
	Script      string
	Credentials map[string]*httpgateway.Credential

	TimeoutOverride        time.Duration
	MemoryLimitOverride     uint64
	CallCountLimitOverride  int
}

// Result is the outcome of one execution (§4.7 contract).
type Result struct {
	Value        any
	Logs         []string
	FilesTouched []fsfacet.TouchedFile
}

// Run executes req.Script to completion or until the deadline/resource
// caps fire, following the sequence in §4.7.
func (e *Executor) Run(ctx context.Context, req Request) (Result, error) {
	timeout := e.cfg.Timeout
	if req.TimeoutOverride > 0 {
		timeout = req.TimeoutOverride
	}
	memLimit := e.cfg.MemoryLimitBytes
	if req.MemoryLimitOverride > 0 {
		memLimit = req.MemoryLimitOverride
	}
	callLimit := e.cfg.CallCountLimit
	if req.CallCountLimitOverride > 0 {
		callLimit = req.CallCountLimitOverride
	}

	machine := vm.New(vm.Config{MemoryLimitBytes: memLimit})
	defer machine.Close()

	var facet *fsfacet.Facet
	var digest []fsfacet.TouchedFile
	if e.cfg.FilesystemEnabled {
		facet = fsfacet.New(e.cfg.FilesystemConfig)
		fsfacet.InstallSurface(machine.L, facet)
	}

	counter := binder.NewCallCounter(callLimit)
	b := binder.New(ctx, e.cfg.Catalogue, e.cfg.HTTP, e.cfg.MCP, counter, req.Credentials)
	if err := b.BindAll(machine.L, machine.Sdk()); err != nil {
		return Result{}, toolerrors.NewInternalError("failed to bind sdk closures", err)
	}

	machine.Freeze()

	deadline := time.Now().Add(timeout)
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	machine.SetDeadline(runCtx)

	logger.Debugw("starting script execution", "timeout", timeout, "memory_limit", memLimit, "call_limit", callLimit)

	memErrCh := make(chan error, 1)
	stopWatchdog := make(chan struct{})
	if memLimit > 0 {
		go watchMemory(machine, runCtx, cancel, stopWatchdog, memErrCh)
	}

	value, err := machine.DoString(req.Script)
	close(stopWatchdog)

	if facet != nil {
		digest = facet.Digest()
	}
	logs := machine.Logs()

	select {
	case memErr := <-memErrCh:
		return Result{Logs: logs, FilesTouched: digest}, memErr
	default:
	}

	if err != nil {
		if runCtx.Err() != nil {
			return Result{Logs: logs, FilesTouched: digest}, toolerrors.NewDeadlineExceededError("script execution exceeded its deadline", runCtx.Err())
		}
		return Result{Logs: logs, FilesTouched: digest}, err
	}

	return Result{
		Value:        coerce.ToJSON(value),
		Logs:         logs,
		FilesTouched: digest,
	}, nil
}

// watchMemory samples machine.CheckMemory on a ticker for the lifetime of
// one script execution. An overrun is reported on memErrCh and the run
// context is canceled so the VM's interrupt hook aborts the script in
// flight, through the same context SetDeadline installs for the timeout.
// It stops on whichever of stopCh/runCtx.Done() fires first.
func watchMemory(machine *vm.VM, runCtx context.Context, cancel context.CancelFunc, stopCh <-chan struct{}, memErrCh chan<- error) {
	ticker := time.NewTicker(memoryCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-runCtx.Done():
			return
		case <-ticker.C:
			if err := machine.CheckMemory(); err != nil {
				memErrCh <- err
				cancel()
				return
			}
		}
	}
}
