package cmd

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/spiffcs/inbox/internal/log"
)

// Profiler manages CPU, memory, and trace profiling for one command run.
type Profiler struct {
	cpuFile   *os.File
	traceFile *os.File

	cpuProfile string
	memProfile string
	tracePath  string
}

// NewProfiler creates a new profiler with the specified profile paths.
// Empty paths disable the corresponding profile.
func NewProfiler(cpuProfile, memProfile, tracePath string) *Profiler {
	return &Profiler{
		cpuProfile: cpuProfile,
		memProfile: memProfile,
		tracePath:  tracePath,
	}
}

// Start begins CPU profiling and execution tracing if configured. On
// failure nothing is left running.
func (p *Profiler) Start() error {
	if p.cpuProfile != "" {
		f, err := os.Create(p.cpuProfile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		p.cpuFile = f
	}

	if p.tracePath != "" {
		f, err := os.Create(p.tracePath)
		if err != nil {
			_ = p.stopCPU()
			return fmt.Errorf("could not create trace: %w", err)
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			_ = p.stopCPU()
			return fmt.Errorf("could not start trace: %w", err)
		}
		p.traceFile = f
	}

	return nil
}

// Stop ends all profiling and writes the memory profile if configured.
// Failures are logged; profiling never fails a command.
func (p *Profiler) Stop() {
	var errs []error
	if p.traceFile != nil {
		trace.Stop()
		errs = append(errs, p.traceFile.Close())
		p.traceFile = nil
	}
	errs = append(errs, p.stopCPU(), p.writeHeap())

	if err := errors.Join(errs...); err != nil {
		log.Warn("profiling failed", "error", err)
	}
}

func (p *Profiler) stopCPU() error {
	if p.cpuFile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := p.cpuFile.Close()
	p.cpuFile = nil
	return err
}

func (p *Profiler) writeHeap() error {
	if p.memProfile == "" {
		return nil
	}
	f, err := os.Create(p.memProfile)
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	runtime.GC() // up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("could not write memory profile: %w", err)
	}
	return f.Close()
}
