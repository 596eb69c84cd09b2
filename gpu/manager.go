// Package gpu probes the accelerator and reclaims device memory between pipeline stages.
package gpu

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"runtime/debug"
	"sync"
)

// DeviceInfo describes the accelerator found by Probe
type DeviceInfo struct {
	Name    string
	TotalGB float64
	UsedGB  float64
}

// Releaser frees device memory held by one component
type Releaser interface {
	Release(ctx context.Context) error
}

// ReleaserFunc adapts a function to Releaser
type ReleaserFunc func(ctx context.Context) error

func (f ReleaserFunc) Release(ctx context.Context) error { return f(ctx) }

// ReleaseFailure records one releaser that did not succeed
type ReleaseFailure struct {
	Name string
	Err  error
}

// ReclaimOutcome reports what a reclaim pass managed to free
type ReclaimOutcome struct {
	Released []string
	Failures []ReleaseFailure
}

// OK reports whether every releaser succeeded
func (o ReclaimOutcome) OK() bool { return len(o.Failures) == 0 }

// Err joins every release failure, or returns nil
func (o ReclaimOutcome) Err() error {
	var errs []error
	for _, f := range o.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Name, f.Err))
	}
	return errors.Join(errs...)
}

// Prober queries the accelerator; ok is false when none is present
type Prober interface {
	Query(ctx context.Context) (info DeviceInfo, ok bool, err error)
}

type namedReleaser struct {
	name string
	r    Releaser
}

// Manager owns accelerator probing and best-effort memory reclamation
type Manager struct {
	prober Prober

	mu        sync.Mutex
	releasers []namedReleaser
	present   *bool
}

// NewManager builds a Manager; a nil prober means "no accelerator"
func NewManager(prober Prober) *Manager {
	return &Manager{prober: prober}
}

// Register adds a device-bound component to every later Reclaim
func (m *Manager) Register(name string, r Releaser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releasers = append(m.releasers, namedReleaser{name: name, r: r})
}

// Probe reports the accelerator, logging what it found
func (m *Manager) Probe(ctx context.Context) (DeviceInfo, bool) {
	if m.prober == nil {
		m.setPresent(false)
		return DeviceInfo{}, false
	}
	info, ok, err := m.prober.Query(ctx)
	if err != nil {
		log.Printf("⚠️  Accelerator probe failed: %v", err)
		m.setPresent(false)
		return DeviceInfo{}, false
	}
	m.setPresent(ok)
	if !ok {
		log.Println("⚠️  No accelerator detected, stages will run on CPU")
		return DeviceInfo{}, false
	}
	log.Printf("🖥️  Accelerator: %s (%.1f GB total, %.1f GB used)", info.Name, info.TotalGB, info.UsedGB)
	return info, true
}

// Reclaim runs every registered releaser and frees host memory.
// It never fails; problems are reported in the outcome.
func (m *Manager) Reclaim(ctx context.Context) ReclaimOutcome {
	m.mu.Lock()
	releasers := append([]namedReleaser(nil), m.releasers...)
	m.mu.Unlock()

	var out ReclaimOutcome
	for _, nr := range releasers {
		if err := safeRelease(ctx, nr.r); err != nil {
			out.Failures = append(out.Failures, ReleaseFailure{Name: nr.name, Err: err})
			log.Printf("⚠️  Reclaim %s: %v", nr.name, err)
			continue
		}
		out.Released = append(out.Released, nr.name)
	}

	runtime.GC()
	debug.FreeOSMemory()

	if m.isPresent() && m.prober != nil {
		if info, ok, err := m.prober.Query(ctx); err == nil && ok {
			log.Printf("🧹 Reclaimed, accelerator memory in use: %.1f/%.1f GB", info.UsedGB, info.TotalGB)
		}
	}
	return out
}

func safeRelease(ctx context.Context, r Releaser) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during release: %v", p)
		}
	}()
	return r.Release(ctx)
}

func (m *Manager) setPresent(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.present = &v
}

func (m *Manager) isPresent() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.present != nil && *m.present
}
