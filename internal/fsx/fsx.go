// Package fsx abstracts the filesystem operations the resolver and scanner
// depend on, so that tests can inject failures (unreadable roots, permission
// errors on delete) without touching the real disk.
//
// Implementations:
//
//   - [LocalFS]: production implementation backed by the os package
//   - [FaultyFS]: test utility that overrides selected operations with errors
//
// Plain operations deliberately take no context.Context: local stats and
// unlinks complete in microseconds and are not interruptible at the syscall
// level. The exception is [StatTimeout], which bounds probes against network
// roots that may block for minutes when a share is unreachable.
package fsx

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// FileSystem is the set of operations the engine performs against a disk.
type FileSystem interface {
	Stat(name string) (os.FileInfo, error)
	Remove(name string) error
	ReadDir(name string) ([]os.DirEntry, error)
}

// Default is the production filesystem.
var Default FileSystem = LocalFS{}

// LocalFS implements FileSystem using the local os package.
type LocalFS struct{}

func (LocalFS) Stat(name string) (os.FileInfo, error)      { return os.Stat(name) }
func (LocalFS) Remove(name string) error                   { return os.Remove(name) }
func (LocalFS) ReadDir(name string) ([]os.DirEntry, error) { return os.ReadDir(name) }

// statResult carries the outcome of an asynchronous stat.
type statResult struct {
	info os.FileInfo
	err  error
}

// StatTimeout stats name with an upper bound on how long the call may block.
// An unreachable network root returns an error wrapping
// context.DeadlineExceeded instead of stalling the calling worker.
//
// The stat itself cannot be interrupted; on timeout its goroutine is left to
// finish in the background and its result is discarded.
func StatTimeout(ctx context.Context, fsys FileSystem, name string, timeout time.Duration) (os.FileInfo, error) {
	if timeout <= 0 {
		return fsys.Stat(name)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan statResult, 1)
	go func() {
		info, err := fsys.Stat(name)
		ch <- statResult{info: info, err: err}
	}()

	select {
	case r := <-ch:
		return r.info, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("stat %s: %w", name, ctx.Err())
	}
}

// Fault describes an error injected for paths matching a substring pattern.
type Fault struct {
	OnStat    error
	OnRemove  error
	OnReadDir error
	StatDelay time.Duration // simulate a slow network share
}

// FaultyFS wraps a FileSystem and injects errors for matching paths.
type FaultyFS struct {
	FS FileSystem

	mu    sync.Mutex
	rules map[string]Fault
}

// NewFaultyFS creates a FaultyFS wrapping fs (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{FS: fs, rules: make(map[string]Fault)}
}

// AddRule injects a fault for every path containing pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

func (f *FaultyFS) fault(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			return rule, true
		}
	}
	return Fault{}, false
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) {
	if rule, ok := f.fault(name); ok {
		if rule.StatDelay > 0 {
			time.Sleep(rule.StatDelay)
		}
		if rule.OnStat != nil {
			return nil, rule.OnStat
		}
	}
	return f.FS.Stat(name)
}

func (f *FaultyFS) Remove(name string) error {
	if rule, ok := f.fault(name); ok && rule.OnRemove != nil {
		return rule.OnRemove
	}
	return f.FS.Remove(name)
}

func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) {
	if rule, ok := f.fault(name); ok && rule.OnReadDir != nil {
		return nil, rule.OnReadDir
	}
	return f.FS.ReadDir(name)
}
