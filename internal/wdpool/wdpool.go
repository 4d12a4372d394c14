// Package wdpool manages the pool of reusable build/checkout directories
// that benchmarking jobs run in (spec §4.5). Reuse is keyed on commit
// affinity: a slot already checked out at the job's commit is preferred over
// an unused slot, which is preferred over the least-recently-used slot.
package wdpool

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoCapacity is returned by Acquire when every slot is already checked out
// by another in-flight job. The scheduler is single-threaded so this should
// not occur in practice; it exists as a defensive bound.
var ErrNoCapacity = errors.New("wdpool: no free slot")

// Slot is one reusable working directory.
type Slot struct {
	Index             int
	Root              string
	CheckedOutCommit  string
	LastUse           time.Time
	inUse             bool
}

// OutputLogPath is the path jobs using this slot should redirect the
// benchmarking command's stdout to.
func (s Slot) OutputLogPath() string {
	return filepath.Join(filepath.Dir(s.Root), fmt.Sprintf("%d.output_of_benchmarking_command", s.Index))
}

// ErrorLogPath is the path jobs using this slot should redirect stderr to.
func (s Slot) ErrorLogPath() string {
	return filepath.Join(filepath.Dir(s.Root), fmt.Sprintf("%d.error", s.Index))
}

// StatusPath is the optional per-slot metadata file (spec §6 layout).
func (s Slot) StatusPath() string {
	return filepath.Join(filepath.Dir(s.Root), fmt.Sprintf("%d.status", s.Index))
}

// statusFile is the on-disk shape of Slot.StatusPath, written on release and
// read only at daemon startup to reseed in-memory state after a restart
// (spec §9: externally made status changes are not otherwise picked up).
type statusFile struct {
	CheckedOutCommit string    `yaml:"checked_out_commit"`
	LastUse          time.Time `yaml:"last_use"`
}

// Pool is a fixed-capacity set of Slots.
type Pool struct {
	mu    sync.Mutex
	root  string
	slots []Slot
}

// Open constructs a Pool with the given capacity rooted at root, reseeding
// each slot's affinity state from its .status file if one exists.
func Open(root string, capacity int) (*Pool, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("wdpool: capacity must be positive, got %d", capacity)
	}

	p := &Pool{root: root, slots: make([]Slot, capacity)}
	for i := range p.slots {
		slot := Slot{Index: i, Root: filepath.Join(root, fmt.Sprintf("%d", i))}
		if status, err := readStatus(slot.StatusPath()); err == nil {
			slot.CheckedOutCommit = status.CheckedOutCommit
			slot.LastUse = status.LastUse
		}
		p.slots[i] = slot
	}
	return p, nil
}

// Capacity returns the number of slots in the pool.
func (p *Pool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// Acquire selects a slot for commit, preferring (in order): a slot already
// checked out at commit; an unused slot; the least-recently-used slot.
func (p *Pool) Acquire(commit string) (Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.findFree(func(s Slot) bool { return s.CheckedOutCommit == commit }); ok {
		return p.markInUse(idx), nil
	}
	if idx, ok := p.findFree(func(s Slot) bool { return s.CheckedOutCommit == "" }); ok {
		return p.markInUse(idx), nil
	}

	oldest := -1
	for i, s := range p.slots {
		if s.inUse {
			continue
		}
		if oldest == -1 || s.LastUse.Before(p.slots[oldest].LastUse) {
			oldest = i
		}
	}
	if oldest == -1 {
		return Slot{}, ErrNoCapacity
	}
	return p.markInUse(oldest), nil
}

func (p *Pool) findFree(match func(Slot) bool) (int, bool) {
	for i, s := range p.slots {
		if !s.inUse && match(s) {
			return i, true
		}
	}
	return 0, false
}

func (p *Pool) markInUse(idx int) Slot {
	p.slots[idx].inUse = true
	return p.slots[idx]
}

// Release returns slot to the pool, recording its checked-out commit and
// updating LastUse, and persists the .status file.
func (p *Pool) Release(slot Slot, checkedOutCommit string, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if slot.Index < 0 || slot.Index >= len(p.slots) {
		return fmt.Errorf("wdpool: slot index %d out of range", slot.Index)
	}

	p.slots[slot.Index].inUse = false
	p.slots[slot.Index].CheckedOutCommit = checkedOutCommit
	p.slots[slot.Index].LastUse = now

	return writeStatus(p.slots[slot.Index].StatusPath(), statusFile{
		CheckedOutCommit: checkedOutCommit,
		LastUse:          now,
	})
}

func readStatus(path string) (statusFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return statusFile{}, err
	}
	var s statusFile
	if err := yaml.Unmarshal(data, &s); err != nil {
		return statusFile{}, fmt.Errorf("wdpool: parse status %s: %w", path, err)
	}
	return s, nil
}

func writeStatus(path string, s statusFile) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("wdpool: marshal status: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("wdpool: mkdir for status %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("wdpool: write status %s: %w", path, err)
	}
	return nil
}
