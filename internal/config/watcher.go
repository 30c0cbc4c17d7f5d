package config

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ErrUnchanged is returned by [Watcher.Reload] when the file content matches
// the active config.
var ErrUnchanged = errors.New("config: file unchanged")

// Watcher keeps the live config in step with a file on disk. Edits only take
// effect when the new content parses and validates; a broken edit is logged
// and the running config stays active.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, next *Config)

	mu      sync.Mutex
	current *Config
	digest  [sha256.Size]byte
	mtime   time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets how often the file is checked. The default is 5s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher reads path once and then checks it in the background until
// Stop is called. onChange may be nil.
func NewWatcher(path string, onChange func(old, next *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		stop:     make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}

	snap, err := readSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.digest, w.mtime = snap.cfg, snap.digest, snap.mtime

	go w.loop()
	return w, nil
}

// Current returns the active config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends background checks. Safe to call repeatedly.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Reload reads the file now. It returns [ErrUnchanged] when the content is
// identical to the active config, or the parse/validation error when the
// new content is rejected. On success the change callback has already run.
func (w *Watcher) Reload() error {
	snap, err := readSnapshot(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.mtime = snap.mtime
	if snap.digest == w.digest {
		w.mu.Unlock()
		return ErrUnchanged
	}
	old := w.current
	w.current, w.digest = snap.cfg, snap.digest
	w.mu.Unlock()

	slog.Info("config: reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, snap.cfg)
	}
	return nil
}

func (w *Watcher) loop() {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			if !w.modified() {
				continue
			}
			if err := w.Reload(); err != nil && !errors.Is(err, ErrUnchanged) {
				slog.Warn("config: rejected edit, keeping running config", "path", w.path, "err", err)
			}
		}
	}
}

// modified reports whether the file's mtime moved since the last read. A
// failed stat counts as unmodified.
func (w *Watcher) modified() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config: stat watched file", "path", w.path, "err", err)
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if info.ModTime().Equal(w.mtime) {
		return false
	}
	// Remember the mtime now so a rejected edit is not re-parsed every tick.
	w.mtime = info.ModTime()
	return true
}

type snapshot struct {
	cfg    *Config
	digest [sha256.Size]byte
	mtime  time.Time
}

func readSnapshot(path string) (snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{cfg: cfg, digest: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
