package config

import (
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/irdkwmnsb/remotecam/internal/metrics"
)

var sectionNames = []string{"server", "security", "signalling", "webrtc", "discovery"}

// reloadDebounce coalesces the burst of events editors produce on save.
const reloadDebounce = 200 * time.Millisecond

// Manager holds the live AppConfig and reloads it when a section file in
// the config directory is written.
type Manager struct {
	dir string

	mu       sync.RWMutex
	current  *AppConfig
	onUpdate func(*AppConfig)

	stop     chan struct{}
	stopOnce sync.Once
}

func NewManager(dir string) (*Manager, error) {
	m := &Manager{dir: dir, stop: make(chan struct{})}
	if err := m.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("config hot reload disabled", "error", err)
		return m, nil
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		slog.Error("config hot reload disabled", "dir", dir, "error", err)
		return m, nil
	}
	go m.watch(watcher)

	return m, nil
}

func (m *Manager) Get() AppConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.current
}

// Reload re-reads the directory. On error the previous config stays live.
func (m *Manager) Reload() error {
	next, err := LoadAppConfig(m.dir)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.current = next
	notify := m.onUpdate
	m.mu.Unlock()

	metrics.ConfigReloads.Inc()
	slog.Info("configuration loaded", "dir", m.dir)

	if notify != nil {
		notify(next)
	}
	return nil
}

func (m *Manager) SetUpdateCallback(f func(*AppConfig)) {
	m.mu.Lock()
	m.onUpdate = f
	m.mu.Unlock()
}

func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func isSectionFile(path string) bool {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext != ".yaml" && ext != ".json" {
		return false
	}
	return slices.Contains(sectionNames, strings.TrimSuffix(base, ext))
}

func (m *Manager) watch(watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-m.stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isSectionFile(event.Name) || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			slog.Debug("config file changed", "file", event.Name, "op", event.Op.String())
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDebounce, func() {
				if err := m.Reload(); err != nil {
					slog.Error("config reload failed, keeping previous", "error", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}
