package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ChangeEvent describes one configuration file change.
type ChangeEvent struct {
	File      string                 `json:"file"`
	Action    string                 `json:"action"` // create, modify, delete
	Config    map[string]interface{} `json:"config"`
	Timestamp time.Time              `json:"timestamp"`
}

// ChangeHandler is called when a watched file changes.
type ChangeHandler func(event ChangeEvent) error

// Manager watches a directory of YAML files (prompt templates, few-shot
// examples) and hot-reloads them. The pipeline keeps compiled-in defaults,
// so a missing or broken file never takes the service down.
type Manager struct {
	dir      string
	configs  map[string]map[string]interface{}
	handlers map[string][]ChangeHandler
	watcher  *fsnotify.Watcher
	started  bool
	stopCh   chan struct{}
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewManager creates a manager for the given directory, creating it when
// absent.
func NewManager(dir string, logger *zap.Logger) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("config directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	return &Manager{
		dir:      dir,
		configs:  make(map[string]map[string]interface{}),
		handlers: make(map[string][]ChangeHandler),
		watcher:  watcher,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}, nil
}

// Start loads every YAML file in the directory and begins watching for
// changes. Safe to call once; subsequent calls are no-ops.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.watcher.Add(m.dir); err != nil {
		return fmt.Errorf("watch config directory: %w", err)
	}
	if err := m.loadAll(); err != nil {
		return fmt.Errorf("load initial configs: %w", err)
	}

	m.mu.Lock()
	m.started = true
	loaded := len(m.configs)
	m.mu.Unlock()

	go m.watchLoop()

	m.logger.Info("Prompt config manager started",
		zap.String("dir", m.dir),
		zap.Int("files", loaded),
	)
	return nil
}

// Stop terminates the watch loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	close(m.stopCh)
	_ = m.watcher.Close()
	m.started = false
}

// Get returns the parsed contents of one file (by base name) and whether it
// has been loaded.
func (m *Manager) Get(file string) (map[string]interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[file]
	return cfg, ok
}

// RegisterHandler subscribes to changes of one file by base name.
func (m *Manager) RegisterHandler(file string, handler ChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[file] = append(m.handlers[file], handler)
}

func (m *Manager) loadAll() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		if err := m.loadFile(filepath.Join(m.dir, e.Name()), "create"); err != nil {
			m.logger.Warn("Failed to load config file",
				zap.String("file", e.Name()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (m *Manager) loadFile(path, action string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cfg map[string]interface{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	name := filepath.Base(path)
	m.mu.Lock()
	m.configs[name] = cfg
	handlers := append([]ChangeHandler(nil), m.handlers[name]...)
	m.mu.Unlock()

	ev := ChangeEvent{File: name, Action: action, Config: cfg, Timestamp: time.Now()}
	for _, h := range handlers {
		if err := h(ev); err != nil {
			m.logger.Warn("Config change handler failed",
				zap.String("file", name),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (m *Manager) watchLoop() {
	// Editors often emit bursts of writes for one save; debounce per file.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !isYAML(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				pending[ev.Name] = time.Now()
			}
			if ev.Op&fsnotify.Remove != 0 {
				name := filepath.Base(ev.Name)
				m.mu.Lock()
				delete(m.configs, name)
				m.mu.Unlock()
				m.logger.Info("Config file removed", zap.String("file", name))
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("File watcher error", zap.Error(err))
		case now := <-ticker.C:
			for path, at := range pending {
				if now.Sub(at) < 200*time.Millisecond {
					continue
				}
				delete(pending, path)
				if err := m.loadFile(path, "modify"); err != nil {
					m.logger.Warn("Failed to reload config file",
						zap.String("file", filepath.Base(path)),
						zap.Error(err),
					)
				}
			}
		}
	}
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
