package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Manager owns one JSON config file. A batch watches it so edits made while
// it runs apply to the tickers that have not started yet.
type Manager struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	cfg      Config
	onChange func(Config)
	watching bool
}

type managerOptions struct {
	path     string
	initial  *Config
	debounce time.Duration
	logger   *zap.Logger
}

type ManagerOption func(*managerOptions)

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		o.path = path
	}
}

// WithInitialConfig is written when the file does not exist yet.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) {
		o.initial = cfg
	}
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

func WithLogger(l *zap.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = l
	}
}

// NewManager loads the file at the configured path, creating it first when
// missing. An existing file is never overwritten.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	o := managerOptions{debounce: 300 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}
	if o.path == "" {
		return nil, errors.New("config path is required")
	}

	cfg, err := LoadFile(o.path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = createFile(o.path, o.initial)
	}
	if err != nil {
		return nil, err
	}

	return &Manager{
		path:     o.path,
		debounce: o.debounce,
		logger:   o.logger,
		cfg:      *cfg,
	}, nil
}

func createFile(path string, initial *Config) (*Config, error) {
	cfg := DefaultConfigWithRoot(filepath.Dir(path))
	if initial != nil {
		cfg = initial.Clone()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	if err := WriteFile(path, cfg); err != nil {
		return nil, fmt.Errorf("write initial config: %w", err)
	}
	cfg.FillSecretsFromEnv()
	return cfg, nil
}

// Get returns the last loaded config, credentials included.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string {
	return m.path
}

// Watch calls onChange with every valid edit of the file until ctx is done.
// Invalid edits are logged and skipped. Calling Watch again only swaps the
// callback.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	m.mu.Lock()
	m.onChange = onChange
	if m.watching {
		m.mu.Unlock()
		return nil
	}
	m.watching = true
	m.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		// editors save by rename, so the directory is watched, not the file
		err = watcher.Add(filepath.Dir(m.path))
		if err != nil {
			watcher.Close()
		}
	}
	if err != nil {
		m.mu.Lock()
		m.watching = false
		m.mu.Unlock()
		return fmt.Errorf("watch config: %w", err)
	}

	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		watcher.Close()
		m.mu.Lock()
		m.watching = false
		m.onChange = nil
		m.mu.Unlock()
	}()

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(m.path) ||
				evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(m.debounce, m.reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.log().Warn("config watcher error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) reload() {
	cfg, err := LoadFile(m.path)
	if err != nil {
		m.log().Warn("config reload skipped", zap.String("path", m.path), zap.Error(err))
		return
	}

	m.mu.Lock()
	if reflect.DeepEqual(m.cfg, *cfg) {
		m.mu.Unlock()
		return
	}
	m.cfg = *cfg
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(*cfg)
	}
}

func (m *Manager) log() *zap.Logger {
	if m.logger != nil {
		return m.logger
	}
	return zap.L()
}

// Reloadable copies the fields that may change between runs of a batch.
// Directories, credentials and providers stay pinned to base.
func Reloadable(base *Config, fresh Config) *Config {
	out := base.Clone()
	out.MaxDebateRounds = fresh.MaxDebateRounds
	out.MaxRiskDiscussRounds = fresh.MaxRiskDiscussRounds
	out.MaxToolRounds = fresh.MaxToolRounds
	out.OnlineTools = fresh.OnlineTools
	if len(fresh.SelectedAnalysts) > 0 {
		out.SelectedAnalysts = append([]string(nil), fresh.SelectedAnalysts...)
	}
	return out
}

// WriteFile atomically replaces path with cfg as indented JSON. Credentials
// are stripped first.
func WriteFile(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg.WithoutSecrets(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cortexdesk-*.json")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
