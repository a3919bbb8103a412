package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Manager holds the live configuration and reloads it when the config
// file changes on disk, so feature toggles and the poll interval can be
// flipped without restarting the monitor.
type Manager struct {
	mu      sync.RWMutex
	config  *Config
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	log     *logrus.Entry
}

func NewManager(log *logrus.Entry) (*Manager, error) {
	config, err := Load()
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Manager{config: config, log: log}, nil
}

func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external modification
	configCopy := *m.config
	return &configCopy
}

func (m *Manager) StartWatching(ctx context.Context) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = watcher

	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return err
	}

	m.wg.Add(1)
	go m.watchLoop(ctx, configPath)

	m.log.WithField("path", configPath).Info("watching config for changes")
	return nil
}

func (m *Manager) Stop() {
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.wg.Wait()
}

func (m *Manager) watchLoop(ctx context.Context, configPath string) {
	defer m.wg.Done()
	configFileName := filepath.Base(configPath)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			// Only react to Write and Create events (ignore Chmod, Remove, etc.)
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				m.reloadConfig()
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.log.WithError(err).Warn("config watcher error")

		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) reloadConfig() {
	newConfig, err := Load()
	if err != nil {
		m.log.WithError(err).Error("failed to reload config, keeping previous")
		return
	}

	if err := newConfig.Validate(); err != nil {
		m.log.WithError(err).Error("invalid config after reload, keeping previous")
		return
	}

	m.mu.Lock()
	m.config = newConfig
	m.mu.Unlock()

	m.log.Info("configuration reloaded")
}
