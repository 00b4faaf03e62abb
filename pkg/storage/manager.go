package storage

import (
	"fmt"
	"sync"
)

// Config carries everything the Manager needs to boot its disks. Values come
// from the config package at startup; tests construct one directly.
type Config struct {
	Default   string // "local" or "s3"
	LocalRoot string
	LocalURL  string

	S3Bucket   string
	S3Region   string
	S3Key      string
	S3Secret   string
	S3Endpoint string // leave empty for real AWS
	S3URL      string
}

// Manager owns the configured disks. Construct one with New at process
// startup and pass it to whatever needs object storage.
type Manager struct {
	mu    sync.RWMutex
	disks map[string]Disk
	def   string
}

// New boots the storage manager. The local disk is always available; the S3
// disk is booted only when a bucket is configured. If the requested default
// disk is not available, New fails rather than silently falling back.
func New(cfg Config) (*Manager, error) {
	m := &Manager{
		disks: map[string]Disk{},
		def:   cfg.Default,
	}
	if m.def == "" {
		m.def = "local"
	}

	m.disks["local"] = newLocalDisk(cfg.LocalRoot, cfg.LocalURL)

	if cfg.S3Bucket != "" {
		d, err := newS3Disk(cfg)
		if err != nil {
			return nil, err
		}
		m.disks["s3"] = d
	}

	if _, ok := m.disks[m.def]; !ok {
		return nil, fmt.Errorf("storage: default disk %q is not configured", m.def)
	}

	return m, nil
}

// Use returns the named disk.
func (m *Manager) Use(name string) (Disk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.disks[name]
	if !ok {
		return nil, fmt.Errorf("storage: disk %q is not configured", name)
	}
	return d, nil
}

// Default returns the default disk.
func (m *Manager) Default() Disk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disks[m.def]
}

// DefaultName returns the name of the default disk.
func (m *Manager) DefaultName() string {
	return m.def
}

// Register plugs in a custom Disk implementation (used by tests to install
// in-memory fakes).
func (m *Manager) Register(name string, d Disk) {
	m.mu.Lock()
	m.disks[name] = d
	m.mu.Unlock()
}
