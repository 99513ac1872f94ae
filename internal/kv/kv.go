// Package kv holds the local key-value backends that persist checklist
// status snapshots.
package kv

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Store is a string key-value store. Get reports found=false for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// ErrInvalidKey is returned for keys that are empty or contain path characters.
var ErrInvalidKey = errors.New("kv: invalid key")

// ValidateKey accepts keys made of letters, digits, '_', '-', ':' and '.'.
func ValidateKey(key string) error {
	if key == "" || len(key) > 200 || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == ':', r == '.':
		default:
			return ErrInvalidKey
		}
	}
	return nil
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}
