package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blackwell-systems/hangwatch/internal/config"
	"github.com/blackwell-systems/hangwatch/internal/hang"
	"github.com/blackwell-systems/hangwatch/internal/store"
)

// stores bundles the evidence store with the optional event history.
type stores struct {
	// kv holds pending evidence and the crash marker.
	kv hang.Store
	// db is nil for the file store, which keeps no history.
	db    *store.Store
	close func() error
}

func (s *stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// openStores opens the configured backend, creating the schema if needed.
func openStores(cfg *config.Config) (*stores, error) {
	switch cfg.Store {
	case config.StoreFile:
		kv, err := store.NewFileKV(cfg.FileStoreDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		return &stores{kv: kv}, nil

	default:
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err := store.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.CreateSchema(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create database schema: %w", err)
		}
		return &stores{kv: db, db: db, close: db.Close}, nil
	}
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create hangwatch directory: %w", err)
	}
	return filepath.Join(dir, "run.pid"), nil
}
