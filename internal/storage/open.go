package storage

import (
	"errors"
	"strings"

	logx "remindd/pkg/logx"
)

// Open initializes the configured backend and wraps it in a Store.
// The store is empty until Load is called.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := openBackend(cfg, log)
	if err != nil {
		return nil, err
	}
	return New(b, log), nil
}

func openBackend(cfg Config, log logx.Logger) (Backend, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory", "mem":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
