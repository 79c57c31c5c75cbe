// Package baseline persists, per monitored email, the leak records that have
// already been reported.
//
// The orchestrator performs load, diff and save as separate steps, so the
// store offers a run-wide lock (see Locker) rather than per-call atomicity.
package baseline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/foreseon/IntelXScan/internal/config"
	"github.com/foreseon/IntelXScan/internal/model"
)

type Store interface {
	// Load returns the baseline for email, or an empty slice if none exists.
	// Undecodable data yields an empty slice and an error wrapping
	// model.ErrCorruptBaseline.
	Load(ctx context.Context, email string) ([]model.LeakRecord, error)
	// Save replaces the baseline for email.
	Save(ctx context.Context, email string, records []model.LeakRecord) error
	Close() error
}

// Locker is implemented by stores that can keep other processes out for the
// duration of a run. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context) (func() error, error)
}

type KeyMode string

const (
	KeyLiteral KeyMode = "literal"
	KeyHashed  KeyMode = "hashed"
)

// New builds the store selected by cfg.Backend.
func New(cfg config.StorageConfig, rcfg config.RedisConfig) (Store, error) {
	mode := KeyMode(strings.ToLower(cfg.KeyMode))
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return NewFileStore(cfg.Path, mode)
	case "redis":
		ttl := time.Duration(rcfg.LockTTLSec) * time.Second
		return NewRedisStore(rcfg, mode, ttl), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// storageKey maps an email to the name it is stored under.
func storageKey(email string, mode KeyMode) (string, error) {
	if mode == KeyHashed {
		sum := sha256.Sum256([]byte(email))
		return hex.EncodeToString(sum[:]), nil
	}
	if email == "" || email == "." || email == ".." ||
		strings.ContainsAny(email, "/\\\x00") {
		return "", fmt.Errorf("%w: %q", model.ErrUnsafeKey, email)
	}
	return email, nil
}
