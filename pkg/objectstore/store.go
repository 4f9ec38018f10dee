package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/leadscore/pkg/config"
)

// ErrNotFound is returned by Get when the key does not exist
var ErrNotFound = errors.New("object not found")

// Store reads and writes opaque objects by key
// ⭐ SSOT: 모델 아티팩트 저장소 인터페이스
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// New creates the store selected by STORAGE_TYPE
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "s3":
		return NewS3(ctx, cfg)
	case "local":
		return NewLocal(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}
