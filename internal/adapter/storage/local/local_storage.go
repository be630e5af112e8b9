// Package local stores listing media on a filesystem directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"path"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type Storage struct {
	fs     afero.Fs
	dir    string
	logger *logger.Logger
}

// NewStorage keeps files under dir on fsys. Pass afero.NewOsFs() in production
// and afero.NewMemMapFs() in tests.
func NewStorage(fsys afero.Fs, dir string, log *logger.Logger) (*Storage, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &Storage{fs: fsys, dir: dir, logger: log.Named("LocalStorage")}, nil
}

func (s *Storage) Put(ctx context.Context, key, contentType string, data []byte) error {
	target := path.Join(s.dir, key)
	if exists, err := afero.Exists(s.fs, target); err == nil && exists {
		s.logger.Debug("File already stored", zap.String("key", key))
		return nil
	}

	tmp := target + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	s.logger.Info("File stored", zap.String("key", key), zap.Int("size", len(data)))
	return nil
}

func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	f, err := s.fs.Open(path.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", domain.ErrMediaNotFound
		}
		return nil, "", fmt.Errorf("open %s: %w", key, err)
	}
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return f, contentType, nil
}
