package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/metrics"
	"go.uber.org/zap"
)

var mediaKeyPattern = regexp.MustCompile(`^[0-9a-f]{64}(\.[a-z0-9]{1,10})?$`)

// MediaUsecase stores uploaded files under the hash of their content, so
// identical uploads share a key and different files never collide.
type MediaUsecase struct {
	storage domain.MediaStorage
	metrics *metrics.MetricsManager
	logger  *logger.Logger
}

func NewMediaUsecase(storage domain.MediaStorage, m *metrics.MetricsManager, log *logger.Logger) *MediaUsecase {
	return &MediaUsecase{
		storage: storage,
		metrics: m,
		logger:  log.Named("MediaUsecase"),
	}
}

// MediaKey returns the storage key for a file: the sha256 of data in hex plus
// the lower-cased extension of filename.
func MediaKey(filename string, data []byte) string {
	sum := sha256.Sum256(data)
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" && !mediaKeyPattern.MatchString(strings.Repeat("0", 64)+ext) {
		ext = ""
	}
	return hex.EncodeToString(sum[:]) + ext
}

// Store writes file and returns its key.
func (uc *MediaUsecase) Store(ctx context.Context, file domain.MediaFile) (string, error) {
	if len(file.Data) == 0 {
		return "", fmt.Errorf("%w: media file %q is empty", domain.ErrValidation, file.Filename)
	}
	key := MediaKey(file.Filename, file.Data)
	contentType := file.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(file.Data)
	}

	if err := uc.storage.Put(ctx, key, contentType, file.Data); err != nil {
		uc.logger.Error("Failed to store media", zap.String("key", key), zap.String("filename", file.Filename), zap.Error(err))
		return "", fmt.Errorf("%w: store media: %v", domain.ErrPersistence, err)
	}
	if uc.metrics != nil {
		uc.metrics.MediaBytesStored.Add(float64(len(file.Data)))
	}
	uc.logger.Debug("Media stored", zap.String("key", key), zap.Int("size_bytes", len(file.Data)))
	return key, nil
}

// StoreAll stores files in order and returns their keys in the same order.
func (uc *MediaUsecase) StoreAll(ctx context.Context, files []domain.MediaFile) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		key, err := uc.Store(ctx, f)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Open returns the content of a stored file and its content type.
func (uc *MediaUsecase) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if !mediaKeyPattern.MatchString(key) {
		return nil, "", domain.ErrMediaNotFound
	}
	return uc.storage.Get(ctx, key)
}
