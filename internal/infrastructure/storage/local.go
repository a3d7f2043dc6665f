package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"firmware-ota-server/internal/domain/firmware"
	"firmware-ota-server/internal/logger"

	"go.uber.org/zap"
)

// LocalStore keeps one firmware binary per version under a base directory.
// Files are write-once: a second Put for the same version is rejected.
type LocalStore struct {
	baseDir string
}

func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create firmware directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// Put streams r into <baseDir>/<filename>, hashing as it writes. The data
// goes to a temp file first and is renamed into place only once fully
// written, so a mid-write abort never leaves a partial artifact visible.
func (s *LocalStore) Put(ctx context.Context, version, filename string, r io.Reader, maxSize int64) (*firmware.PutResult, error) {
	dst := filepath.Join(s.baseDir, filepath.Base(filename))

	if _, err := os.Stat(dst); err == nil {
		return nil, firmware.ErrArtifactExists
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}

	tmp, err := os.CreateTemp(s.baseDir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	hasher := sha256.New()
	var size int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			size += int64(n)
			if maxSize > 0 && size > maxSize {
				return nil, firmware.ErrFileTooLarge
			}
			if _, err := tmp.Write(buf[:n]); err != nil {
				return nil, fmt.Errorf("failed to write artifact: %w", err)
			}
			hasher.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read upload stream: %w", readErr)
		}
	}

	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		tmpName = ""
		return nil, fmt.Errorf("failed to finalize artifact: %w", err)
	}
	tmpName = ""

	logger.Info("Firmware artifact stored",
		zap.String("version", version),
		zap.String("path", dst),
		zap.Int64("size", size),
	)

	return &firmware.PutResult{
		StoragePath: dst,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
		Size:        size,
	}, nil
}

// Open returns a seekable handle so the HTTP layer can serve range requests
// without buffering the file.
func (s *LocalStore) Open(storagePath string) (io.ReadSeekCloser, error) {
	f, err := os.Open(storagePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, firmware.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Remove(storagePath string) error {
	if err := os.Remove(storagePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove artifact: %w", err)
	}
	return nil
}
