// Package archive uploads finished job output directories to S3-compatible
// object storage (Cloudflare R2, AWS S3).
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aristath/forexbot/internal/events"
	"github.com/rs/zerolog"
)

// ObjectStore stores one object.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64) error
}

// EventEmitter publishes archive events.
type EventEmitter interface {
	EmitTyped(module string, data events.EventData)
}

// Service archives job output directories as tar.gz objects.
type Service struct {
	store      ObjectStore
	prefix     string
	stagingDir string
	events     EventEmitter
	log        zerolog.Logger
}

// NewService creates an archive service. stagingDir holds temporary archives.
func NewService(store ObjectStore, prefix, stagingDir string, emitter EventEmitter, log zerolog.Logger) *Service {
	return &Service{
		store:      store,
		prefix:     strings.Trim(prefix, "/"),
		stagingDir: stagingDir,
		events:     emitter,
		log:        log.With().Str("service", "archive").Logger(),
	}
}

// Key returns the object key for a job directory: <prefix>/<dir name>-<request id>.tar.gz
func (s *Service) Key(requestID, dir string) string {
	name := fmt.Sprintf("%s-%s.tar.gz", filepath.Base(dir), requestID)
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Archive packs dir into a tar.gz and uploads it.
func (s *Service) Archive(ctx context.Context, requestID, dir string) error {
	startTime := time.Now()

	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	staging, err := os.CreateTemp(s.stagingDir, "job-*.tar.gz")
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	defer os.Remove(staging.Name())
	defer staging.Close()

	if err := WriteTarGz(staging, dir); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	size, err := staging.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to size archive: %w", err)
	}
	if _, err := staging.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind archive: %w", err)
	}

	key := s.Key(requestID, dir)
	if err := s.store.Put(ctx, key, staging, size); err != nil {
		return fmt.Errorf("failed to upload archive %s: %w", key, err)
	}

	s.log.Info().
		Str("request_id", requestID).
		Str("key", key).
		Int64("size_bytes", size).
		Dur("duration", time.Since(startTime)).
		Msg("Job output archived")

	if s.events != nil {
		s.events.EmitTyped("archive", &events.JobArchivedData{
			RequestID: requestID,
			Key:       key,
			SizeBytes: size,
		})
	}
	return nil
}

// WriteTarGz writes the regular files under dir to w as a gzip-compressed tar.
// Entry names are relative to dir.
func WriteTarGz(w io.Writer, dir string) error {
	gzipWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzipWriter)

	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		return addFileToArchive(tarWriter, p, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		return walkErr
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode().Perm()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}
