package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

// DefaultMaxFileSize caps uploads at 10 MiB.
const DefaultMaxFileSize = 10 << 20

// DefaultAllowedExtensions is the upload extension allowlist.
var DefaultAllowedExtensions = []string{".pptx", ".docx", ".xlsx"}

// FileService handles uploads, listing and retrieval of file content.
type FileService struct {
	files ports.FileStore
	blobs ports.BlobStore
	clock ports.Clock
	log   *zap.Logger

	maxSize    int64
	allowedExt map[string]struct{}
}

// NewFileService creates a new file service with the default size cap and
// extension allowlist.
func NewFileService(files ports.FileStore, blobs ports.BlobStore, clock ports.Clock, log *zap.Logger) *FileService {
	s := &FileService{
		files:      files,
		blobs:      blobs,
		clock:      clock,
		log:        log,
		maxSize:    DefaultMaxFileSize,
		allowedExt: make(map[string]struct{}),
	}
	for _, ext := range DefaultAllowedExtensions {
		s.allowedExt[ext] = struct{}{}
	}
	return s
}

// WithLimits overrides the size cap and extension allowlist. Intended for
// configuration at startup.
func (s *FileService) WithLimits(maxSize int64, extensions []string) *FileService {
	s.maxSize = maxSize
	s.allowedExt = make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		s.allowedExt[strings.ToLower(strings.TrimSpace(ext))] = struct{}{}
	}
	return s
}

// Upload stores a file on behalf of an ops user. The size is validated
// against the declared length and again against the bytes actually read.
func (s *FileService) Upload(ctx context.Context, uploader *core.User, originalName string, size int64, r io.Reader) (*core.FileMeta, error) {
	if uploader.Type != core.UserTypeOps {
		return nil, core.ErrWrongUserType
	}
	if size > s.maxSize {
		return nil, core.ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if _, ok := s.allowedExt[ext]; !ok {
		return nil, core.ErrFileTypeNotAllowed
	}

	id := uuid.New().String()
	name := id + ext

	// LimitReader guards against a client lying about Content-Length: one
	// extra byte past the cap means the upload is oversized.
	written, err := s.blobs.Save(ctx, name, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	if written > s.maxSize {
		if err := s.blobs.Remove(ctx, name); err != nil {
			s.log.Warn("failed to remove oversized upload", zap.String("name", name), zap.Error(err))
		}
		return nil, core.ErrFileTooLarge
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	meta := &core.FileMeta{
		ID:           id,
		Name:         name,
		OriginalName: originalName,
		Size:         written,
		ContentType:  contentType,
		UploadedBy:   uploader.ID,
		UploadedAt:   s.clock.Now(),
	}
	if err := s.files.Create(ctx, meta); err != nil {
		if rmErr := s.blobs.Remove(ctx, name); rmErr != nil {
			s.log.Warn("failed to remove orphaned blob", zap.String("name", name), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("failed to store file metadata: %w", err)
	}

	s.log.Info("file uploaded",
		zap.String("file", id),
		zap.String("name", originalName),
		zap.Int64("size", written),
		zap.String("uploader", uploader.ID),
	)
	return meta, nil
}

// List returns all uploaded files.
func (s *FileService) List(ctx context.Context) ([]*core.FileMeta, error) {
	return s.files.List(ctx)
}

// Get returns the metadata for a file ID.
func (s *FileService) Get(ctx context.Context, id string) (*core.FileMeta, error) {
	return s.files.Get(ctx, id)
}

// Content opens the bytes of a resource released by a redeemed grant. The
// caller closes the reader.
func (s *FileService) Content(ctx context.Context, handle core.ResourceHandle) (*core.FileMeta, io.ReadCloser, error) {
	meta, err := s.files.Get(ctx, handle.ResourceID)
	if err != nil {
		return nil, nil, err
	}
	r, err := s.blobs.Open(ctx, meta.Name)
	if err != nil {
		return nil, nil, err
	}
	return meta, r, nil
}
