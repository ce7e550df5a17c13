package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-progress-api/internal/dto"
	"github.com/noah-isme/gema-progress-api/internal/observability"
)

// allowedMimeTypes lists accepted attachment types: PDF, Word, Excel and common images.
var allowedMimeTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"image/jpeg",
	"image/png",
	"image/gif",
}

// FileStorage abstracts upload destinations. Upload returns an opaque reference.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// UploadService validates attachments and hands them to FileStorage.
type UploadService interface {
	Upload(ctx context.Context, files []*multipart.FileHeader, actor Actor) (dto.UploadBatchResponse, error)
}

type uploadService struct {
	storage  FileStorage
	audit    AuditRecorder
	logger   zerolog.Logger
	maxSize  int64
	maxFiles int
	tracer   trace.Tracer
}

// NewUploadService constructs an upload service. audit may be nil.
func NewUploadService(storage FileStorage, audit AuditRecorder, maxSizeMB, maxFiles int, logger zerolog.Logger) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxAttachments
	}
	return &uploadService{
		storage:  storage,
		audit:    audit,
		logger:   logger.With().Str("component", "upload_service").Logger(),
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		maxFiles: maxFiles,
		tracer:   otel.Tracer("github.com/noah-isme/gema-progress-api/internal/service/upload"),
	}
}

func (s *uploadService) Upload(ctx context.Context, files []*multipart.FileHeader, actor Actor) (dto.UploadBatchResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("upload.max_bytes", s.maxSize),
		attribute.Int("upload.file_count", len(files)),
	)

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if len(files) == 0 {
		span.RecordError(ErrNoFiles)
		span.SetStatus(codes.Error, "validation failed")
		return dto.UploadBatchResponse{}, ErrNoFiles
	}
	if len(files) > s.maxFiles {
		observability.UploadRejected().WithLabelValues("count").Inc()
		err := fmt.Errorf("%w: %d given, at most %d allowed", ErrTooManyAttachments, len(files), s.maxFiles)
		span.RecordError(err)
		span.SetStatus(codes.Error, "too many files")
		return dto.UploadBatchResponse{}, err
	}

	// Validate every file before storing any so a bad file does not leave
	// orphans behind.
	payloads := make([]validatedFile, 0, len(files))
	for _, file := range files {
		payload, err := s.validate(file)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "validation failed")
			return dto.UploadBatchResponse{}, err
		}
		payloads = append(payloads, payload)
	}

	items := make([]dto.UploadResponse, 0, len(payloads))
	for _, payload := range payloads {
		ref, err := s.storage.Upload(ctx, payload.name, bytes.NewReader(payload.data))
		if err != nil {
			observability.UploadRejected().WithLabelValues("storage").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "storage failed")
			return dto.UploadBatchResponse{}, fmt.Errorf("failed to store %s: %w", payload.name, err)
		}

		checksum := sha256.Sum256(payload.data)
		item := dto.UploadResponse{
			Ref:       ref,
			FileName:  payload.name,
			MimeType:  payload.mime,
			SizeBytes: int64(len(payload.data)),
			Checksum:  hex.EncodeToString(checksum[:]),
		}
		items = append(items, item)
		observability.UploadRequests().WithLabelValues(payload.mime).Inc()

		if s.audit != nil {
			if _, err := s.audit.Record(ctx, AuditEntry{
				Actor:      actor,
				Action:     "attachment.uploaded",
				EntityType: "attachment",
				Metadata: map[string]interface{}{
					"ref":        ref,
					"file_name":  item.FileName,
					"mime_type":  item.MimeType,
					"size_bytes": item.SizeBytes,
					"checksum":   item.Checksum,
				},
			}); err != nil {
				s.logger.Warn().Err(err).Str("ref", ref).Msg("failed to audit upload")
			}
		}
	}

	span.SetStatus(codes.Ok, "stored")
	return dto.UploadBatchResponse{Items: items}, nil
}

type validatedFile struct {
	name string
	mime string
	data []byte
}

func (s *uploadService) validate(file *multipart.FileHeader) (validatedFile, error) {
	if file == nil {
		return validatedFile{}, ErrNoFiles
	}

	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return validatedFile{}, fmt.Errorf("%s: %w", file.Filename, ErrUploadTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		return validatedFile{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return validatedFile{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return validatedFile{}, fmt.Errorf("%s: %w", file.Filename, ErrUploadTooLarge)
	}

	detected := mimetype.Detect(buf.Bytes())
	fileType, ok := allowedType(detected)
	if !ok {
		observability.UploadRejected().WithLabelValues("type").Inc()
		return validatedFile{}, fmt.Errorf("%s (%s): %w", file.Filename, detected.String(), ErrUploadTypeNotAllowed)
	}

	return validatedFile{
		name: sanitizeFileName(file.Filename),
		mime: fileType,
		data: buf.Bytes(),
	}, nil
}

func allowedType(detected *mimetype.MIME) (string, bool) {
	for _, allowed := range allowedMimeTypes {
		if detected.Is(allowed) {
			return allowed, true
		}
	}
	return "", false
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

// IsUploadValidationError reports whether err is a client side upload problem.
func IsUploadValidationError(err error) bool {
	return errors.Is(err, ErrUploadTooLarge) || errors.Is(err, ErrUploadTypeNotAllowed) || errors.Is(err, ErrTooManyAttachments) || errors.Is(err, ErrNoFiles)
}
