// internal/services/archive_service.go
package services

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/synclear/synclear-backend/internal/config"
	"github.com/synclear/synclear-backend/internal/models"
	"github.com/synclear/synclear-backend/internal/utils"
)

// ArchiveService persists generated documents as immutable artifacts: bytes
// go to S3 (or a local directory in development), references go to the
// generated_documents table. Executed documents are written at most once per
// request and never replaced.
type ArchiveService struct {
	db       *gorm.DB
	s3Client *s3.S3
	cfg      config.StorageConfig
}

func NewArchiveService(db *gorm.DB, cfg config.StorageConfig) (*ArchiveService, error) {
	svc := &ArchiveService{db: db, cfg: cfg}

	if cfg.AccessKeyID != "" {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(cfg.AWSRegion),
			Credentials: credentials.NewStaticCredentials(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		svc.s3Client = s3.New(sess)
	}

	return svc, nil
}

// DocumentName builds the deterministic, human-auditable artifact name:
// package reference, sanitized work title, kind, date.
func (s *ArchiveService) DocumentName(packageRef, workTitle string, kind models.DocumentKind, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s.pdf",
		packageRef,
		utils.SanitizeFileLabel(workTitle),
		kind,
		at.Format("2006-01-02"),
	)
}

// ArchiveDraft stores a draft snapshot. A request may accumulate several
// drafts over its life; each gets its own entry.
func (s *ArchiveService) ArchiveDraft(tx *gorm.DB, request *models.Request, content []byte) (*models.GeneratedDocument, error) {
	return s.archive(tx, request, models.DocumentKindDraft, content, "text/plain")
}

// ArchiveExecuted stores the executed counterpart exactly once. A second
// attempt returns ErrDuplicateArtifact; corrections go through supersession,
// never through mutation. Without a caller transaction the exists check and
// the insert run in their own transaction so two concurrent retrievals cannot
// both pass the check; the partial unique index on executed documents backs
// this against other processes.
func (s *ArchiveService) ArchiveExecuted(tx *gorm.DB, request *models.Request, content []byte) (*models.GeneratedDocument, error) {
	if tx == nil {
		var doc *models.GeneratedDocument
		err := s.db.Transaction(func(inner *gorm.DB) error {
			var err error
			doc, err = s.ArchiveExecuted(inner, request, content)
			return err
		})
		if err != nil {
			return nil, err
		}
		return doc, nil
	}

	var existing models.GeneratedDocument
	err := tx.Where("request_id = ? AND kind = ?", request.ID, models.DocumentKindExecuted).First(&existing).Error
	if err == nil {
		return nil, ErrDuplicateArtifact
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check executed document: %w", err)
	}

	return s.archive(tx, request, models.DocumentKindExecuted, content, "application/pdf")
}

func (s *ArchiveService) archive(tx *gorm.DB, request *models.Request, kind models.DocumentKind, content []byte, contentType string) (*models.GeneratedDocument, error) {
	if tx == nil {
		tx = s.db
	}

	now := time.Now()
	name := s.DocumentName(request.PackageReference, request.WorkTitle, kind, now)
	// Timestamped key so historical drafts never collide; the immutability
	// rule for executed documents is enforced above, on the record.
	key := fmt.Sprintf("documents/%s/%d_%s", request.ID, now.UnixNano(), name)

	url, err := s.put(key, content, contentType)
	if err != nil {
		return nil, err
	}

	doc := &models.GeneratedDocument{
		RequestID:   request.ID,
		Kind:        kind,
		Name:        name,
		StorageKey:  key,
		StorageURL:  url,
		ContentType: contentType,
		SizeBytes:   int64(len(content)),
	}

	if err := tx.Create(doc).Error; err != nil {
		return nil, fmt.Errorf("failed to record generated document: %w", err)
	}

	return doc, nil
}

func (s *ArchiveService) put(key string, content []byte, contentType string) (string, error) {
	if s.s3Client != nil {
		_, err := s.s3Client.PutObject(&s3.PutObjectInput{
			Bucket:        aws.String(s.cfg.S3Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(content),
			ContentType:   aws.String(contentType),
			ContentLength: aws.Int64(int64(len(content))),
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload to S3: %w", err)
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.S3Bucket, s.cfg.AWSRegion, key), nil
	}

	path := filepath.Join(s.cfg.LocalDir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	return "file://" + path, nil
}

// PresignedURL returns a short-lived download link for an archived document.
func (s *ArchiveService) PresignedURL(doc *models.GeneratedDocument, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return doc.StorageURL, nil
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.cfg.S3Bucket),
		Key:    aws.String(doc.StorageKey),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}

// Get loads one archived document record.
func (s *ArchiveService) Get(id uuid.UUID) (*models.GeneratedDocument, error) {
	var doc models.GeneratedDocument
	if err := s.db.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &doc, nil
}

// ListByRequest returns document references for the UI, newest first.
func (s *ArchiveService) ListByRequest(requestID uuid.UUID) ([]models.GeneratedDocument, error) {
	var docs []models.GeneratedDocument
	if err := s.db.Where("request_id = ?", requestID).Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}
	return docs, nil
}
