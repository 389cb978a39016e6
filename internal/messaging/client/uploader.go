package client

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"marketplace_messaging_service/internal/messaging/domain"
	"marketplace_messaging_service/pkg/database"

	"github.com/google/uuid"
)

// Upload one file queued for attachment. Size -1 when unknown.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Uploader stores a file and returns the attachment descriptor to embed
// in the send
type Uploader interface {
	Upload(ctx context.Context, up Upload) (domain.AttachmentInput, error)
}

// BlobUploader Uploader backed by the object store
type BlobUploader struct {
	Blob      *database.MinIOClient
	URLExpiry time.Duration
}

// NewBlobUploader create BlobUploader
func NewBlobUploader(blob *database.MinIOClient, urlExpiry time.Duration) *BlobUploader {
	return &BlobUploader{Blob: blob, URLExpiry: urlExpiry}
}

// Upload store the file and presign its URL
func (u *BlobUploader) Upload(ctx context.Context, up Upload) (domain.AttachmentInput, error) {
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("attachments/%s%s", uuid.NewString(), filepath.Ext(up.Name))
	if err := u.Blob.UploadObject(ctx, objectName, up.Reader, up.Size, contentType); err != nil {
		return domain.AttachmentInput{}, fmt.Errorf("%w: put %s: %v", domain.ErrUpload, objectName, err)
	}

	url, err := u.Blob.PresignGetURL(ctx, objectName, u.URLExpiry)
	if err != nil {
		return domain.AttachmentInput{}, fmt.Errorf("%w: presign %s: %v", domain.ErrUpload, objectName, err)
	}

	return domain.AttachmentInput{
		URL:         url,
		ContentType: contentType,
		Name:        up.Name,
	}, nil
}
