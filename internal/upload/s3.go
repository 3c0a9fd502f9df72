// internal/upload/s3.go

package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// S3Uploader pushes attachments straight to an S3 bucket fronted by a
// CDN, for deployments where the chat server does not proxy uploads.
type S3Uploader struct {
	s3Client     *s3.S3
	bucketName   string
	cdnURL       string
	maxFileSize  int64
	allowedTypes []string
}

func NewS3Uploader(sess *awssession.Session, bucketName, cdnURL string, maxFileSize int64) *S3Uploader {
	return &S3Uploader{
		s3Client:    s3.New(sess),
		bucketName:  bucketName,
		cdnURL:      cdnURL,
		maxFileSize: maxFileSize,
		allowedTypes: []string{
			"image/jpeg", "image/png", "image/gif", "image/webp",
			"video/mp4", "video/quicktime", "video/webm",
			"audio/mpeg", "audio/wav", "audio/ogg",
			"application/pdf", "application/zip",
		},
	}
}

func (u *S3Uploader) Upload(ctx context.Context, file io.Reader, filename, contentType string) (*Result, error) {
	if !u.isAllowedType(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotAllowed, contentType)
	}

	// Generate unique key
	ext := filepath.Ext(filename)
	key := fmt.Sprintf("messages/%s/%s%s",
		time.Now().Format("2006/01/02"),
		uuid.New().String(),
		ext,
	)

	// Read file into buffer to check size
	buf := new(bytes.Buffer)
	size, err := io.Copy(buf, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if size > u.maxFileSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFileTooLarge, size, u.maxFileSize)
	}

	_, err = u.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		ACL:           aws.String("public-read"),
		Metadata: map[string]*string{
			"uploaded-at": aws.String(time.Now().Format(time.RFC3339)),
			"file-name":   aws.String(filename),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &Result{
		FileURL:  fmt.Sprintf("%s/%s", u.cdnURL, key),
		FileName: filename,
		FileType: contentType,
	}, nil
}

func (u *S3Uploader) isAllowedType(contentType string) bool {
	for _, allowed := range u.allowedTypes {
		if allowed == contentType {
			return true
		}
	}
	return false
}

// decodeJSON is shared by the HTTP-backed collaborator clients.
func decodeJSON(r io.Reader, dst interface{}) error {
	return json.NewDecoder(r).Decode(dst)
}
