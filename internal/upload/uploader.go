// internal/upload/uploader.go

package upload

import (
	"context"
	"errors"
	"io"
)

var (
	ErrTypeNotAllowed = errors.New("file type not allowed")
	ErrFileTooLarge   = errors.New("file exceeds maximum size")
)

// Result is what the attachment store hands back for a completed
// upload. Field names follow the server's upload response.
type Result struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

// Uploader pushes an attachment to the attachment store before the
// message referencing it is sent.
type Uploader interface {
	Upload(ctx context.Context, file io.Reader, filename, contentType string) (*Result, error)
}
