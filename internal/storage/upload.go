package storage

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxUploadBytes is the largest document accepted.
const MaxUploadBytes = 5 << 20

var (
	// ErrFileTooLarge is returned for documents above MaxUploadBytes.
	ErrFileTooLarge = errors.New("file exceeds the 5 MB limit")
	// ErrUnsupportedType is returned when the sniffed type is not a PDF or Word document.
	ErrUnsupportedType = errors.New("file must be a PDF, DOC or DOCX document")
	// ErrEmptyFile is returned for zero-length uploads.
	ErrEmptyFile = errors.New("file is empty")
)

var allowedTypes = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
}

// Document is a validated upload ready to be stored.
type Document struct {
	Filename    string
	ContentType string
	Extension   string
	Data        []byte
}

// ReadDocument reads at most MaxUploadBytes from r and validates the content
// by sniffing it, ignoring any client supplied content type.
func ReadDocument(filename string, r io.Reader) (*Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrFileTooLarge
	}

	detected := mimetype.Detect(data)
	contentType, ext, ok := allowed(detected)
	if !ok {
		return nil, ErrUnsupportedType
	}

	return &Document{
		Filename:    path.Base(strings.TrimSpace(filename)),
		ContentType: contentType,
		Extension:   ext,
		Data:        data,
	}, nil
}

func allowed(detected *mimetype.MIME) (string, string, bool) {
	for contentType, ext := range allowedTypes {
		if detected.Is(contentType) {
			return contentType, ext, true
		}
	}
	return "", "", false
}

// ObjectKey builds a collision free key for a document.
func ObjectKey(prefix string, doc *Document) string {
	return path.Join(strings.Trim(prefix, "/"), uuid.NewString()+doc.Extension)
}
