package types

import (
	"errors"
	"time"
)

var (
	ErrNoticeNotFound = errors.New("notice not found")
	ErrMissingTitle   = errors.New("title is required")
	ErrInvalidUpload  = errors.New("invalid upload")
	ErrDisallowedType = errors.New("file type not allowed")
)

// Notice represents one posted item on the board. FilePath references the
// uploaded bytes on disk; the row does not own them.
type Notice struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   *string   `db:"content" json:"content"`
	FilePath  *string   `db:"file_path" json:"file_path"`
	FileType  string    `db:"file_type" json:"file_type"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}
