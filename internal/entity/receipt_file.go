package entity

import (
	"time"
)

// ReceiptFile is an uploaded payment receipt attached to a request. Append-only.
type ReceiptFile struct {
	ID           int64     `json:"id"`
	RequestID    int64     `json:"request_id"`
	OriginalName string    `json:"original_name"`
	StoredPath   string    `json:"stored_path"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	UploadedAt   time.Time `json:"uploaded_at"`
	UploadedBy   int64     `json:"uploaded_by"`
}
