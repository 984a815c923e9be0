package domain

import "time"

// Attachment is a file uploaded against a message.
type Attachment struct {
	ID          string    `json:"id"`
	MessageID   string    `json:"message_id,omitempty"`
	FileName    string    `json:"file_name"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
