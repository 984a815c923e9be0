package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"

	"github.com/chitchat/chitchat/pkg/domain"
)

// maxUploadSize mirrors the backend's multipart limit.
const maxUploadSize = 10 << 20

// UploadFile attaches the contents of r to a message.
func (c *Client) UploadFile(ctx context.Context, messageID, fileName string, r io.Reader) (*domain.Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("messageId", messageID); err != nil {
		return nil, fmt.Errorf("client.UploadFile: %w", err)
	}
	fw, err := mw.CreateFormFile("file", path.Base(fileName))
	if err != nil {
		return nil, fmt.Errorf("client.UploadFile: %w", err)
	}
	n, err := io.Copy(fw, io.LimitReader(r, maxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("client.UploadFile: read %s: %w", fileName, err)
	}
	if n > maxUploadSize {
		return nil, fmt.Errorf("client.UploadFile: %w", &HTTPError{StatusCode: http.StatusRequestEntityTooLarge, Message: "file exceeds 10 MB"})
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("client.UploadFile: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/files/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("client.UploadFile: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var a attachmentDTO
	if err := c.send(req, &a); err != nil {
		return nil, fmt.Errorf("client.UploadFile: %w", err)
	}
	out := a.toDomain()
	if out.MessageID == "" {
		out.MessageID = messageID
	}
	return &out, nil
}

// ListAttachments returns the files attached to a message.
func (c *Client) ListAttachments(ctx context.Context, messageID string) ([]domain.Attachment, error) {
	var list []attachmentDTO
	if err := c.get(ctx, "/api/files/message/"+url.PathEscape(messageID), &list); err != nil {
		return nil, fmt.Errorf("client.ListAttachments: %w", err)
	}
	out := make([]domain.Attachment, 0, len(list))
	for _, a := range list {
		att := a.toDomain()
		att.MessageID = messageID
		out = append(out, att)
	}
	return out, nil
}

// DownloadFile streams a stored file into w and returns the bytes written.
func (c *Client) DownloadFile(ctx context.Context, name string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/files/download/"+url.PathEscape(path.Base(name)), nil)
	if err != nil {
		return 0, fmt.Errorf("client.DownloadFile: create request: %w", err)
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("client.DownloadFile: do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("client.DownloadFile: %w", readHTTPError(resp))
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("client.DownloadFile: %w", err)
	}
	return n, nil
}

// DeleteAttachment removes an attachment.
func (c *Client) DeleteAttachment(ctx context.Context, attachmentID string) error {
	if err := c.delete(ctx, "/api/files/attachment/"+url.PathEscape(attachmentID)); err != nil {
		return fmt.Errorf("client.DeleteAttachment: %w", err)
	}
	return nil
}
