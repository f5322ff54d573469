package twenty

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

const attachmentFolder = "Attachment"

// Attachment is a remote file linked to a lead
type Attachment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FullPath  string    `json:"fullPath"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// GetAttachmentsForLead lists the attachments linked to leadID
func (c *Client) GetAttachmentsForLead(ctx context.Context, leadID string) ([]Attachment, error) {
	var data struct {
		Attachments connection[Attachment] `json:"attachments"`
	}
	if err := c.execute(ctx, opAttachments, map[string]any{"leadId": leadID}, &data); err != nil {
		return nil, err
	}
	return data.Attachments.nodes(), nil
}

// UploadAttachment creates the attachment record, uploads the bytes and
// stores the resulting path on the record. A failure after step 1 triggers a
// best-effort delete of the half-created record.
func (c *Client) UploadAttachment(ctx context.Context, leadID, fileName, contentType string, content []byte) (*Attachment, error) {
	var created struct {
		CreateAttachment Attachment `json:"createAttachment"`
	}
	meta := map[string]any{
		"name":   fileName,
		"type":   attachmentType(contentType),
		"leadId": leadID,
	}
	if err := c.execute(ctx, opCreateAttachment, map[string]any{"data": meta}, &created); err != nil {
		return nil, &UploadError{Step: 1, Err: err}
	}
	id := created.CreateAttachment.ID
	if id == "" {
		return nil, &UploadError{Step: 1, Err: errors.New("remote returned no attachment id")}
	}

	var uploaded struct {
		UploadFile string `json:"uploadFile"`
	}
	vars := map[string]any{"fileFolder": attachmentFolder}
	if err := c.executeUpload(ctx, opUploadFile, vars, fileName, contentType, content, &uploaded); err != nil {
		c.discardAttachment(ctx, id)
		return nil, &UploadError{Step: 2, AttachmentID: id, Err: err}
	}
	if uploaded.UploadFile == "" {
		c.discardAttachment(ctx, id)
		return nil, &UploadError{Step: 2, AttachmentID: id, Err: errors.New("remote returned no storage path")}
	}

	var updated struct {
		UpdateAttachment *Attachment `json:"updateAttachment"`
	}
	patch := map[string]any{"fullPath": uploaded.UploadFile}
	if err := c.execute(ctx, opUpdateAttachment, map[string]any{"id": id, "data": patch}, &updated); err != nil {
		c.discardAttachment(ctx, id)
		return nil, &UploadError{Step: 3, AttachmentID: id, Err: err}
	}
	if updated.UpdateAttachment == nil {
		c.discardAttachment(ctx, id)
		return nil, &UploadError{Step: 3, AttachmentID: id, Err: ErrNotFound}
	}

	c.logger.Info("Uploaded attachment",
		zap.String("attachment_id", id),
		zap.String("lead_id", leadID),
		zap.Int("bytes", len(content)))
	return updated.UpdateAttachment, nil
}

func (c *Client) discardAttachment(ctx context.Context, id string) {
	if err := c.execute(ctx, opDeleteAttachment, map[string]any{"id": id}, nil); err != nil {
		c.logger.Warn("Failed to delete orphaned attachment",
			zap.String("attachment_id", id),
			zap.Error(err))
	}
}

func attachmentType(contentType string) string {
	switch {
	case contentType == "":
		return "Other"
	case strings.HasPrefix(contentType, "image/"):
		return "Image"
	case strings.HasPrefix(contentType, "video/"):
		return "Video"
	case strings.HasPrefix(contentType, "audio/"):
		return "Audio"
	case contentType == "application/pdf", contentType == "text/plain":
		return "TextDocument"
	default:
		return "Other"
	}
}
