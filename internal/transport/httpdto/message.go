package httpdto

import "encoding/json"

// AttachmentUpload is an inline attachment on a JSON send.
type AttachmentUpload struct {
	FileName      string `json:"file_name" binding:"required"`
	MimeType      string `json:"mime_type"`
	ContentBase64 string `json:"content_base64" binding:"required"`
}

// SendMessageRequest is used for POST /messages. SenderID is optional and,
// when present, must equal the authenticated user.
type SendMessageRequest struct {
	SenderID       string             `json:"sender_id"`
	RecipientID    string             `json:"recipient_id"`
	PartnerID      string             `json:"partner_id"`
	Subject        string             `json:"subject"`
	Content        string             `json:"content"`
	ContentType    string             `json:"content_type"`
	Priority       string             `json:"priority"`
	Category       string             `json:"category"`
	ThreadID       string             `json:"thread_id"`
	ReplyToID      string             `json:"reply_to_id"`
	RelatedOrderID string             `json:"related_order_id"`
	Tags           []string           `json:"tags"`
	Metadata       map[string]any     `json:"metadata"`
	Attachments    []AttachmentUpload `json:"attachments"`
}

// ListMessagesRequest holds query parameters for GET /messages
type ListMessagesRequest struct {
	UserID    string `form:"userId"`
	Status    string `form:"status"`
	Kind      string `form:"kind"`
	Priority  string `form:"priority"`
	Category  string `form:"category"`
	SenderID  string `form:"sender_id"`
	ThreadID  string `form:"thread_id"`
	Search    string `form:"search"`
	LastCheck string `form:"last_check"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

type IdentityResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

type MessageResponse struct {
	ID             string               `json:"id"`
	Kind           string               `json:"kind"`
	SenderID       string               `json:"sender_id"`
	RecipientID    *string              `json:"recipient_id"`
	PartnerID      *string              `json:"partner_id"`
	Subject        *string              `json:"subject"`
	Content        string               `json:"content"`
	ContentType    string               `json:"content_type"`
	Priority       string               `json:"priority"`
	Category       string               `json:"category"`
	Status         string               `json:"status"`
	IsRead         bool                 `json:"is_read"`
	ReadAt         *string              `json:"read_at"`
	DeliveredAt    *string              `json:"delivered_at"`
	ThreadID       *string              `json:"thread_id"`
	ReplyToID      *string              `json:"reply_to_id"`
	RelatedOrderID *string              `json:"related_order_id"`
	Tags           []string             `json:"tags"`
	Metadata       json.RawMessage      `json:"metadata"`
	CreatedAt      string               `json:"created_at"`
	UpdatedAt      string               `json:"updated_at"`
	Sender         *IdentityResponse    `json:"sender,omitempty"`
	Recipient      *IdentityResponse    `json:"recipient,omitempty"`
	Partner        *IdentityResponse    `json:"partner,omitempty"`
	Attachments    []AttachmentResponse `json:"attachments"`
}

type FailedAttachmentResponse struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
	Code     string `json:"code"`
}

type SendMessageResponse struct {
	Message           MessageResponse            `json:"message"`
	MessageID         string                     `json:"messageId"`
	FailedAttachments []FailedAttachmentResponse `json:"failed_attachments"`
}

type ListMessagesResponse struct {
	Messages       []MessageResponse `json:"messages"`
	NewMessages    []MessageResponse `json:"new_messages"`
	TotalCount     int64             `json:"total_count"`
	UnreadCount    int64             `json:"unread_count"`
	HasNewMessages bool              `json:"has_new_messages"`
	NextCursor     *string           `json:"next_cursor"`
}

type ThreadResponse struct {
	ThreadID string            `json:"thread_id"`
	Messages []MessageResponse `json:"messages"`
}

type ReadStateResponse struct {
	MessageID string  `json:"message_id"`
	Status    string  `json:"status"`
	IsRead    bool    `json:"is_read"`
	ReadAt    *string `json:"read_at"`
	Changed   bool    `json:"changed"`
}

type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
