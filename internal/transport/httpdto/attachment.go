package httpdto

// AttachmentResponse is returned for uploaded and listed attachments.
type AttachmentResponse struct {
	ID         string `json:"id"`
	MessageID  string `json:"message_id"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	FileSize   int64  `json:"file_size"`
	FilePath   string `json:"file_path"`
	URL        string `json:"url"`
	UploadedBy string `json:"uploaded_by"`
	CreatedAt  string `json:"created_at"`
}

type ListAttachmentsResponse struct {
	Attachments []AttachmentResponse `json:"attachments"`
}
