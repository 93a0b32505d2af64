package handler

import (
	"database/sql"
	"encoding/json"
	"time"

	"messaging-core/internal/domain/user"
	"messaging-core/internal/services"
	"messaging-core/internal/transport/httpdto"
	core_errors "messaging-core/pkg/errors"

	"github.com/google/uuid"
)

func formatTime(t time.Time) string {
	return services.FormatCursor(t)
}

func nullTime(t sql.NullTime) *string {
	if !t.Valid {
		return nil
	}
	s := formatTime(t.Time)
	return &s
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullUUID(id uuid.NullUUID) *string {
	if !id.Valid {
		return nil
	}
	s := id.UUID.String()
	return &s
}

func toIdentity(ident *user.Identity) *httpdto.IdentityResponse {
	if ident == nil {
		return nil
	}
	return &httpdto.IdentityResponse{
		ID:          ident.ID.String(),
		Kind:        string(ident.Kind),
		DisplayName: ident.DisplayName,
		Email:       ident.Email,
	}
}

func toAttachment(a services.AttachmentView) httpdto.AttachmentResponse {
	return httpdto.AttachmentResponse{
		ID:         a.ID.String(),
		MessageID:  a.MessageID.String(),
		FileName:   a.FileName,
		MimeType:   a.MimeType,
		FileSize:   a.FileSize,
		FilePath:   a.FilePath,
		URL:        a.URL,
		UploadedBy: a.UploadedBy.String(),
		CreatedAt:  formatTime(a.CreatedAt),
	}
}

func toAttachments(list []services.AttachmentView) []httpdto.AttachmentResponse {
	out := make([]httpdto.AttachmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAttachment(a))
	}
	return out
}

func toMessage(v services.MessageView) httpdto.MessageResponse {
	metadata, err := json.Marshal(v.Metadata)
	if err != nil || v.Metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	return httpdto.MessageResponse{
		ID:             v.ID.String(),
		Kind:           string(v.Kind),
		SenderID:       v.SenderID.String(),
		RecipientID:    nullUUID(v.RecipientID),
		PartnerID:      nullUUID(v.PartnerID),
		Subject:        nullString(v.Subject),
		Content:        v.Content,
		ContentType:    string(v.ContentType),
		Priority:       string(v.Priority),
		Category:       v.Category,
		Status:         string(v.Status),
		IsRead:         v.IsRead,
		ReadAt:         nullTime(v.ReadAt),
		DeliveredAt:    nullTime(v.DeliveredAt),
		ThreadID:       nullUUID(v.ThreadID),
		ReplyToID:      nullUUID(v.ReplyToID),
		RelatedOrderID: nullString(v.RelatedOrderID),
		Tags:           tags,
		Metadata:       metadata,
		CreatedAt:      formatTime(v.CreatedAt),
		UpdatedAt:      formatTime(v.UpdatedAt),
		Sender:         toIdentity(v.Sender),
		Recipient:      toIdentity(v.Recipient),
		Partner:        toIdentity(v.Partner),
		Attachments:    toAttachments(v.Attachments),
	}
}

func toMessages(list []services.MessageView) []httpdto.MessageResponse {
	out := make([]httpdto.MessageResponse, 0, len(list))
	for _, v := range list {
		out = append(out, toMessage(v))
	}
	return out
}

func toSendResponse(res *services.SendResult) httpdto.SendMessageResponse {
	failed := make([]httpdto.FailedAttachmentResponse, 0, len(res.FailedAttachments))
	for _, f := range res.FailedAttachments {
		failed = append(failed, httpdto.FailedAttachmentResponse{
			FileName: f.FileName,
			Error:    core_errors.PublicMessage(f.Err),
			Code:     core_errors.Code(f.Err),
		})
	}
	return httpdto.SendMessageResponse{
		Message:           toMessage(res.Message),
		MessageID:         res.Message.ID.String(),
		FailedAttachments: failed,
	}
}

func toPage(page *services.MessagesPage) httpdto.ListMessagesResponse {
	return httpdto.ListMessagesResponse{
		Messages:       toMessages(page.Messages),
		NewMessages:    toMessages(page.NewMessages),
		TotalCount:     page.TotalCount,
		UnreadCount:    page.UnreadCount,
		HasNewMessages: page.HasNewMessages,
		NextCursor:     nullTime(page.NextCursor),
	}
}

func toReadState(state *services.ReadState) httpdto.ReadStateResponse {
	return httpdto.ReadStateResponse{
		MessageID: state.MessageID.String(),
		Status:    string(state.Status),
		IsRead:    state.IsRead,
		ReadAt:    nullTime(state.ReadAt),
		Changed:   state.Changed,
	}
}
