package handler

import (
	"bytes"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"messaging-core/internal/commands"
	"messaging-core/internal/domain/message"
	"messaging-core/internal/services"
	"messaging-core/internal/transport/httpdto"
	core_errors "messaging-core/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	service *services.MessagingService
}

func NewMessageHandler(service *services.MessagingService) *MessageHandler {
	return &MessageHandler{service: service}
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		respondError(c, core_errors.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

// List serves the polling endpoint. userId must name the caller.
func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req httpdto.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		invalid(c, "invalid query parameters")
		return
	}
	if req.UserID != "" {
		requested, err := parseUUID(req.UserID)
		if err != nil {
			invalid(c, "invalid userId")
			return
		}
		if requested != userID {
			respondError(c, core_errors.ErrPermissionDenied)
			return
		}
	}

	filter := services.MessageFilter{
		Status:   message.Status(req.Status),
		Kind:     message.Kind(req.Kind),
		Priority: message.Priority(req.Priority),
		Category: strings.TrimSpace(req.Category),
		Search:   strings.TrimSpace(req.Search),
		Limit:    req.Limit,
		Offset:   req.Offset,
	}
	var err error
	if filter.SenderID, err = parseOptionalUUID(req.SenderID); err != nil {
		invalid(c, "invalid sender_id")
		return
	}
	if filter.ThreadID, err = parseOptionalUUID(req.ThreadID); err != nil {
		invalid(c, "invalid thread_id")
		return
	}
	if req.LastCheck != "" {
		cursor, err := services.ParseCursor(req.LastCheck)
		if err != nil {
			respondError(c, err)
			return
		}
		filter.LastCheck = sql.NullTime{Time: cursor, Valid: true}
	}

	page, err := h.service.GetMessages(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toPage(page)))
}

// Send accepts either a JSON body with inline base64 attachments or a
// multipart form carrying the JSON in a "payload" field and files under
// "files".
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var (
		req   httpdto.SendMessageRequest
		files []commands.AttachmentInput
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			invalid(c, "invalid multipart body")
			return
		}
		payload := form.Value["payload"]
		if len(payload) == 0 {
			invalid(c, "payload field is required")
			return
		}
		if err := json.Unmarshal([]byte(payload[0]), &req); err != nil {
			invalid(c, "invalid payload")
			return
		}
		var closers []io.Closer
		defer func() {
			for _, cl := range closers {
				_ = cl.Close()
			}
		}()
		for _, fh := range form.File["files"] {
			input, f, err := openUpload(fh)
			if err != nil {
				invalid(c, "unreadable file "+fh.Filename)
				return
			}
			closers = append(closers, f)
			files = append(files, input)
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "invalid request body")
		return
	}

	for _, a := range req.Attachments {
		body, err := base64.StdEncoding.DecodeString(a.ContentBase64)
		if err != nil {
			invalid(c, "attachment "+a.FileName+" is not valid base64")
			return
		}
		files = append(files, commands.AttachmentInput{
			FileName: a.FileName,
			MimeType: a.MimeType,
			Size:     int64(len(body)),
			Body:     bytes.NewReader(body),
		})
	}

	cmd, err := buildSendCommand(userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	cmd.Attachments = files

	result, err := h.service.SendMessage(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(toSendResponse(result)))
}

func buildSendCommand(userID uuid.UUID, req httpdto.SendMessageRequest) (commands.SendMessageCommand, error) {
	cmd := commands.SendMessageCommand{
		SenderID:       userID,
		Subject:        req.Subject,
		Content:        req.Content,
		ContentType:    message.ContentType(req.ContentType),
		Priority:       message.Priority(req.Priority),
		Category:       req.Category,
		RelatedOrderID: req.RelatedOrderID,
		Tags:           req.Tags,
		Metadata:       req.Metadata,
	}
	if req.SenderID != "" {
		senderID, err := parseUUID(req.SenderID)
		if err != nil {
			return cmd, &requestError{message: "invalid sender_id"}
		}
		if senderID != userID {
			return cmd, core_errors.ErrPermissionDenied
		}
	}
	fields := []struct {
		name  string
		raw   string
		value *uuid.NullUUID
	}{
		{"recipient_id", req.RecipientID, &cmd.RecipientID},
		{"partner_id", req.PartnerID, &cmd.PartnerID},
		{"thread_id", req.ThreadID, &cmd.ThreadID},
		{"reply_to_id", req.ReplyToID, &cmd.ReplyToID},
	}
	for _, f := range fields {
		id, err := parseOptionalUUID(f.raw)
		if err != nil {
			return cmd, &requestError{message: "invalid " + f.name}
		}
		*f.value = id
	}
	return cmd, nil
}

func openUpload(fh *multipart.FileHeader) (commands.AttachmentInput, multipart.File, error) {
	f, err := fh.Open()
	if err != nil {
		return commands.AttachmentInput{}, nil, err
	}
	return commands.AttachmentInput{
		FileName: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Size:     fh.Size,
		Body:     f,
	}, f, nil
}

func (h *MessageHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		invalid(c, "invalid message id")
		return
	}

	view, err := h.service.GetMessage(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toMessage(*view)))
}

func (h *MessageHandler) Thread(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	threadID, err := parseUUID(c.Param("threadId"))
	if err != nil {
		invalid(c, "invalid thread id")
		return
	}

	views, err := h.service.GetThread(c.Request.Context(), userID, threadID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ThreadResponse{
		ThreadID: threadID.String(),
		Messages: toMessages(views),
	}))
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		invalid(c, "invalid message id")
		return
	}

	state, err := h.service.MarkAsRead(c.Request.Context(), messageID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toReadState(state)))
}

func (h *MessageHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	updated, err := h.service.MarkAllAsRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkAllReadResponse{Updated: updated}))
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadCountResponse{UnreadCount: count}))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		invalid(c, "invalid message id")
		return
	}

	if err := h.service.DeleteMessage(c.Request.Context(), userID, messageID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadAttachment stores one multipart "file" on a message the caller sent.
func (h *MessageHandler) UploadAttachment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		invalid(c, "invalid message id")
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		invalid(c, "file is required")
		return
	}
	input, f, err := openUpload(fh)
	if err != nil {
		invalid(c, "unreadable file")
		return
	}
	defer f.Close()

	view, err := h.service.UploadAttachment(c.Request.Context(), commands.UploadAttachmentCommand{
		MessageID:  messageID,
		UploaderID: userID,
		File:       input,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(toAttachment(*view)))
}

func (h *MessageHandler) ListAttachments(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, err := parseUUID(c.Param("id"))
	if err != nil {
		invalid(c, "invalid message id")
		return
	}

	views, err := h.service.ListAttachments(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListAttachmentsResponse{
		Attachments: toAttachments(views),
	}))
}
