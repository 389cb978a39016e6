package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"marketplace_messaging_service/internal/messaging/domain"
	"marketplace_messaging_service/pkg/database"
	"marketplace_messaging_service/pkg/logger"
	"marketplace_messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const attachmentURLExpiry = 24 * time.Hour

// MessagingHandler handles the thread and message HTTP requests
type MessagingHandler struct {
	ThreadUC *ThreadUseCase
	SendUC   *SendMessageUseCase
	Blob     *database.MinIOClient
}

// NewMessagingHandler create messaging handler
func NewMessagingHandler(threadUC *ThreadUseCase, sendUC *SendMessageUseCase, blob *database.MinIOClient) *MessagingHandler {
	return &MessagingHandler{
		ThreadUC: threadUC,
		SendUC:   sendUC,
		Blob:     blob,
	}
}

// identity rebuilds the caller identity the JWT middleware stored in locals
func identity(c *fiber.Ctx) (domain.Identity, error) {
	userID, ok := c.Locals(middlewares.TokenUserID).(string)
	if !ok || userID == "" {
		return domain.Identity{}, fmt.Errorf("c.Locals(%s) is nil", middlewares.TokenUserID)
	}
	name, _ := c.Locals(middlewares.TokenDisplayName).(string)
	avatar, _ := c.Locals(middlewares.TokenAvatarURL).(string)
	role, _ := c.Locals(middlewares.TokenRole).(string)
	return domain.Identity{
		UserID:      userID,
		DisplayName: name,
		AvatarURL:   avatar,
		Role:        role,
	}, nil
}

// errStatus maps domain errors onto HTTP status codes. Authorization
// failures answer as not-found so outsiders cannot probe which thread
// ids exist.
func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNotParticipant):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// errMessage is the body counterpart of errStatus: every 404 answers
// with the same canonical text, otherwise the body would tell a probing
// outsider whether the thread exists even though the status does not.
func errMessage(err error) string {
	if errStatus(err) == fiber.StatusNotFound {
		return domain.ErrNotFound.Error()
	}
	return err.Error()
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(errStatus(err)).JSON(fiber.Map{"success": false, "error": errMessage(err)})
}

func ok(c *fiber.Ctx, payload fiber.Map) error {
	return c.JSON(fiber.Map{"success": true, "payload": payload})
}

// StartThread resolves the unique thread between the caller and a
// provider, creating it on first contact, optionally with a first message
func (h *MessagingHandler) StartThread(c *fiber.Ctx) error {
	type request struct {
		ProviderID  string                   `json:"provider_id"`
		Subject     *string                  `json:"subject"`
		Message     string                   `json:"message"`
		Attachments []domain.AttachmentInput `json:"attachments"`
	}

	who, err := identity(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request"})
	}
	if req.ProviderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "provider_id is required"})
	}

	logger.Log.Debug("StartThread", zap.String("requester", who.UserID), zap.String("provider", req.ProviderID))

	thread, msg, err := h.SendUC.StartThread(c.UserContext(), who, req.ProviderID, req.Subject, req.Message, req.Attachments)
	if err != nil {
		logger.Log.Error("StartThread failed", zap.String("requester", who.UserID), zap.Error(err))
		return fail(c, err)
	}

	payload := fiber.Map{"thread": thread}
	if msg != nil {
		payload["message"] = msg
	}
	return ok(c, payload)
}

// ListThreads lists the caller's threads, newest activity first
func (h *MessagingHandler) ListThreads(c *fiber.Ctx) error {
	who, err := identity(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	filter := domain.ThreadFilter{}
	if v := c.Query("archived"); v != "" {
		archived, perr := strconv.ParseBool(v)
		if perr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "archived must be a boolean"})
		}
		filter.Archived = &archived
	}

	threads, err := h.ThreadUC.ListThreads(c.UserContext(), who.UserID, filter)
	if err != nil {
		logger.Log.Error("ListThreads failed", zap.String("user", who.UserID), zap.Error(err))
		return fail(c, err)
	}
	return ok(c, fiber.Map{"threads": threads})
}

// ListMessages pages a thread backwards from the cursor and marks the
// fetched span read for the viewer
func (h *MessagingHandler) ListMessages(c *fiber.Ctx) error {
	who, err := identity(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	threadID := c.Params("id")
	cursor := c.Query("cursor")
	limit := c.QueryInt("limit")

	msgs, hasMore, nextCursor, err := h.ThreadUC.View(c.UserContext(), threadID, who.UserID, cursor, limit)
	if err != nil {
		logger.Log.Error("ListMessages failed", zap.String("thread_id", threadID), zap.String("user", who.UserID), zap.Error(err))
		return fail(c, err)
	}

	return ok(c, fiber.Map{
		"messages":    msgs,
		"has_more":    hasMore,
		"next_cursor": nextCursor,
	})
}

// SendMessage appends a message to a thread over plain HTTP; the
// websocket surface shares the same pipeline
func (h *MessagingHandler) SendMessage(c *fiber.Ctx) error {
	type request struct {
		Content         string                   `json:"content"`
		ClientMessageID string                   `json:"client_message_id"`
		Attachments     []domain.AttachmentInput `json:"attachments"`
	}

	who, err := identity(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	threadID := c.Params("id")

	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request"})
	}

	msg, err := h.SendUC.Execute(c.UserContext(), threadID, who, req.Content, req.Attachments, req.ClientMessageID)
	if err != nil {
		logger.Log.Error("SendMessage failed", zap.String("thread_id", threadID), zap.String("user", who.UserID), zap.Error(err))
		return fail(c, err)
	}

	return ok(c, fiber.Map{"message": msg, "client_message_id": req.ClientMessageID})
}

// MarkThreadRead marks every message from the counterpart as read
func (h *MessagingHandler) MarkThreadRead(c *fiber.Ctx) error {
	who, err := identity(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	threadID := c.Params("id")
	count, err := h.ThreadUC.MarkThreadRead(c.UserContext(), threadID, who.UserID)
	if err != nil {
		logger.Log.Error("MarkThreadRead failed", zap.String("thread_id", threadID), zap.String("user", who.UserID), zap.Error(err))
		return fail(c, err)
	}
	return ok(c, fiber.Map{"marked": count})
}

// ArchiveThread toggles the archived flag
func (h *MessagingHandler) ArchiveThread(c *fiber.Ctx) error {
	who, err := identity(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	threadID := c.Params("id")
	thread, err := h.ThreadUC.Archive(c.UserContext(), threadID, who.UserID)
	if err != nil {
		logger.Log.Error("ArchiveThread failed", zap.String("thread_id", threadID), zap.String("user", who.UserID), zap.Error(err))
		return fail(c, err)
	}
	return ok(c, fiber.Map{"thread": thread})
}

// UploadAttachment stores the file in blob storage and returns a
// presigned URL plus the attachment descriptor to embed in a later send
func (h *MessagingHandler) UploadAttachment(c *fiber.Ctx) error {
	who, err := identity(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Log.Error("open upload failed", zap.String("user", who.UserID), zap.Error(err))
		return fail(c, domain.ErrUpload)
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("attachments/%s/%s%s", who.UserID, uuid.NewString(), filepath.Ext(fileHeader.Filename))
	if err := h.Blob.UploadObject(c.UserContext(), objectName, file, fileHeader.Size, contentType); err != nil {
		logger.Log.Error("upload attachment failed", zap.String("object", objectName), zap.Error(err))
		return fail(c, domain.ErrUpload)
	}

	url, err := h.Blob.PresignGetURL(c.UserContext(), objectName, attachmentURLExpiry)
	if err != nil {
		logger.Log.Error("presign attachment failed", zap.String("object", objectName), zap.Error(err))
		return fail(c, domain.ErrUpload)
	}

	return ok(c, fiber.Map{
		"attachment": domain.AttachmentInput{
			URL:         url,
			ContentType: contentType,
			Name:        fileHeader.Filename,
		},
		"object_name": objectName,
	})
}
