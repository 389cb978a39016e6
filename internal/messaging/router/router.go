package router

import (
	"context"

	"marketplace_messaging_service/internal/messaging/app"
	"marketplace_messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes register the messaging routes
func RegisterRoutes(r *fiber.App, handler *app.MessagingHandler, messagingWebsocket *app.MessagingWebsocketHandler) {
	r.Use(middlewares.JWTMiddleware())

	r.Post("/threads", handler.StartThread)
	r.Get("/threads", handler.ListThreads)
	r.Get("/threads/:id/messages", handler.ListMessages)
	r.Post("/threads/:id/messages", handler.SendMessage)
	r.Post("/threads/:id/read", handler.MarkThreadRead)
	r.Post("/threads/:id/archive", handler.ArchiveThread)
	r.Post("/attachments", handler.UploadAttachment)

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		messagingWebsocket.HandleConnection(context.Background(), c)
	}))
}
