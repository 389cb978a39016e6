package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"marketplace_messaging_service/internal/messaging/domain"
	"marketplace_messaging_service/internal/messaging/repository"
	"marketplace_messaging_service/pkg/logger"
	"marketplace_messaging_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// MessagingWebsocketHandler holds the use cases shared by every connection
type MessagingWebsocketHandler struct {
	threadUC   *ThreadUseCase
	sendUC     *SendMessageUseCase
	subscriber repository.EventSubscriber
}

// NewMessagingWebsocketHandler create MessagingWebsocketHandler
func NewMessagingWebsocketHandler(
	threadUC *ThreadUseCase,
	sendUC *SendMessageUseCase,
	subscriber repository.EventSubscriber,
) *MessagingWebsocketHandler {
	return &MessagingWebsocketHandler{
		threadUC:   threadUC,
		sendUC:     sendUC,
		subscriber: subscriber,
	}
}

// wsSession per-connection state: the identity, the open thread
// subscriptions and a write lock, since subscription callbacks and the
// read loop both write to the same conn.
type wsSession struct {
	conn    *websocket.Conn
	who     domain.Identity
	writeMu sync.Mutex

	mu      sync.Mutex
	threads map[string]*threadSub
}

type threadSub struct {
	cancel context.CancelFunc
	subs   []repository.Subscription
}

// HandleConnection is the WebSocket entry point
func (h *MessagingWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	who := domain.Identity{}
	who.UserID, _ = conn.Locals(middlewares.TokenUserID).(string)
	who.DisplayName, _ = conn.Locals(middlewares.TokenDisplayName).(string)
	who.AvatarURL, _ = conn.Locals(middlewares.TokenAvatarURL).(string)
	who.Role, _ = conn.Locals(middlewares.TokenRole).(string)
	logger.Log.Info("websocket connected", zap.String("user_id", who.UserID))

	s := &wsSession{
		conn:    conn,
		who:     who,
		threads: make(map[string]*threadSub),
	}

	ticker := time.NewTicker(10 * time.Minute)
	ctxClose, cancel := context.WithCancel(context.Background())

	defer func() {
		ticker.Stop()
		s.leaveAll()
		logger.Log.Info("websocket close", zap.String("user_id", who.UserID))
		conn.Close()
		cancel()
	}()

	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Infof("websocket closed:", conn.RemoteAddr())
		return nil
	})

	conn.SetPongHandler(func(appData string) error {
		logger.Log.Debug("received pong", zap.String("user_id", who.UserID))
		return nil
	})

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(appData),
			time.Now().Add(time.Second),
		)
	})

	// every connection listens on the user's own channel so the thread
	// list updates without any thread open
	userSub, err := h.subscriber.SubscribeUserThreads(ctxClose, who.UserID, func(ev domain.ThreadUpdateEvent) {
		h.push(s, domain.NotifyThreadUpdate, map[string]interface{}{"thread": ev})
	})
	if err != nil {
		logger.Log.Error("subscribe user channel failed", zap.String("user_id", who.UserID), zap.Error(err))
		return
	}
	defer userSub.Close()

	go func() {
		for {
			select {
			case <-ticker.C:
				s.writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, []byte("ping"))
				s.writeMu.Unlock()
				if err != nil {
					logger.Log.Errorf("ping error:", err)
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Info("connection closed", zap.String("user_id", who.UserID))
			} else {
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			h.sendError(s, "unknown message type")
			continue
		}
		h.textMessageAction(ctx, s, message)
	}
}

func (h *MessagingWebsocketHandler) textMessageAction(ctx context.Context, s *wsSession, msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		h.sendError(s, "invalid request")
		return
	}

	resp := domain.WSResponse{Action: req.Action, Payload: map[string]interface{}{}}
	switch req.Action {

	// open a thread: recent page marked read, active typers, then live
	// events until leave_thread
	case domain.EnterThread:
		msgs, hasMore, nextCursor, err := h.threadUC.View(ctx, req.ThreadID, s.who.UserID, req.Cursor, req.Limit)
		if err != nil {
			resp.Error = errMessage(err)
			break
		}

		typers, terr := h.threadUC.ActiveTypers(ctx, req.ThreadID, s.who.UserID)
		if terr != nil {
			logger.Log.Warn("active typers lookup failed", zap.String("thread_id", req.ThreadID), zap.Error(terr))
		}

		if err := h.enterThread(s, req.ThreadID); err != nil {
			resp.Error = errMessage(err)
			break
		}

		resp.Success = true
		resp.Payload["thread_id"] = req.ThreadID
		resp.Payload["messages"] = msgs
		resp.Payload["has_more"] = hasMore
		resp.Payload["next_cursor"] = nextCursor
		resp.Payload["typing"] = typers

	case domain.LeaveThread:
		s.leave(req.ThreadID)
		resp.Success = true
		resp.Payload["thread_id"] = req.ThreadID

	case domain.SendMessage:
		m, err := h.sendUC.Execute(ctx, req.ThreadID, s.who, req.Content, req.Attachments, req.ClientMessageID)
		if err != nil {
			resp.Error = errMessage(err)
		} else {
			resp.Success = true
			resp.Payload["message"] = m
			resp.Payload["client_message_id"] = req.ClientMessageID
		}

	case domain.TypingPing:
		if err := h.threadUC.Typing(ctx, req.ThreadID, s.who, false); err != nil {
			resp.Error = errMessage(err)
		} else {
			resp.Success = true
		}

	case domain.StopTyping:
		if err := h.threadUC.Typing(ctx, req.ThreadID, s.who, true); err != nil {
			resp.Error = errMessage(err)
		} else {
			resp.Success = true
		}

	case domain.MarkRead:
		count, err := h.threadUC.MarkThreadRead(ctx, req.ThreadID, s.who.UserID)
		if err != nil {
			resp.Error = errMessage(err)
		} else {
			resp.Success = true
			resp.Payload["marked"] = count
		}

	default:
		h.sendError(s, "unknown action")
		return
	}

	if resp.Error != "" {
		logger.Log.Error("websocket action failed",
			zap.String("user_id", s.who.UserID),
			zap.String("action", string(req.Action)),
			zap.String("err", resp.Error))
	}
	h.sendResponse(s, resp)
}

// enterThread subscribes the session to the thread's live channels.
// Re-entering an already open thread is a no-op.
func (h *MessagingWebsocketHandler) enterThread(s *wsSession, threadID string) error {
	s.mu.Lock()
	if _, open := s.threads[threadID]; open {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	ctxThread, cancel := context.WithCancel(context.Background())
	ts := &threadSub{cancel: cancel}

	msgSub, err := h.subscriber.SubscribeThreadMessages(ctxThread, threadID, func(ev domain.NewMessageEvent) {
		// a live viewer counts as delivery for the counterpart's messages
		if ev.SenderID != s.who.UserID {
			h.threadUC.ConfirmDelivered(context.Background(), threadID, ev.SenderID)
		}
		h.push(s, domain.NotifyMessage, map[string]interface{}{"message": ev})
	})
	if err != nil {
		cancel()
		return err
	}
	ts.subs = append(ts.subs, msgSub)

	typingSub, err := h.subscriber.SubscribeThreadTyping(ctxThread, threadID, func(ev domain.TypingEvent) {
		// a viewer never needs its own typing pings back
		if ev.UserID == s.who.UserID {
			return
		}
		h.push(s, domain.NotifyTyping, map[string]interface{}{"typing": ev})
	})
	if err != nil {
		cancel()
		msgSub.Close()
		return err
	}
	ts.subs = append(ts.subs, typingSub)

	readSub, err := h.subscriber.SubscribeThreadReads(ctxThread, threadID, func(ev domain.ReadEvent) {
		if ev.ReaderID == s.who.UserID {
			return
		}
		h.push(s, domain.NotifyRead, map[string]interface{}{"read": ev})
	})
	if err != nil {
		cancel()
		msgSub.Close()
		typingSub.Close()
		return err
	}
	ts.subs = append(ts.subs, readSub)

	s.mu.Lock()
	s.threads[threadID] = ts
	s.mu.Unlock()
	return nil
}

// push sends a server-initiated notification
func (h *MessagingWebsocketHandler) push(s *wsSession, action domain.Action, payload map[string]interface{}) {
	h.sendResponse(s, domain.WSResponse{
		Action:  action,
		Success: true,
		Payload: payload,
	})
}

func (h *MessagingWebsocketHandler) sendResponse(s *wsSession, resp domain.WSResponse) {
	b, _ := json.Marshal(resp)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}

func (h *MessagingWebsocketHandler) sendError(s *wsSession, errorMsg string) {
	h.sendResponse(s, domain.WSResponse{
		Action:  "error",
		Success: false,
		Error:   errorMsg,
	})
}

func (s *wsSession) leave(threadID string) {
	s.mu.Lock()
	ts, open := s.threads[threadID]
	if open {
		delete(s.threads, threadID)
	}
	s.mu.Unlock()
	if !open {
		return
	}
	ts.cancel()
	for _, sub := range ts.subs {
		sub.Close()
	}
}

func (s *wsSession) leaveAll() {
	s.mu.Lock()
	threads := s.threads
	s.threads = make(map[string]*threadSub)
	s.mu.Unlock()
	for _, ts := range threads {
		ts.cancel()
		for _, sub := range ts.subs {
			sub.Close()
		}
	}
}
