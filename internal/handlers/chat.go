package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskmate/backend/internal/middleware"
	"github.com/taskmate/backend/internal/services"
	"github.com/taskmate/backend/pkg/logger"
	"github.com/taskmate/backend/pkg/response"
	"golang.org/x/net/websocket"
)

// ChatHandler serves project chat over HTTP, SSE and WebSocket.
type ChatHandler struct {
	chatService *services.ChatService
	postLimiter *middleware.RateLimiter
}

// NewChatHandler wires the chat endpoints. postLimiter, when set, is the same
// per-user limiter that guards HTTP posts; WebSocket posts are charged to it.
func NewChatHandler(chatService *services.ChatService, postLimiter *middleware.RateLimiter) *ChatHandler {
	return &ChatHandler{chatService: chatService, postLimiter: postLimiter}
}

// History returns the full durable log of a project chat.
// GET /api/projects/:id/messages
func (h *ChatHandler) History(c *gin.Context) {
	projectID, ok := paramID(c, "id", "invalid project id")
	if !ok {
		return
	}

	msgs, err := h.chatService.GetHistory(c.Request.Context(), projectID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msgs)
}

// Post broadcasts and persists a message.
// POST /api/projects/:id/messages
func (h *ChatHandler) Post(c *gin.Context) {
	projectID, ok := paramID(c, "id", "invalid project id")
	if !ok {
		return
	}

	var req services.PostMessageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	msg, err := h.chatService.PostMessage(c.Request.Context(), projectID, middleware.GetUserID(c), req.Content, req.ClientMessageID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

const (
	frameReady = "ready"
	frameAck   = "ack"
	frameError = "error"

	inboundMessage = "message"
	inboundPost    = "post"
)

// wsInbound is a client frame. "message" is broadcast only; "post" is
// broadcast and persisted.
type wsInbound struct {
	Type            string `json:"type"`
	Content         string `json:"content"`
	ClientMessageID string `json:"client_message_id"`
}

// wsOutbound carries hub events plus ready/ack/error control frames.
type wsOutbound struct {
	Type            string                `json:"type"`
	ProjectID       uint                  `json:"project_id,omitempty"`
	MessageID       uint64                `json:"message_id,string,omitempty"`
	ClientMessageID string                `json:"client_message_id,omitempty"`
	Message         *services.ChatMessage `json:"message,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// WebSocket is a bidirectional chat channel.
// GET /api/projects/:id/ws
func (h *ChatHandler) WebSocket(c *gin.Context) {
	projectID, ok := paramID(c, "id", "invalid project id")
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub, err := h.chatService.Subscribe(ctx, projectID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer sub.Close()

	server := websocket.Server{
		// Origin is not checked; the token already authenticated the caller.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			logger.Info().Str("client_id", sub.ID).Uint("project_id", projectID).Msg("WebSocket client connected")

			done := make(chan struct{})
			go func() {
				defer close(done)
				h.pumpEvents(ctx, ws, sub)
			}()

			if err := websocket.JSON.Send(ws, wsOutbound{Type: frameReady, ProjectID: projectID}); err == nil {
				h.readFrames(ctx, ws, projectID, userID)
			}

			cancel()
			sub.Close()
			<-done
			logger.Info().Str("client_id", sub.ID).Msg("WebSocket client disconnected")
		},
	}
	server.ServeHTTP(c.Writer, c.Request)
}

// pumpEvents writes hub events to the socket. It closes the socket when the
// session ends so a blocked reader returns.
func (h *ChatHandler) pumpEvents(ctx context.Context, ws *websocket.Conn, sub *services.Subscription) {
	defer ws.Close()
	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			frame := wsOutbound{
				Type:      string(event.Type),
				ProjectID: event.ProjectID,
				MessageID: event.MessageID,
				Message:   event.Message,
			}
			if err := websocket.JSON.Send(ws, frame); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *ChatHandler) readFrames(ctx context.Context, ws *websocket.Conn, projectID, userID uint) {
	for {
		var in wsInbound
		if err := websocket.JSON.Receive(ws, &in); err != nil {
			if isDecodeError(err) {
				if websocket.JSON.Send(ws, wsOutbound{Type: frameError, Error: "malformed frame"}) != nil {
					return
				}
				continue
			}
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.Debug().Err(err).Uint("project_id", projectID).Msg("WebSocket read ended")
			}
			return
		}

		reply := h.handleFrame(ctx, projectID, userID, &in)
		if reply == nil {
			continue
		}
		if err := websocket.JSON.Send(ws, reply); err != nil {
			return
		}
	}
}

func (h *ChatHandler) handleFrame(ctx context.Context, projectID, userID uint, in *wsInbound) *wsOutbound {
	var (
		msg *services.ChatMessage
		err error
	)
	switch in.Type {
	case inboundMessage:
		msg, err = h.chatService.Broadcast(ctx, projectID, userID, in.Content, in.ClientMessageID)
	case inboundPost:
		if h.postLimiter != nil && !h.postLimiter.Allow(middleware.UserKey(userID)) {
			return &wsOutbound{Type: frameError, ClientMessageID: in.ClientMessageID, Error: "too many requests, please try again later"}
		}
		msg, err = h.chatService.PostMessage(ctx, projectID, userID, in.Content, in.ClientMessageID)
	default:
		return &wsOutbound{Type: frameError, ClientMessageID: in.ClientMessageID, Error: "unknown frame type"}
	}
	if err != nil {
		return &wsOutbound{Type: frameError, ClientMessageID: in.ClientMessageID, Error: clientMessage(err)}
	}
	if in.Type == inboundMessage {
		return nil
	}
	return &wsOutbound{Type: frameAck, ClientMessageID: in.ClientMessageID, MessageID: msg.ID, Message: msg}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// clientMessage is the text of an AppError, or the generic message for
// anything else.
func clientMessage(err error) string {
	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	logger.Error().Err(err).Msg("chat frame failed")
	return response.InternalErrorMessage
}
