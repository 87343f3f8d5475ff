package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/taskmate/backend/internal/models"
	"github.com/taskmate/backend/internal/store"
	"github.com/taskmate/backend/pkg/logger"
)

const DefaultMaxMessageLength = 2000

// ChatService delivers project chat over two independent paths: an
// immediate broadcast through the hub and the durable log in the gateway.
// Subscribers converge by re-fetching history on every "appended" event.
type ChatService struct {
	gw        store.Gateway
	hub       *ChatHub
	queue     TaskQueue
	ids       IDGenerator
	maxLength int
	now       func() time.Time
}

func NewChatService(gw store.Gateway, hub *ChatHub, queue TaskQueue, ids IDGenerator, maxLength int) *ChatService {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	return &ChatService{
		gw:        gw,
		hub:       hub,
		queue:     queue,
		ids:       ids,
		maxLength: maxLength,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type PostMessageInput struct {
	Content         string `json:"content"`
	ClientMessageID string `json:"client_message_id" binding:"omitempty,max=64"`
}

// Authorize returns the project when userID is its owner or an active member.
func (s *ChatService) Authorize(ctx context.Context, projectID, userID uint) (*models.Project, error) {
	project, err := s.gw.GetProject(ctx, projectID)
	if err != nil {
		return nil, mapNotFound(err, ErrProjectNotFound)
	}
	if project.OwnerID == userID {
		return project, nil
	}
	member, err := s.gw.IsActiveMember(ctx, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, ErrNotParticipant
	}
	return project, nil
}

// PostMessage broadcasts the message, then appends it to the durable log.
// The broadcast happens even if the append later fails; in that case the
// sender gets an error and is expected to re-fetch history.
func (s *ChatService) PostMessage(ctx context.Context, projectID, authorID uint, content, clientMessageID string) (*ChatMessage, error) {
	if _, err := s.Authorize(ctx, projectID, authorID); err != nil {
		return nil, err
	}
	content, err := s.validateContent(content)
	if err != nil {
		return nil, err
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}
	msg := &models.Message{
		ID:              id,
		ClientMessageID: clientMessageID,
		ProjectID:       projectID,
		UserID:          authorID,
		Content:         content,
		CreatedAt:       s.now(),
	}
	view := toChatMessage(msg, s.authorName(ctx, authorID))

	s.hub.Publish(ChatEvent{Type: EventMessage, ProjectID: projectID, Message: &view})

	if err := s.gw.AppendMessage(ctx, msg); err != nil {
		logger.Error().Err(err).
			Uint("project_id", projectID).
			Uint("user_id", authorID).
			Uint64("message_id", id).
			Msg("durable append failed")
		return nil, fmt.Errorf("append message: %w", err)
	}

	s.hub.Publish(ChatEvent{Type: EventAppended, ProjectID: projectID, MessageID: id, Message: &view})
	if s.queue != nil {
		if err := s.queue.Enqueue(&MessageAppendedTask{
			MessageID: id,
			ProjectID: projectID,
			UserID:    authorID,
			Content:   content,
			CreatedAt: msg.CreatedAt,
		}); err != nil {
			logger.Warn().Err(err).Uint64("message_id", id).Msg("enqueue append notification failed")
		}
	}
	return &view, nil
}

// Broadcast fans out a client-originated message without persisting it. The
// message still gets an id so clients can key it.
func (s *ChatService) Broadcast(ctx context.Context, projectID, authorID uint, content, clientMessageID string) (*ChatMessage, error) {
	if _, err := s.Authorize(ctx, projectID, authorID); err != nil {
		return nil, err
	}
	content, err := s.validateContent(content)
	if err != nil {
		return nil, err
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}
	view := ChatMessage{
		ID:              id,
		ClientMessageID: clientMessageID,
		ProjectID:       projectID,
		Content:         content,
		CreatedAt:       s.now(),
		User:            ChatAuthor{ID: authorID, Name: s.authorName(ctx, authorID)},
	}
	s.hub.Publish(ChatEvent{Type: EventMessage, ProjectID: projectID, Message: &view})
	return &view, nil
}

// GetHistory returns the whole durable log in (created_at, id) order.
func (s *ChatService) GetHistory(ctx context.Context, projectID, callerID uint) ([]ChatMessage, error) {
	if _, err := s.Authorize(ctx, projectID, callerID); err != nil {
		return nil, err
	}
	msgs, err := s.gw.ListMessages(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]ChatMessage, len(msgs))
	for i := range msgs {
		out[i] = toChatMessage(&msgs[i], msgs[i].User.DisplayName())
	}
	return out, nil
}

// Subscription is one viewer's registration on a project topic.
type Subscription struct {
	ID        string
	ProjectID uint
	Events    <-chan ChatEvent

	hub  *ChatHub
	once sync.Once
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.Unsubscribe(s.ProjectID, s.ID)
	})
}

// Subscribe authorizes the viewer and registers a subscription that is
// released when ctx ends or Close is called.
func (s *ChatService) Subscribe(ctx context.Context, projectID, userID uint) (*Subscription, error) {
	if _, err := s.Authorize(ctx, projectID, userID); err != nil {
		return nil, err
	}
	id := fmt.Sprintf("%d-%s", userID, uuid.NewString())
	sub := &Subscription{
		ID:        id,
		ProjectID: projectID,
		Events:    s.hub.Subscribe(projectID, id),
		hub:       s.hub,
	}
	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return sub, nil
}

func (s *ChatService) Hub() *ChatHub {
	return s.hub
}

func (s *ChatService) validateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrContentRequired
	}
	if utf8.RuneCountInString(trimmed) > s.maxLength {
		return "", ErrContentTooLong
	}
	return trimmed, nil
}

func (s *ChatService) authorName(ctx context.Context, userID uint) string {
	user, err := s.gw.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn().Err(err).Uint("user_id", userID).Msg("load message author")
		}
		return (*models.User)(nil).DisplayName()
	}
	return user.DisplayName()
}

func toChatMessage(m *models.Message, authorName string) ChatMessage {
	return ChatMessage{
		ID:              m.ID,
		ClientMessageID: m.ClientMessageID,
		ProjectID:       m.ProjectID,
		Content:         m.Content,
		CreatedAt:       m.CreatedAt,
		User:            ChatAuthor{ID: m.UserID, Name: authorName},
	}
}
