package service

import (
	"context"

	"docubot-be/internal/dto"
	"docubot-be/internal/pkg/logger"
	"docubot-be/pkg/events"
	"docubot-be/pkg/listening"
	"docubot-be/pkg/vectorstore"
)

type IConversationService interface {
	Start(ctx context.Context, userID string) (*dto.ConversationResponse, error)
	End(ctx context.Context, userID string) (*dto.ConversationResponse, error)
	Active(ctx context.Context) *dto.ActiveConversationsResponse
}

type conversationService struct {
	controller *listening.Controller
	publisher  events.Publisher
	logger     logger.ILogger
}

func NewConversationService(controller *listening.Controller, publisher events.Publisher, log logger.ILogger) IConversationService {
	return &conversationService{
		controller: controller,
		publisher:  publisher,
		logger:     log,
	}
}

// Start begins capture for the user. Starting an already listening user is
// reported as success without a second loop.
func (s *conversationService) Start(ctx context.Context, userID string) (*dto.ConversationResponse, error) {
	if err := vectorstore.ValidateUserID(userID); err != nil {
		return nil, err
	}

	started := s.controller.Start(userID)
	if started {
		s.publish(ctx, events.ConversationStarted(userID))
	}
	return &dto.ConversationResponse{
		UserID:  userID,
		State:   s.controller.State(userID).String(),
		Started: started,
	}, nil
}

// End stops capture and waits for the loop to exit. Ending an idle user is a no-op.
func (s *conversationService) End(ctx context.Context, userID string) (*dto.ConversationResponse, error) {
	if err := vectorstore.ValidateUserID(userID); err != nil {
		return nil, err
	}

	wasListening := s.controller.State(userID) == listening.Listening
	if err := s.controller.Stop(ctx, userID); err != nil {
		return nil, err
	}
	if wasListening {
		s.publish(ctx, events.ConversationEnded(userID))
	}
	return &dto.ConversationResponse{
		UserID: userID,
		State:  s.controller.State(userID).String(),
	}, nil
}

func (s *conversationService) Active(ctx context.Context) *dto.ActiveConversationsResponse {
	return &dto.ActiveConversationsResponse{Users: s.controller.Active()}
}

func (s *conversationService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("ConversationService", "Failed to publish conversation event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}
