package service

import (
	"context"

	"docubot-be/internal/dto"
	"docubot-be/pkg/llm"
	"docubot-be/pkg/rag/session"
	"docubot-be/pkg/vectorstore"
)

type IChatService interface {
	Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error)
	History(ctx context.Context, userID string) (*dto.HistoryResponse, error)
	Reset(ctx context.Context, userID string) error
}

type chatService struct {
	session *session.Session
}

func NewChatService(sess *session.Session) IChatService {
	return &chatService{session: sess}
}

func (s *chatService) Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error) {
	answer, history, err := s.session.Ask(ctx, req.UserID, req.Query)
	if err != nil {
		return nil, err
	}

	passages := make([]dto.PassageDTO, 0, len(answer.Passages))
	for _, p := range answer.Passages {
		passages = append(passages, dto.PassageDTO{
			Text:     p.Passage.Text,
			Source:   p.Passage.Source,
			Distance: p.Distance,
		})
	}

	return &dto.AskResponse{
		Answer:    answer.Text,
		Context:   answer.Context,
		Retrieval: string(answer.Retrieval),
		Fallback:  answer.Fallback,
		Passages:  passages,
		History:   toMessageDTOs(history),
	}, nil
}

func (s *chatService) History(ctx context.Context, userID string) (*dto.HistoryResponse, error) {
	if err := vectorstore.ValidateUserID(userID); err != nil {
		return nil, err
	}
	return &dto.HistoryResponse{
		UserID:  userID,
		History: toMessageDTOs(s.session.History(userID)),
	}, nil
}

func (s *chatService) Reset(ctx context.Context, userID string) error {
	if err := vectorstore.ValidateUserID(userID); err != nil {
		return err
	}
	s.session.Reset(userID)
	return nil
}

func toMessageDTOs(msgs []llm.Message) []dto.MessageDTO {
	out := make([]dto.MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, dto.MessageDTO{Role: m.Role, Content: m.Content})
	}
	return out
}
