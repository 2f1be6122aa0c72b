package service

import (
	"context"
	"io"
	"path/filepath"

	"docubot-be/internal/dto"
	"docubot-be/internal/pkg/logger"
	"docubot-be/pkg/embedding"
	"docubot-be/pkg/events"
	"docubot-be/pkg/extractor"
	"docubot-be/pkg/utils"
	"docubot-be/pkg/vectorstore"
)

type IDocumentService interface {
	Index(ctx context.Context, userID, filename string, r io.Reader) (*dto.IndexDocumentResponse, error)
	Stats(ctx context.Context, userID string) (*dto.StoreStatsResponse, error)
	Delete(ctx context.Context, userID string) error
}

type SplitConfig struct {
	Policy       utils.SplitPolicy
	ChunkSize    int
	ChunkOverlap int
}

type documentService struct {
	extractor *extractor.Extractor
	embedder  *embedding.Strategy
	manager   *vectorstore.Manager
	publisher events.Publisher
	split     SplitConfig
	logger    logger.ILogger
}

func NewDocumentService(
	ext *extractor.Extractor,
	embedder *embedding.Strategy,
	manager *vectorstore.Manager,
	publisher events.Publisher,
	split SplitConfig,
	log logger.ILogger,
) IDocumentService {
	return &documentService{
		extractor: ext,
		embedder:  embedder,
		manager:   manager,
		publisher: publisher,
		split:     split,
		logger:    log,
	}
}

// Index extracts the upload, splits it into passages, embeds them and adds
// them to the user's store. A document without text indexes zero passages.
func (s *documentService) Index(ctx context.Context, userID, filename string, r io.Reader) (*dto.IndexDocumentResponse, error) {
	if err := vectorstore.ValidateUserID(userID); err != nil {
		return nil, err
	}

	text, err := s.extractor.ExtractReader(filename, r)
	if err != nil {
		return nil, err
	}

	source := filepath.Base(filename)
	passages := utils.Split(s.split.Policy, text, s.split.ChunkSize, s.split.ChunkOverlap)
	if len(passages) == 0 {
		s.logger.Warn("DocumentService", "Document has no text", map[string]interface{}{
			"user_id":  userID,
			"filename": source,
		})
		stats, err := s.Stats(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &dto.IndexDocumentResponse{
			UserID:    userID,
			Filename:  source,
			Total:     stats.Passages,
			Dimension: stats.Dimension,
		}, nil
	}

	vectors, err := s.embedder.EmbedDocument(ctx, text, passages)
	if err != nil {
		return nil, err
	}

	res, err := s.manager.Ingest(ctx, userID, source, passages, vectors)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.DocumentIndexed(userID, source, res.Added, res.Total)); err != nil {
			s.logger.Warn("DocumentService", "Failed to publish document event", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		}
	}

	return &dto.IndexDocumentResponse{
		UserID:    userID,
		Filename:  source,
		Passages:  res.Added,
		Total:     res.Total,
		Dimension: res.Dimension,
		Created:   res.Created,
	}, nil
}

func (s *documentService) Stats(ctx context.Context, userID string) (*dto.StoreStatsResponse, error) {
	passages, dim, err := s.manager.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.StoreStatsResponse{UserID: userID, Passages: passages, Dimension: dim}, nil
}

func (s *documentService) Delete(ctx context.Context, userID string) error {
	return s.manager.Delete(ctx, userID)
}
