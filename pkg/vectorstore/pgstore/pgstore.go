// Package pgstore persists vector stores in PostgreSQL with pgvector.
// All users share one table and every statement is filtered by user id.
package pgstore

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"docubot-be/pkg/vectorstore"
)

const insertBatchSize = 200

type Backend struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Backend {
	return &Backend{db: db}
}

// Migrate enables the vector extension and creates the passages table.
func (b *Backend) Migrate(ctx context.Context) error {
	if err := b.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	return b.db.WithContext(ctx).AutoMigrate(&PassageModel{})
}

func (b *Backend) Exists(ctx context.Context, userID string) (bool, error) {
	if err := vectorstore.ValidateUserID(userID); err != nil {
		return false, err
	}
	var count int64
	err := b.db.WithContext(ctx).Model(&PassageModel{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (b *Backend) Load(ctx context.Context, userID string) (*vectorstore.Snapshot, error) {
	if err := vectorstore.ValidateUserID(userID); err != nil {
		return nil, err
	}

	var rows []PassageModel
	err := b.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	snap := &vectorstore.Snapshot{UserID: userID, Passages: make([]vectorstore.Passage, 0, len(rows))}
	for _, m := range rows {
		snap.Passages = append(snap.Passages, toPassage(m))
	}
	if len(snap.Passages) > 0 {
		snap.Dimension = len(snap.Passages[0].Vector)
	}
	return snap, nil
}

func (b *Backend) Save(ctx context.Context, snap *vectorstore.Snapshot) error {
	if err := vectorstore.ValidateUserID(snap.UserID); err != nil {
		return err
	}

	models := make([]PassageModel, len(snap.Passages))
	for i, p := range snap.Passages {
		models[i] = toModel(snap.UserID, i, p)
	}

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", snap.UserID).Delete(&PassageModel{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.CreateInBatches(&models, insertBatchSize).Error
	})
}

func (b *Backend) Delete(ctx context.Context, userID string) error {
	if err := vectorstore.ValidateUserID(userID); err != nil {
		return err
	}
	return b.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&PassageModel{}).Error
}

func toModel(userID string, position int, p vectorstore.Passage) PassageModel {
	return PassageModel{
		Id:        p.ID,
		UserId:    userID,
		Position:  position,
		Content:   p.Text,
		Embedding: pgvector.NewVector(p.Vector),
		Metadata:  map[string]interface{}{"source": p.Source},
		CreatedAt: p.CreatedAt,
	}
}

func toPassage(m PassageModel) vectorstore.Passage {
	source, _ := m.Metadata["source"].(string)
	return vectorstore.Passage{
		ID:        m.Id,
		Text:      m.Content,
		Vector:    m.Embedding.Slice(),
		Position:  m.Position,
		Source:    source,
		CreatedAt: m.CreatedAt,
	}
}
