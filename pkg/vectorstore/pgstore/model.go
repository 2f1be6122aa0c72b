package pgstore

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type PassageModel struct {
	Id        string          `gorm:"type:uuid;primaryKey"`
	UserId    string          `gorm:"type:text;not null;index:idx_passages_user_position,priority:1"`
	Position  int             `gorm:"not null;index:idx_passages_user_position,priority:2"`
	Content   string          `gorm:"type:text;not null"`
	Embedding pgvector.Vector `gorm:"type:vector"` // dimension varies per user
	Metadata  datatypes.JSONMap
	CreatedAt time.Time
}

func (PassageModel) TableName() string {
	return "docubot_passages"
}
