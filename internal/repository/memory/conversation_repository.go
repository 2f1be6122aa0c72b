package memory

import (
	"time"

	"github.com/patrickmn/go-cache"

	"docubot-be/pkg/store"
)

type ConversationRepository struct {
	cache *cache.Cache
}

// NewConversationRepository keeps conversations for ttl after their last
// write and purges expired ones every ttl/6.
func NewConversationRepository(ttl time.Duration) *ConversationRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ConversationRepository{
		cache: cache.New(ttl, ttl/6),
	}
}

func (r *ConversationRepository) Save(conv *store.Conversation) {
	r.cache.Set(conv.UserID, conv, cache.DefaultExpiration)
}

func (r *ConversationRepository) Get(userID string) (*store.Conversation, bool) {
	if x, found := r.cache.Get(userID); found {
		return x.(*store.Conversation), true
	}
	return nil, false
}

func (r *ConversationRepository) Delete(userID string) {
	r.cache.Delete(userID)
}

func (r *ConversationRepository) Count() int {
	return r.cache.ItemCount()
}
