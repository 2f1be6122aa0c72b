// Package vectorstore keeps one exact nearest-neighbour index per user and
// persists it through a pluggable Backend.
package vectorstore

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"docubot-be/pkg/apperror"
)

// Passage is one indexed piece of text. Position is the insertion order
// within its store and breaks distance ties.
type Passage struct {
	ID        string
	Text      string
	Vector    []float32
	Position  int
	Source    string
	CreatedAt time.Time
}

type SearchResult struct {
	Passage  Passage
	Distance float32 // squared L2, smaller is closer
}

// Snapshot is the persisted form of a Store.
type Snapshot struct {
	UserID    string
	Dimension int
	Passages  []Passage
}

// Store is a flat L2 index owned by a single user.
type Store struct {
	userID    string
	dimension int
	passages  []Passage
}

func NewStore(userID string) *Store {
	return &Store{userID: userID}
}

// RestoreStore rebuilds a store from a snapshot, renumbering positions.
func RestoreStore(snap *Snapshot) *Store {
	s := &Store{userID: snap.UserID, dimension: snap.Dimension}
	s.passages = make([]Passage, len(snap.Passages))
	for i, p := range snap.Passages {
		p.Position = i
		s.passages[i] = p
	}
	if s.dimension == 0 && len(s.passages) > 0 {
		s.dimension = len(s.passages[0].Vector)
	}
	return s
}

func (s *Store) UserID() string { return s.userID }

// Dimension is 0 until the first vector is added.
func (s *Store) Dimension() int { return s.dimension }

func (s *Store) Len() int { return len(s.passages) }

func (s *Store) Snapshot() *Snapshot {
	passages := make([]Passage, len(s.passages))
	copy(passages, s.passages)
	return &Snapshot{UserID: s.userID, Dimension: s.dimension, Passages: passages}
}

// Add appends texts paired with vectors. Either every pair is appended or none is.
func (s *Store) Add(texts []string, vectors [][]float32, source string) error {
	if len(texts) != len(vectors) {
		return apperror.Newf(apperror.ErrLengthMismatch, "%d texts, %d vectors", len(texts), len(vectors))
	}
	if len(texts) == 0 {
		return nil
	}

	dim := s.dimension
	for i, vec := range vectors {
		if len(vec) == 0 {
			return apperror.Newf(apperror.ErrDimensionMismatch, "vector %d is empty", i)
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return apperror.Newf(apperror.ErrDimensionMismatch, "vector %d has %d dimensions, store has %d", i, len(vec), dim)
		}
	}

	now := time.Now().UTC()
	for i, text := range texts {
		vec := make([]float32, dim)
		copy(vec, vectors[i])
		s.passages = append(s.passages, Passage{
			ID:        uuid.NewString(),
			Text:      text,
			Vector:    vec,
			Position:  len(s.passages),
			Source:    source,
			CreatedAt: now,
		})
	}
	s.dimension = dim
	return nil
}

// Search returns the min(k, Len) closest passages by squared L2 distance.
func (s *Store) Search(query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, apperror.Newf(apperror.ErrInvalidInput, "k must be positive, got %d", k)
	}
	if len(s.passages) == 0 {
		return nil, apperror.Newf(apperror.ErrEmptyStore, "no passages for user %s", s.userID)
	}
	if len(query) != s.dimension {
		return nil, apperror.Newf(apperror.ErrDimensionMismatch, "query has %d dimensions, store has %d", len(query), s.dimension)
	}

	results := make([]SearchResult, len(s.passages))
	for i, p := range s.passages {
		results[i] = SearchResult{Passage: p, Distance: squaredL2(query, p.Vector)}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Passage.Position < results[j].Passage.Position
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// JoinTexts concatenates result texts with a single space.
func JoinTexts(results []SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Passage.Text
	}
	return strings.Join(texts, " ")
}

const maxUserIDLength = 255

// ValidateUserID rejects ids that could escape a per-user storage location.
func ValidateUserID(userID string) error {
	switch {
	case strings.TrimSpace(userID) == "":
		return apperror.New(apperror.ErrInvalidInput, "user id is required")
	case len(userID) > maxUserIDLength:
		return apperror.Newf(apperror.ErrInvalidInput, "user id longer than %d bytes", maxUserIDLength)
	case userID == "." || userID == "..":
		return apperror.Newf(apperror.ErrInvalidInput, "invalid user id %q", userID)
	case strings.ContainsAny(userID, "/\\\x00:"):
		return apperror.Newf(apperror.ErrInvalidInput, "user id %q contains a reserved character", userID)
	}
	return nil
}
