package dto

type AskRequest struct {
	UserID string `json:"user_id" form:"user_id" validate:"required,max=255"`
	Query  string `json:"query" form:"query" validate:"required"`
}

type MessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type PassageDTO struct {
	Text     string  `json:"text"`
	Source   string  `json:"source,omitempty"`
	Distance float32 `json:"distance"`
}

type AskResponse struct {
	Answer    string       `json:"answer"`
	Context   string       `json:"context"`
	Retrieval string       `json:"retrieval"`
	Fallback  bool         `json:"fallback"`
	Passages  []PassageDTO `json:"passages"`
	History   []MessageDTO `json:"history"`
}

type HistoryResponse struct {
	UserID  string       `json:"user_id"`
	History []MessageDTO `json:"history"`
}
