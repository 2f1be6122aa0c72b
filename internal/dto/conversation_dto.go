package dto

type ConversationRequest struct {
	UserID string `json:"user_id" form:"user_id" validate:"required,max=255"`
}

type ConversationResponse struct {
	UserID  string `json:"user_id"`
	State   string `json:"state"`
	Started bool   `json:"started,omitempty"`
}

type ActiveConversationsResponse struct {
	Users []string `json:"users"`
}
