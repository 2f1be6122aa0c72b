package dto

type IndexDocumentResponse struct {
	UserID    string `json:"user_id"`
	Filename  string `json:"filename"`
	Passages  int    `json:"passages"`
	Total     int    `json:"total"`
	Dimension int    `json:"dimension"`
	Created   bool   `json:"created"`
}

type StoreStatsResponse struct {
	UserID    string `json:"user_id"`
	Passages  int    `json:"passages"`
	Dimension int    `json:"dimension"`
}
