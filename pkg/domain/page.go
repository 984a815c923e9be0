package domain

// PageRequest selects one page of a paginated listing. Page is zero-based.
type PageRequest struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// SearchQuery searches messages in one room, or everywhere when RoomID is empty.
type SearchQuery struct {
	Query  string `json:"query"`
	RoomID string `json:"room_id,omitempty"`
	PageRequest
}

// MessagePage is one page of messages plus totals.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	Total      int       `json:"total"`
	TotalPages int       `json:"total_pages"`
	Page       int       `json:"page"`
	Size       int       `json:"size"`
}

// HasMore reports whether pages exist after this one.
func (p MessagePage) HasMore() bool {
	return p.Page+1 < p.TotalPages
}
