package models

import "time"

// Post is one unit of content in the ordered program catalog. Position is
// 1-based, unique and dense; it is the only field the scheduling logic
// depends on. Title and body are opaque payload.
type Post struct {
	ID        int64     `json:"id"`
	Position  int       `json:"position"`
	Title     string    `json:"title"`
	BodyHTML  string    `json:"body_html"`
	MediaType *string   `json:"media_type"`
	FileID    *string   `json:"file_id"`
	UpdatedAt time.Time `json:"updated_at"`
}
