package models

import "time"

// MaxVideoSeconds bounds the reported duration of an uploaded clip.
const MaxVideoSeconds = 24 * 60 * 60

type Video struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	SessionID *int64         `json:"session_id"`
	URL       string         `json:"url"`
	Filename  string         `json:"filename"`
	Size      int64          `json:"size"`
	Duration  *int           `json:"duration"`
	CreatedAt time.Time      `json:"created_at"`
	Feedback  *VideoFeedback `json:"feedback"`
}

type VideoFeedback struct {
	ID           int64     `json:"id"`
	VideoID      int64     `json:"video_id"`
	CoachID      int64     `json:"coach_id"`
	Rating       *int      `json:"rating"`
	Comments     *string   `json:"comments"`
	Improvements []string  `json:"improvements"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
