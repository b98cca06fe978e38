package models

import "time"

// Limits of the NUMERIC(10,2) money columns and the session columns.
const (
	MaxMoneyAmount         = 99999999.99
	MaxSessionMinutes      = 24 * 60
	MaxSessionParticipants = 500
)

type SessionType string

const (
	SessionTypeIndividual SessionType = "individual"
	SessionTypeGroup      SessionType = "group"
)

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusConfirmed SessionStatus = "confirmed"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed out of the status.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

type Session struct {
	ID                  int64         `json:"id"`
	CoachID             int64         `json:"mentor_id"`
	StudentID           *int64        `json:"student_id"`
	Type                SessionType   `json:"type"`
	Date                string        `json:"date"`
	Time                string        `json:"time"`
	DurationMinutes     int           `json:"duration"`
	Status              SessionStatus `json:"status"`
	Price               float64       `json:"price"`
	MaxParticipants     *int          `json:"max_participants"`
	CurrentParticipants int           `json:"current_participants"`
	Location            *string       `json:"location"`
	Notes               *string       `json:"notes"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// IsBoundStudent reports whether userID booked the session or is its latest joiner.
func (s *Session) IsBoundStudent(userID int64) bool {
	return s.StudentID != nil && *s.StudentID == userID
}

type SessionParticipant struct {
	SessionID int64     `json:"session_id"`
	StudentID int64     `json:"student_id"`
	Name      string    `json:"name"`
	Avatar    *string   `json:"avatar"`
	JoinedAt  time.Time `json:"joined_at"`
}

type SessionDetail struct {
	Session
	Coach   *UserSummary `json:"mentor,omitempty"`
	Student *UserSummary `json:"student,omitempty"`
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type Payment struct {
	ID        int64         `json:"id"`
	SessionID int64         `json:"session_id"`
	UserID    int64         `json:"user_id"`
	Amount    float64       `json:"amount"`
	Currency  string        `json:"currency"`
	Status    PaymentStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

type CoachDashboard struct {
	TotalStudents    int             `json:"total_students"`
	TotalSessions    int             `json:"total_sessions"`
	PendingVideos    int             `json:"pending_videos"`
	UpcomingSessions int             `json:"upcoming_sessions"`
	RecentSessions   []SessionDetail `json:"recent_sessions"`
}
