package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saeid-a/SoccerCoachBack/internal/models"
)

type CreateSessionInput struct {
	CoachID         int64
	StudentID       int64
	Type            models.SessionType
	Date            time.Time
	Time            string
	DurationMinutes int
	Price           float64
	MaxParticipants *int
	Location        *string
	Notes           *string
}

type SessionListFilter struct {
	ActorID int64
	Role    models.Role
	Type    string
	Status  string
}

type CoachStats struct {
	TotalStudents    int
	TotalSessions    int
	PendingVideos    int
	UpcomingSessions int
}

const sessionColumns = `s.id, s.coach_id, s.student_id, s.type, to_char(s.date, 'YYYY-MM-DD'), s.time,
	s.duration_min, s.status, s.price::float8, s.max_participants, s.current_participants,
	s.location, s.notes, s.created_at, s.updated_at`

const sessionDetailSelect = `
	SELECT ` + sessionColumns + `,
		c.name, c.avatar, st.id, st.name, st.avatar
	FROM sessions s
	JOIN users c ON c.id = s.coach_id
	LEFT JOIN users st ON st.id = s.student_id
`

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func sessionScanTargets(session *models.Session) []any {
	return []any{
		&session.ID,
		&session.CoachID,
		&session.StudentID,
		&session.Type,
		&session.Date,
		&session.Time,
		&session.DurationMinutes,
		&session.Status,
		&session.Price,
		&session.MaxParticipants,
		&session.CurrentParticipants,
		&session.Location,
		&session.Notes,
		&session.CreatedAt,
		&session.UpdatedAt,
	}
}

func scanSession(row rowScanner) (*models.Session, error) {
	var session models.Session
	if err := row.Scan(sessionScanTargets(&session)...); err != nil {
		return nil, err
	}
	return &session, nil
}

func scanSessionDetail(row rowScanner) (*models.SessionDetail, error) {
	var (
		detail        models.SessionDetail
		coachName     string
		coachAvatar   *string
		studentID     *int64
		studentName   *string
		studentAvatar *string
	)
	targets := append(sessionScanTargets(&detail.Session), &coachName, &coachAvatar, &studentID, &studentName, &studentAvatar)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	detail.Coach = &models.UserSummary{ID: detail.CoachID, Name: coachName, Avatar: coachAvatar}
	if studentID != nil {
		name := ""
		if studentName != nil {
			name = *studentName
		}
		detail.Student = &models.UserSummary{ID: *studentID, Name: name, Avatar: studentAvatar}
	}
	return &detail, nil
}

// Create inserts the session and, for group sessions, registers the creator as
// the first participant in the same statement.
func (r *SessionRepository) Create(ctx context.Context, input CreateSessionInput) (*models.Session, error) {
	currentParticipants := 0
	if input.Type == models.SessionTypeGroup {
		currentParticipants = 1
	}

	query := `
		WITH created AS (
			INSERT INTO sessions (
				coach_id, student_id, type, date, time, duration_min, status, price,
				max_participants, current_participants, location, notes
			)
			VALUES ($1, $2, $3, $4::date, $5, $6, 'pending', $7, $8, $9, $10, $11)
			RETURNING *
		), participant AS (
			INSERT INTO session_participants (session_id, student_id)
			SELECT id, student_id FROM created WHERE type = 'group'
		)
		SELECT ` + sessionColumns + ` FROM created s
	`
	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.CoachID,
		input.StudentID,
		input.Type,
		input.Date,
		input.Time,
		input.DurationMinutes,
		input.Price,
		input.MaxParticipants,
		currentParticipants,
		input.Location,
		input.Notes,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions s WHERE s.id = $1`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) GetDetailByID(ctx context.Context, sessionID int64) (*models.SessionDetail, error) {
	return scanSessionDetail(r.db.QueryRow(ctx, sessionDetailSelect+" WHERE s.id = $1", sessionID))
}

func (r *SessionRepository) List(ctx context.Context, filter SessionListFilter) ([]models.SessionDetail, error) {
	args := []any{filter.ActorID}
	var whereParts []string

	switch filter.Role {
	case models.RoleCoach:
		whereParts = append(whereParts, "s.coach_id = $1")
	default:
		whereParts = append(whereParts, `(s.student_id = $1 OR EXISTS (
			SELECT 1 FROM session_participants p WHERE p.session_id = s.id AND p.student_id = $1
		))`)
	}

	if sessionType := strings.TrimSpace(filter.Type); sessionType != "" {
		args = append(args, sessionType)
		whereParts = append(whereParts, fmt.Sprintf("s.type = $%d", len(args)))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("s.status = $%d", len(args)))
	}

	query := sessionDetailSelect + " WHERE " + strings.Join(whereParts, " AND ") +
		" ORDER BY s.date ASC, s.time ASC, s.id ASC"
	return r.queryDetails(ctx, query, args...)
}

func (r *SessionRepository) RecentByCoach(ctx context.Context, coachID int64, limit int) ([]models.SessionDetail, error) {
	query := sessionDetailSelect + " WHERE s.coach_id = $1 ORDER BY s.date DESC, s.time DESC, s.id DESC LIMIT $2"
	return r.queryDetails(ctx, query, coachID, limit)
}

func (r *SessionRepository) queryDetails(ctx context.Context, query string, args ...any) ([]models.SessionDetail, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.SessionDetail, 0)
	for rows.Next() {
		detail, err := scanSessionDetail(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *detail)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ConditionalIncrementParticipants adds studentID to a confirmed group session
// only while current_participants < max_participants. The check and the
// increment happen in one statement, so concurrent joins cannot overflow the
// capacity. Returns pgx.ErrNoRows when any condition fails; a repeated join by
// the same student fails on the participants primary key.
func (r *SessionRepository) ConditionalIncrementParticipants(
	ctx context.Context,
	sessionID int64,
	studentID int64,
) (*models.Session, error) {
	query := `
		WITH joined AS (
			UPDATE sessions
			SET current_participants = current_participants + 1,
				student_id = $2,
				updated_at = NOW()
			WHERE id = $1
			  AND type = 'group'
			  AND status = 'confirmed'
			  AND current_participants < max_participants
			RETURNING *
		), participant AS (
			INSERT INTO session_participants (session_id, student_id)
			SELECT id, $2 FROM joined
		)
		SELECT ` + sessionColumns + ` FROM joined s
	`
	return scanSession(r.db.QueryRow(ctx, query, sessionID, studentID))
}

func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID int64,
	currentStatus models.SessionStatus,
	nextStatus models.SessionStatus,
) (*models.Session, error) {
	query := `
		UPDATE sessions s
		SET status = $3, updated_at = NOW()
		WHERE s.id = $1 AND s.status = $2
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

func (r *SessionRepository) IsParticipant(ctx context.Context, sessionID int64, studentID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM session_participants WHERE session_id = $1 AND student_id = $2
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, sessionID, studentID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *SessionRepository) ListParticipants(ctx context.Context, sessionID int64) ([]models.SessionParticipant, error) {
	query := `
		SELECT p.session_id, p.student_id, u.name, u.avatar, p.joined_at
		FROM session_participants p
		JOIN users u ON u.id = p.student_id
		WHERE p.session_id = $1
		ORDER BY p.joined_at ASC, p.student_id ASC
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]models.SessionParticipant, 0)
	for rows.Next() {
		var participant models.SessionParticipant
		if err := rows.Scan(
			&participant.SessionID,
			&participant.StudentID,
			&participant.Name,
			&participant.Avatar,
			&participant.JoinedAt,
		); err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *SessionRepository) CoachStats(ctx context.Context, coachID int64, today time.Time) (*CoachStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM (
				SELECT student_id FROM sessions WHERE coach_id = $1 AND student_id IS NOT NULL
				UNION
				SELECT p.student_id FROM session_participants p
				JOIN sessions s ON s.id = p.session_id
				WHERE s.coach_id = $1
			) students)::int,
			(SELECT COUNT(*) FROM sessions WHERE coach_id = $1)::int,
			(SELECT COUNT(*) FROM videos v
				JOIN sessions s ON s.id = v.session_id
				LEFT JOIN video_feedback f ON f.video_id = v.id
				WHERE s.coach_id = $1 AND f.id IS NULL)::int,
			(SELECT COUNT(*) FROM sessions
				WHERE coach_id = $1 AND status = 'confirmed' AND date >= $2::date)::int
	`
	var stats CoachStats
	if err := r.db.QueryRow(ctx, query, coachID, today).Scan(
		&stats.TotalStudents,
		&stats.TotalSessions,
		&stats.PendingVideos,
		&stats.UpcomingSessions,
	); err != nil {
		return nil, err
	}
	return &stats, nil
}
