package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, email, password_hash, name, role, avatar, phone, bio, specialties,
	price::float8, rating::float8, google_id, facebook_id, apple_id, created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Avatar,
		&user.Phone,
		&user.Bio,
		&user.Specialties,
		&user.Price,
		&user.Rating,
		&user.GoogleID,
		&user.FacebookID,
		&user.AppleID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, name, role, avatar, google_id, facebook_id, apple_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, specialties, created_at, updated_at
	`
	return r.db.QueryRow(
		ctx,
		query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.Avatar,
		user.GoogleID,
		user.FacebookID,
		user.AppleID,
	).Scan(&user.ID, &user.Specialties, &user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, query, strings.ToLower(email)))
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func providerColumn(provider string) (string, error) {
	switch provider {
	case "google":
		return "google_id", nil
	case "facebook":
		return "facebook_id", nil
	case "apple":
		return "apple_id", nil
	default:
		return "", fmt.Errorf("unsupported provider %q", provider)
	}
}

// FindBySocialIdentity prefers the email match over the provider id match.
func (r *UserRepository) FindBySocialIdentity(
	ctx context.Context,
	email string,
	provider string,
	externalID string,
) (*models.User, error) {
	column, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE email = $1 OR ($2 <> '' AND %s = $2)
		ORDER BY (email = $1) DESC
		LIMIT 1
	`, userColumns, column)
	return scanUser(r.db.QueryRow(ctx, query, strings.ToLower(email), externalID))
}

// BackfillProviderID only writes the provider id when the account has none yet.
func (r *UserRepository) BackfillProviderID(
	ctx context.Context,
	userID int64,
	provider string,
	externalID string,
) (*models.User, error) {
	column, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		UPDATE users
		SET %[1]s = $2, updated_at = NOW()
		WHERE id = $1 AND %[1]s IS NULL
		RETURNING %[2]s
	`, column, userColumns)
	return scanUser(r.db.QueryRow(ctx, query, userID, externalID))
}

type UpdateProfileInput struct {
	Name   *string
	Phone  *string
	Bio    *string
	Avatar *string
}

func (r *UserRepository) UpdateProfile(ctx context.Context, userID int64, input UpdateProfileInput) (*models.User, error) {
	query := `
		UPDATE users
		SET name = COALESCE($2, name),
			phone = COALESCE($3, phone),
			bio = COALESCE($4, bio),
			avatar = COALESCE($5, avatar),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, userID, input.Name, input.Phone, input.Bio, input.Avatar))
}

type UpdateCoachProfileInput struct {
	Name        *string
	Bio         *string
	Phone       *string
	Specialties *[]string
	Price       *float64
}

func (r *UserRepository) UpdateCoachProfile(
	ctx context.Context,
	coachID int64,
	input UpdateCoachProfileInput,
) (*models.User, error) {
	query := `
		UPDATE users
		SET name = COALESCE($2, name),
			bio = COALESCE($3, bio),
			phone = COALESCE($4, phone),
			specialties = COALESCE($5, specialties),
			price = COALESCE($6, price),
			updated_at = NOW()
		WHERE id = $1 AND role = 'coach'
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(
		ctx,
		query,
		coachID,
		input.Name,
		input.Bio,
		input.Phone,
		input.Specialties,
		input.Price,
	))
}

type MentorFilter struct {
	Search    string
	Specialty string
}

const mentorSelect = `
	SELECT u.id, u.name, u.email, u.avatar, u.bio, u.specialties, u.rating::float8, u.price::float8,
		(SELECT COUNT(*) FROM sessions s WHERE s.coach_id = u.id)::int
	FROM users u
`

func scanMentor(row rowScanner) (*models.Mentor, error) {
	var mentor models.Mentor
	err := row.Scan(
		&mentor.ID,
		&mentor.Name,
		&mentor.Email,
		&mentor.Avatar,
		&mentor.Bio,
		&mentor.Specialties,
		&mentor.Rating,
		&mentor.Price,
		&mentor.TotalSessions,
	)
	if err != nil {
		return nil, err
	}
	return &mentor, nil
}

func (r *UserRepository) ListMentors(ctx context.Context, filter MentorFilter) ([]models.Mentor, error) {
	args := []any{}
	whereParts := []string{"u.role = 'coach'"}

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		whereParts = append(whereParts, fmt.Sprintf(
			"(u.name ILIKE $%[1]d OR u.email ILIKE $%[1]d OR u.bio ILIKE $%[1]d)", len(args),
		))
	}
	if specialty := strings.TrimSpace(filter.Specialty); specialty != "" {
		args = append(args, strings.ToLower(specialty))
		whereParts = append(whereParts, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(u.specialties) sp WHERE lower(sp) = $%d)", len(args),
		))
	}

	query := mentorSelect + " WHERE " + strings.Join(whereParts, " AND ") +
		" ORDER BY u.rating DESC NULLS LAST, u.id ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mentors := make([]models.Mentor, 0)
	for rows.Next() {
		mentor, err := scanMentor(rows)
		if err != nil {
			return nil, err
		}
		mentors = append(mentors, *mentor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mentors, nil
}

func (r *UserRepository) GetMentor(ctx context.Context, id int64) (*models.Mentor, error) {
	query := mentorSelect + " WHERE u.id = $1 AND u.role = 'coach'"
	return scanMentor(r.db.QueryRow(ctx, query, id))
}

// ListStudentsForCoach returns students bound to or participating in the coach's sessions.
func (r *UserRepository) ListStudentsForCoach(ctx context.Context, coachID int64, search string) ([]models.User, error) {
	args := []any{coachID}
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id IN (
			SELECT student_id FROM sessions WHERE coach_id = $1 AND student_id IS NOT NULL
			UNION
			SELECT p.student_id FROM session_participants p
			JOIN sessions s ON s.id = p.session_id
			WHERE s.coach_id = $1
		)
	`
	if search = strings.TrimSpace(search); search != "" {
		args = append(args, "%"+search+"%")
		query += " AND (name ILIKE $2 OR email ILIKE $2)"
	}
	query += " ORDER BY name ASC, id ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
