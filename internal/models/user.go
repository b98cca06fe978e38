package models

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleCoach   Role = "coach"
)

func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleStudent:
		return RoleStudent, true
	case RoleCoach:
		return RoleCoach, true
	default:
		return "", false
	}
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash *string   `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Avatar       *string   `json:"avatar"`
	Phone        *string   `json:"phone"`
	Bio          *string   `json:"bio"`
	Specialties  []string  `json:"specialties"`
	Price        *float64  `json:"price"`
	Rating       *float64  `json:"rating"`
	GoogleID     *string   `json:"-"`
	FacebookID   *string   `json:"-"`
	AppleID      *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasLocalCredential is false for accounts created through social login only.
func (u *User) HasLocalCredential() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

type UserSummary struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
}

type Mentor struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Avatar        *string  `json:"avatar"`
	Bio           *string  `json:"bio"`
	Specialties   []string `json:"specialties"`
	Rating        *float64 `json:"rating"`
	Price         *float64 `json:"price"`
	TotalSessions int      `json:"total_sessions"`
}
