package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordCost = 10

var ErrPasswordCost = errors.New("bcrypt cost must be at least 10")

func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, MinPasswordCost)
}

func HashPasswordWithCost(password string, cost int) (string, error) {
	if cost < MinPasswordCost {
		return "", ErrPasswordCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
