package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the active teacher scope inside session tokens.
type JWTClaims struct {
	TeacherID string `json:"teacher_id"`
	jwt.RegisteredClaims
}
