package domain

import "time"

const UserTypeDonor = "donor"

// User is the account created once an email has been verified.
type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Name         string    `json:"name" dynamodbav:"name"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	UserType     string    `json:"userType" dynamodbav:"user_type"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

type RegisterRequest struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required"`
	Password      string `json:"password" validate:"required,max=72"`
	UserType      string `json:"userType" validate:"omitempty,max=32"`
	EmailVerified bool   `json:"emailVerified"`
}
