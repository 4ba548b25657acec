package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the single persistent entity of the service. PasswordHash is
// excluded from default repository reads and never serialized in
// responses; the reset-token hash and expiry are either both set or
// both absent.
type User struct {
	ID                     primitive.ObjectID
	FullName               string
	Email                  string
	PasswordHash           string
	PhoneNumber            string
	PasswordResetTokenHash string
	PasswordResetExpiry    *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
