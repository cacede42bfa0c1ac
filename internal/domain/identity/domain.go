package identity

import "time"

type Identity struct {
	ID           string
	LoginKey     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
