package model

import "time"

// Organizer represents an exam organizer account. Each organizer holds their
// own credentials; there is no shared operator code.
type Organizer struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OrganizerLoginRequest is the payload for organizer authentication.
type OrganizerLoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// OrganizerLoginResponse is returned after successful organizer login.
type OrganizerLoginResponse struct {
	Token     string    `json:"token"`
	Organizer Organizer `json:"organizer"`
}
