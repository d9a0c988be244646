package user

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

type User struct {
	ID             uuid.UUID
	Name           string
	Email          string
	PasswordHash   string
	Role           Role
	Specialization *string
	AvatarURL      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Avatar returns the stored avatar URL, or a generated initials
// avatar when the user never uploaded one.
func (u *User) Avatar() string {
	if u.AvatarURL != nil && *u.AvatarURL != "" {
		return *u.AvatarURL
	}
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=random&color=fff", url.QueryEscape(u.Name))
}
