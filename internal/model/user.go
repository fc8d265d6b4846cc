package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleProfessional Role = "professional"
	RolePatient      Role = "patient"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProfessional, RolePatient:
		return true
	}
	return false
}

// User represents anyone who can log in: staff, professionals and patients.
type User struct {
	Base
	Name          string     `json:"name" db:"name"`
	Email         string     `json:"email" db:"email"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	Role          Role       `json:"role" db:"role"`
	Phone         string     `json:"phone,omitempty" db:"phone"`
	Specialty     string     `json:"specialty,omitempty" db:"specialty"`
	LicenseNumber string     `json:"license_number,omitempty" db:"license_number"`
	Bio           string     `json:"bio,omitempty" db:"bio"`
	PhotoURL      string     `json:"photo_url,omitempty" db:"photo_url"`
	Active        bool       `json:"active" db:"active"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
}

// ProfessionalProfile is the public view of a professional.
type ProfessionalProfile struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	PhotoURL  string    `json:"photo_url,omitempty"`
}

func (u *User) Profile() ProfessionalProfile {
	return ProfessionalProfile{
		ID:        u.ID,
		Name:      u.Name,
		Specialty: u.Specialty,
		Bio:       u.Bio,
		PhotoURL:  u.PhotoURL,
	}
}

type CreateUserRequest struct {
	Name          string `json:"name" binding:"required,max=120"`
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=8"`
	Role          Role   `json:"role" binding:"required,oneof=admin professional patient"`
	Phone         string `json:"phone" binding:"max=40"`
	Specialty     string `json:"specialty" binding:"max=120"`
	LicenseNumber string `json:"license_number" binding:"max=60"`
	Bio           string `json:"bio" binding:"max=4000"`
	PhotoURL      string `json:"photo_url" binding:"omitempty,url"`
}

type UpdateUserRequest struct {
	Name          *string `json:"name" binding:"omitempty,max=120"`
	Email         *string `json:"email" binding:"omitempty,email"`
	Role          *Role   `json:"role" binding:"omitempty,oneof=admin professional patient"`
	Phone         *string `json:"phone" binding:"omitempty,max=40"`
	Specialty     *string `json:"specialty" binding:"omitempty,max=120"`
	LicenseNumber *string `json:"license_number" binding:"omitempty,max=60"`
	Bio           *string `json:"bio" binding:"omitempty,max=4000"`
	PhotoURL      *string `json:"photo_url" binding:"omitempty,url"`
	Active        *bool   `json:"active"`
	Password      *string `json:"password" binding:"omitempty,min=8"`
}

type UserFilter struct {
	Role   Role  `form:"role"`
	Active *bool `form:"active"`
	Pagination
}

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   Role
}

func (a Actor) IsAdmin() bool        { return a.Role == RoleAdmin }
func (a Actor) IsProfessional() bool { return a.Role == RoleProfessional }
func (a Actor) IsPatient() bool      { return a.Role == RolePatient }
