package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name     string             `bson:"name" json:"name"`
	Email    string             `bson:"email" json:"email"` // stored lowercase
	Password string             `bson:"password" json:"-"`
	Role     Role               `bson:"role" json:"role"`
	Verified bool               `bson:"verified" json:"verified"`

	// NGO-only
	RegistrationNumber *string `bson:"registrationNumber,omitempty" json:"registrationNumber,omitempty"`
	ContactNumber      string  `bson:"contactNumber,omitempty" json:"contactNumber,omitempty"`
	Website            string  `bson:"website,omitempty" json:"website,omitempty"`
	Address            string  `bson:"address,omitempty" json:"address,omitempty"`
	Description        string  `bson:"description,omitempty" json:"description,omitempty"`

	// Password reset
	ResetOTP         string     `bson:"resetOtp,omitempty" json:"-"`
	ResetOTPExpiry   *time.Time `bson:"resetOtpExpiry,omitempty" json:"-"`
	ResetOTPAttempts int        `bson:"resetOtpAttempts,omitempty" json:"-"` // wrong guesses against the current code

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// UserSummary is the compact identity returned by the auth endpoints.
type UserSummary struct {
	ID       primitive.ObjectID `json:"id"`
	Name     string             `json:"name"`
	Email    string             `json:"email"`
	Role     Role               `json:"role"`
	Verified bool               `json:"verified"`
}

// UserProfile adds the NGO fields to UserSummary.
type UserProfile struct {
	UserSummary
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	ContactNumber      string `json:"contactNumber,omitempty"`
	Website            string `json:"website,omitempty"`
	Address            string `json:"address,omitempty"`
	Description        string `json:"description,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		Verified: u.Verified,
	}
}

func (u *User) Profile() UserProfile {
	p := UserProfile{
		UserSummary:   u.Summary(),
		ContactNumber: u.ContactNumber,
		Website:       u.Website,
		Address:       u.Address,
		Description:   u.Description,
	}
	if u.RegistrationNumber != nil {
		p.RegistrationNumber = *u.RegistrationNumber
	}
	return p
}

// NGORef is the owner summary embedded in campaign responses.
type NGORef struct {
	ID       primitive.ObjectID `json:"_id"`
	Name     string             `json:"name"`
	Email    string             `json:"email,omitempty"`
	Verified bool               `json:"verified"`
}

func (u *User) NGORef() *NGORef {
	return &NGORef{ID: u.ID, Name: u.Name, Email: u.Email, Verified: u.Verified}
}
