package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// UserRole enum
type UserRole string

const (
	RoleCitizen   UserRole = "citizen"
	RoleAdmin     UserRole = "admin"
	RoleAuthority UserRole = "authority"
)

// ValidRole reports whether r is a known role.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleCitizen, RoleAdmin, RoleAuthority:
		return true
	}
	return false
}

const DefaultProfilePic = "/images/uploads/default.jpg"

type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PublicID   string             `bson:"publicId" json:"publicId"`
	Name       string             `bson:"name" json:"name"`
	Email      string             `bson:"email" json:"email"`
	Password   string             `bson:"password,omitempty" json:"-"`
	Role       UserRole           `bson:"role" json:"role"`
	Phone      string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address    string             `bson:"address,omitempty" json:"address,omitempty"`
	ProfilePic string             `bson:"profilepic" json:"profilepic"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) ComparePassword(candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate))
	return err == nil
}

// IsAdmin reports whether the user may perform admin review actions.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
