package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role constants for token claims and authorization.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username  string             `bson:"username" json:"username"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"` // bcrypt hash
	Role      string             `bson:"role" json:"role"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	Profile   Profile            `bson:"profile" json:"profile"`
	LastLogin *time.Time         `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Profile is the public part of a user account shown next to their activity.
type Profile struct {
	Bio         string            `bson:"bio,omitempty" json:"bio,omitempty"`
	Location    string            `bson:"location,omitempty" json:"location,omitempty"`
	Skills      []string          `bson:"skills,omitempty" json:"skills,omitempty"`
	SocialLinks map[string]string `bson:"socialLinks,omitempty" json:"socialLinks,omitempty"`
}

type Admin struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"` // bcrypt hash
	Name      string             `bson:"name" json:"name"`
	Role      string             `bson:"role" json:"role"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
