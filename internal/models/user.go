package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role identifies what a user may do in the document lifecycle. Roles are
// lookup keys into the transition table, nothing more.
type Role string

const (
	RoleBuyer   Role = "BUYER"
	RoleSeller  Role = "SELLER"
	RoleBank    Role = "BANK"
	RoleAuditor Role = "AUDITOR"
	RoleAdmin   Role = "ADMIN"
)

// User is a registered participant (corporate buyer/seller, bank, auditor).
type User struct {
	ID           string    `gorm:"column:user_id;primaryKey;type:uuid" json:"userId"`
	Name         string    `gorm:"column:name;not null" json:"name"`
	Email        string    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	Role         Role      `gorm:"column:role;type:varchar(20);not null;index" json:"role"`
	OrgName      string    `gorm:"column:org_name" json:"orgName"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"createdAt"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

// BeforeCreate hook
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Actor is the identity snapshot passed explicitly into every core call.
// It comes from the auth middleware; the core never reads ambient session
// state.
type Actor struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	OrgName string `json:"orgName"`
}
