// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account row in pyapi_users.
type User struct {
	ID             int64
	Username       string
	Email          string
	FullName       *string
	HashedPassword string
	IsActive       bool
	IsSuperuser    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastLoginAt    *time.Time
}

// ProfileUpdate carries the fields a user may change about themselves.
// Nil pointers leave the column untouched.
type ProfileUpdate struct {
	Email    *string
	FullName *string

	// ClearFullName sets full_name to NULL.
	ClearFullName bool
}

// AdminUserUpdate carries the fields a superuser may change on any account.
type AdminUserUpdate struct {
	Email       *string
	FullName    *string
	IsActive    *bool
	IsSuperuser *bool

	ClearFullName bool
}

// Page bounds a list query.
type Page struct {
	Skip  int
	Limit int
}
