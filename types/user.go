package types

import "time"

// User represents an account in the system.
// It contains identity, role flags, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's unique email address. It is also the login identifier.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password"`

	// IsActive reports whether the account may log in and call the API.
	IsActive bool `json:"is_active" db:"is_active"`

	// IsSuperuser grants access to every resource regardless of ownership.
	IsSuperuser bool `json:"is_superuser" db:"is_superuser"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"user_created_at" db:"user_created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"user_updated_at" db:"user_updated_at"`
}

// UserOwner is the public projection of a user embedded in post responses.
type UserOwner struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"user_created_at"`
	UpdatedAt time.Time `json:"user_updated_at"`
}

// UserCreate carries a validated registration request.
type UserCreate struct {
	Username    string
	Email       string
	Password    string
	IsActive    bool
	IsSuperuser bool
}

// UserPatch carries a partial update; nil fields are left untouched.
type UserPatch struct {
	Username    *string
	Email       *string
	Password    *string
	IsActive    *bool
	IsSuperuser *bool
}

// Apply overwrites the fields present in the patch. Password is expected to
// be hashed already.
func (p UserPatch) Apply(user User) User {
	if p.Username != nil {
		user.Username = *p.Username
	}
	if p.Email != nil {
		user.Email = *p.Email
	}
	if p.Password != nil {
		user.PasswordHash = *p.Password
	}
	if p.IsActive != nil {
		user.IsActive = *p.IsActive
	}
	if p.IsSuperuser != nil {
		user.IsSuperuser = *p.IsSuperuser
	}
	return user
}

// UserQuery filters a user listing. An empty Username lists everyone.
// AfterID skips every user with an id at or below it.
type UserQuery struct {
	Username string
	Search   string
	AfterID  int
	Offset   int
	Limit    int
}
