package model

// Role is the authorization role the backend assigns to a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a backend user object.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role,omitempty"`
}

// DisplayName returns the name, falling back to the email.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session is the authenticated identity of the current client.
type Session struct {
	UserID string `json:"userId"`
	Name   string `json:"userName"`
	Email  string `json:"userEmail"`
	Role   Role   `json:"userRole"`
}

// IsAdmin reports whether the session carries the admin role.
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// SessionFromUser builds a session from a login response user.
func SessionFromUser(u User) Session {
	role := u.Role
	if role == "" {
		role = RoleUser
	}
	return Session{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   role,
	}
}
