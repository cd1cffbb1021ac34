package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/taskflow/internal/model"
)

// loginResponse is the body of a successful POST /auth/login.
type loginResponse struct {
	User *model.User `json:"user"`
}

// Login exchanges credentials for a session cookie and returns the user.
// A rejected login yields an AuthError carrying the backend message.
func (c *Client) Login(ctx context.Context, email, password string) (model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.User{}, &ValidationError{Field: "email", Message: "email is required"}
	}
	if password == "" {
		return model.User{}, &ValidationError{Field: "password", Message: "password is required"}
	}

	body := map[string]string{"email": email, "password": password}

	var resp loginResponse
	err := c.Post(ctx, "/auth/login", body, &resp)
	if err != nil {
		// The backend answers bad credentials with 400 {message}.
		var ve *ValidationError
		if errors.As(err, &ve) {
			return model.User{}, &AuthError{Message: ve.Message}
		}
		if IsNotFound(err) {
			return model.User{}, &AuthError{Message: "Login failed"}
		}
		return model.User{}, err
	}

	if resp.User == nil || resp.User.ID == "" {
		return model.User{}, &AuthError{Message: "Login failed"}
	}

	return *resp.User, nil
}

// Logout invalidates the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.Post(ctx, "/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// Profile returns the user behind the current session cookie.
func (c *Client) Profile(ctx context.Context) (model.User, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, "/auth/profile", &raw); err != nil {
		return model.User{}, fmt.Errorf("fetching profile: %w", err)
	}
	return decodeUser(raw)
}

// decodeUser accepts either a bare user object or one wrapped in {user}.
func decodeUser(raw json.RawMessage) (model.User, error) {
	var wrapped loginResponse
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return *wrapped.User, nil
	}

	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return model.User{}, fmt.Errorf("decoding user: %w", err)
	}
	return u, nil
}
