package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/nhle/taskflow/internal/model"
)

// CreateUserRequest is the POST /users/create body.
type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the required fields before anything is sent.
func (r CreateUserRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return &ValidationError{Field: "name", Message: "name is required"}
	case strings.TrimSpace(r.Email) == "":
		return &ValidationError{Field: "email", Message: "email is required"}
	case r.Password == "":
		return &ValidationError{Field: "password", Message: "password is required"}
	}
	return nil
}

// ListUsers returns the users available as assignees.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.Get(ctx, "/users", &users); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// ListAllUsers returns every user account (admin only).
func (c *Client) ListAllUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.Get(ctx, "/users/all", &users); err != nil {
		return nil, fmt.Errorf("listing all users: %w", err)
	}
	return users, nil
}

// GetUser fetches a single user by id.
func (c *Client) GetUser(ctx context.Context, id string) (model.User, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, "/users/"+url.PathEscape(id), &raw); err != nil {
		return model.User{}, fmt.Errorf("getting user %s: %w", id, notFoundAs(err, "user", id))
	}
	return decodeUser(raw)
}

// CreateUser creates a new account (admin only).
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (model.User, error) {
	if err := req.Validate(); err != nil {
		return model.User{}, err
	}

	var raw json.RawMessage
	if err := c.Post(ctx, "/users/create", req, &raw); err != nil {
		return model.User{}, fmt.Errorf("creating user: %w", err)
	}
	return decodeUser(raw)
}
