package cli

import (
	"errors"

	"github.com/charmbracelet/huh"

	"github.com/nhle/taskflow/internal/api"
)

// promptCredentials asks for whichever of email and password is missing.
func promptCredentials(email, password *string) error {
	var fields []huh.Field
	if *email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Value(email).
			Validate(required("email")))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(password).
			Validate(required("password")))
	}
	if len(fields) == 0 {
		return nil
	}
	return aborted(huh.NewForm(huh.NewGroup(fields...)).Run())
}

// confirm asks a yes/no question, defaulting to no.
func confirm(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Delete").
		Negative("Cancel").
		Value(&ok).
		Run()
	return ok, aborted(err)
}

func required(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

// aborted turns a cancelled prompt into a user error.
func aborted(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return &api.ValidationError{Message: "cancelled"}
	}
	return err
}
