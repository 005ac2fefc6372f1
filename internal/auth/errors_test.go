package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
		{
			name: "invalid login credentials",
			err:  errors.New("INVALID_LOGIN_CREDENTIALS"),
			want: "Invalid credentials. Please check your email and password",
		},
		{
			name: "wrong password",
			err:  errors.New("auth/wrong-password"),
			want: "Invalid credentials. Please check your email and password",
		},
		{
			name: "too many attempts",
			err:  errors.New("TOO_MANY_ATTEMPTS_TRY_LATER"),
			want: "Too many failed login attempts. Please try again later",
		},
		{
			name: "weak password",
			err:  errors.New("password must be at least 6 characters"),
			want: "Password is too weak",
		},
		{
			name: "invalid email",
			err:  errors.New("malformed email address"),
			want: "Invalid email address",
		},
		{
			name: "network failure",
			err:  errors.New("dial tcp: connection refused"),
			want: "Network error. Please check your internet connection",
		},
		{
			name: "unknown error falls back to raw message",
			err:  errors.New("something odd"),
			want: "Error: something odd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
