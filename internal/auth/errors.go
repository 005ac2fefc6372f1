package auth

import (
	"strings"

	"firebase.google.com/go/v4/auth"
)

// UserMessage maps identity-provider failures to the message shown to the
// user. Unknown errors fall back to the raw message so the user is never
// left with a blank toast.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case auth.IsEmailAlreadyExists(err):
		return "Email already in use"
	case auth.IsUserNotFound(err):
		return "Invalid email or password"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid_login_credentials"),
		strings.Contains(msg, "invalid-credential"),
		strings.Contains(msg, "wrong-password"):
		return "Invalid credentials. Please check your email and password"
	case strings.Contains(msg, "too_many_attempts"),
		strings.Contains(msg, "too-many-requests"):
		return "Too many failed login attempts. Please try again later"
	case strings.Contains(msg, "weak-password"),
		strings.Contains(msg, "at least 6 characters"):
		return "Password is too weak"
	case strings.Contains(msg, "invalid-email"),
		strings.Contains(msg, "malformed email"):
		return "Invalid email address"
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "timeout"):
		return "Network error. Please check your internet connection"
	}

	return "Error: " + err.Error()
}
