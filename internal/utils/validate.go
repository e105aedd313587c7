package utils

import (
	"regexp"
	"strings"
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	passwordRe = regexp.MustCompile(`^[A-Za-z0-9@$!%*?&]*$`)
)

// FieldErrors collects validation messages per input field.
type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func ValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}

func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// PasswordProblems lists unmet strength rules; empty means the password is acceptable.
func PasswordProblems(p string) []string {
	var out []string
	if len(p) < 8 {
		out = append(out, "Password must be at least 8 characters long")
	}
	if !strings.ContainsAny(p, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		out = append(out, "Password must contain an uppercase letter")
	}
	if !strings.ContainsAny(p, "abcdefghijklmnopqrstuvwxyz") {
		out = append(out, "Password must contain a lowercase letter")
	}
	if !strings.ContainsAny(p, "0123456789") {
		out = append(out, "Password must contain a number")
	}
	if !strings.ContainsAny(p, "@$!%*?&") {
		out = append(out, "Password must contain one of @$!%*?&")
	}
	if !passwordRe.MatchString(p) {
		out = append(out, "Password may only contain letters, digits and @$!%*?&")
	}
	return out
}
