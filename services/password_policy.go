package services

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong   = errors.New("password must be at most 72 bytes long")
	ErrPasswordNoLetter  = errors.New("password must contain at least one letter")
	ErrPasswordNoNumber  = errors.New("password must contain at least one number")
	ErrPasswordCommon    = errors.New("password is too common")
	ErrPasswordRepeating = errors.New("password contains repeating characters")
)

var commonPasswords = map[string]bool{
	"password":  true,
	"password1": true,
	"12345678":  true,
	"qwerty123": true,
	"abc12345":  true,
	"welcome1":  true,
}

// ValidateRegisterPassword is applied to the credentials captured by a
// registration order before they are hashed. bcrypt ignores bytes past 72.
func ValidateRegisterPassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	if len(password) > 72 {
		return ErrPasswordTooLong
	}
	if commonPasswords[strings.ToLower(password)] {
		return ErrPasswordCommon
	}

	var hasLetter, hasNumber bool
	var prev rune
	repeat := 0
	for i, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsNumber(r):
			hasNumber = true
		}
		if i > 0 && r == prev {
			repeat++
			if repeat >= 3 {
				return ErrPasswordRepeating
			}
		} else {
			repeat = 1
		}
		prev = r
	}

	if !hasLetter {
		return ErrPasswordNoLetter
	}
	if !hasNumber {
		return ErrPasswordNoNumber
	}
	return nil
}
