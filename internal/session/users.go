package session

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong
// password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CSVReader reads a CSV file by name.
type CSVReader interface {
	ReadCSV(name string) ([][]string, error)
}

// Users checks logins against a CSV file with "usuario" and "senha"
// columns. Passwords are bcrypt hashes or, for older files, plain text.
type Users struct {
	store CSVReader
	path  string
}

// NewUsers reads users from path through store.
func NewUsers(store CSVReader, path string) *Users {
	return &Users{store: store, path: path}
}

// Authenticate checks user and password. The file is re-read on every
// call so edits take effect without a restart.
func (u *Users) Authenticate(user, password string) error {
	user = strings.TrimSpace(user)
	if user == "" || password == "" {
		return ErrInvalidCredentials
	}

	records, err := u.store.ReadCSV(u.path)
	if err != nil {
		return fmt.Errorf("reading users: %w", err)
	}
	if len(records) == 0 {
		return ErrInvalidCredentials
	}

	userIdx, passIdx := -1, -1
	for i, h := range records[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "usuario":
			userIdx = i
		case "senha":
			passIdx = i
		}
	}
	if userIdx < 0 || passIdx < 0 {
		return fmt.Errorf("users file needs usuario and senha columns")
	}

	for _, record := range records[1:] {
		if userIdx >= len(record) || passIdx >= len(record) {
			continue
		}
		if strings.TrimSpace(record[userIdx]) != user {
			continue
		}
		if checkPassword(record[passIdx], password) {
			return nil
		}
		return ErrInvalidCredentials
	}
	return ErrInvalidCredentials
}

func checkPassword(stored, password string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// HashPassword returns the bcrypt hash stored in the users file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
