// Package storage reads and writes the dashboard's CSV data directory,
// optionally encrypted at rest with age.
package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"
)

const (
	// ageHeader is the prefix of Age-encrypted files
	ageHeader = "age-encryption.org"

	// markerFile indicates encryption is enabled
	markerFile = ".encrypted"

	// verifyFile is used to validate the password
	verifyFile = ".encryption-verify"

	// verifyMagic is the expected content in the verify file
	verifyMagic = `{"magic":"genio-vault","version":1}`

	minPasswordLength = 8
)

var (
	ErrLocked            = errors.New("data directory is encrypted and locked")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrPasswordTooShort  = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrAlreadyEncrypted  = errors.New("encryption is already enabled")
	ErrNotEncrypted      = errors.New("encryption is not enabled")
)

// Storage gives transparent access to files under a base directory. When
// the directory is encrypted, derived data (CSV and JSON) is stored as age
// ciphertext and decrypted on read once the storage is unlocked.
type Storage struct {
	baseDir   string
	encrypted bool
	identity  *age.ScryptIdentity
	recipient *age.ScryptRecipient
	mu        sync.RWMutex
}

// New opens the data directory at baseDir, creating it when missing.
func New(baseDir string) (*Storage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	s := &Storage{baseDir: baseDir}
	if _, err := os.Stat(filepath.Join(baseDir, markerFile)); err == nil {
		s.encrypted = true
	}
	return s, nil
}

// BaseDir returns the base directory
func (s *Storage) BaseDir() string {
	return s.baseDir
}

// Path resolves name against the base directory; absolute names are kept.
func (s *Storage) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.baseDir, name)
}

// IsEncrypted returns true if the data directory is encrypted
func (s *Storage) IsEncrypted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encrypted
}

// IsUnlocked returns true unless the directory is encrypted and no
// password has been supplied yet.
func (s *Storage) IsUnlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.encrypted || s.identity != nil
}

// Unlock checks password against the verification file and keeps the key
// in memory.
func (s *Storage) Unlock(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return nil
	}

	identity, err := s.verifyPassword(password)
	if err != nil {
		return err
	}
	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return fmt.Errorf("creating recipient: %w", err)
	}
	s.identity = identity
	s.recipient = recipient
	return nil
}

// Lock clears the encryption key from memory
func (s *Storage) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = nil
	s.recipient = nil
}

// verifyPassword derives the identity for password and proves it opens
// the verification file. Callers hold s.mu.
func (s *Storage) verifyPassword(password string) (*age.ScryptIdentity, error) {
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return nil, fmt.Errorf("creating identity: %w", err)
	}

	sealed, err := os.ReadFile(filepath.Join(s.baseDir, verifyFile))
	if err != nil {
		return nil, fmt.Errorf("reading verification file: %w", err)
	}
	plain, err := decrypt(sealed, identity)
	if err != nil || string(plain) != verifyMagic {
		return nil, ErrIncorrectPassword
	}
	return identity, nil
}

// ReadFile reads name, decrypting it when it is age ciphertext.
func (s *Storage) ReadFile(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, err
	}
	if !isAgeEncrypted(data) {
		return data, nil
	}
	if s.identity == nil {
		return nil, ErrLocked
	}
	return decrypt(data, s.identity)
}

// WriteFile atomically replaces name, encrypting it when the directory is
// encrypted and the file is one that gets encrypted.
func (s *Storage) WriteFile(name string, data []byte, perm os.FileMode) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.Path(name)
	if s.encrypted && s.sealable(path) {
		if s.recipient == nil {
			return ErrLocked
		}
		sealed, err := encrypt(data, s.recipient)
		if err != nil {
			return fmt.Errorf("encrypting %s: %w", filepath.Base(path), err)
		}
		data = sealed
	}
	return atomicWrite(path, data, perm)
}

// ReadCSV reads name as CSV. A leading byte-order mark is dropped and the
// delimiter is sniffed between ',' and ';'.
func (s *Storage) ReadCSV(name string) ([][]string, error) {
	data, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = SniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(name), err)
	}
	return records, nil
}

// WriteCSV writes records to name with a ',' delimiter.
func (s *Storage) WriteCSV(name string, records [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(name), err)
	}
	return s.WriteFile(name, buf.Bytes(), 0644)
}

// SniffDelimiter picks ';' when the first line has more semicolons than
// commas, ',' otherwise.
func SniffDelimiter(data []byte) rune {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// Exists reports whether name is present.
func (s *Storage) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Stat returns file info, useful for checking modification times
func (s *Storage) Stat(name string) (os.FileInfo, error) {
	return os.Stat(s.Path(name))
}

// Remove removes a file
func (s *Storage) Remove(name string) error {
	return os.Remove(s.Path(name))
}

func atomicWrite(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// sealable reports whether path is derived data that gets encrypted.
// Source workbooks, the vault's own files and the cache directory stay in
// the clear.
func (s *Storage) sealable(path string) bool {
	base := filepath.Base(path)
	if base == markerFile || base == verifyFile {
		return false
	}
	if strings.Contains(filepath.ToSlash(path), "/cache/") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".csv" || ext == ".json"
}

// isAgeEncrypted checks if data starts with the Age encryption header
func isAgeEncrypted(data []byte) bool {
	return len(data) > len(ageHeader) && string(data[:len(ageHeader)]) == ageHeader
}
