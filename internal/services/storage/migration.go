package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// Status summarises the vault for the command line.
type Status struct {
	Encrypted   bool
	Unlocked    bool
	SealedFiles int
	ClearFiles  int
}

// Status walks the data directory and counts sealed and clear data files.
func (s *Storage) Status() (Status, error) {
	s.mu.RLock()
	st := Status{Encrypted: s.encrypted, Unlocked: !s.encrypted || s.identity != nil}
	s.mu.RUnlock()

	err := s.walkData(func(path string, data []byte) error {
		if isAgeEncrypted(data) {
			st.SealedFiles++
		} else {
			st.ClearFiles++
		}
		return nil
	})
	return st, err
}

// EnableEncryption seals every CSV and JSON file under the data directory
// with password. On failure the files sealed so far are restored.
func (s *Storage) EnableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encrypted {
		return ErrAlreadyEncrypted
	}
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}

	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return fmt.Errorf("creating recipient: %w", err)
	}
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return fmt.Errorf("creating identity: %w", err)
	}

	verifyPath := filepath.Join(s.baseDir, verifyFile)
	sealed, err := encrypt([]byte(verifyMagic), recipient)
	if err != nil {
		return fmt.Errorf("encrypting verification file: %w", err)
	}
	if err := os.WriteFile(verifyPath, sealed, 0644); err != nil {
		return fmt.Errorf("writing verification file: %w", err)
	}

	var done []string
	err = s.walkData(func(path string, data []byte) error {
		if isAgeEncrypted(data) {
			return nil
		}
		out, err := encrypt(data, recipient)
		if err != nil {
			return fmt.Errorf("encrypting %s: %w", filepath.Base(path), err)
		}
		if err := atomicWrite(path, out, 0644); err != nil {
			return err
		}
		done = append(done, path)
		return nil
	})
	if err != nil {
		s.restore(done, identity)
		os.Remove(verifyPath)
		return err
	}

	if err := os.WriteFile(filepath.Join(s.baseDir, markerFile), []byte("encrypted"), 0644); err != nil {
		return fmt.Errorf("creating marker file: %w", err)
	}

	s.encrypted = true
	s.identity = identity
	s.recipient = recipient
	return nil
}

// DisableEncryption decrypts every sealed file in place. The current
// password is required.
func (s *Storage) DisableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return ErrNotEncrypted
	}
	identity, err := s.verifyPassword(password)
	if err != nil {
		return err
	}

	err = s.walkData(func(path string, data []byte) error {
		if !isAgeEncrypted(data) {
			return nil
		}
		plain, err := decrypt(data, identity)
		if err != nil {
			return fmt.Errorf("decrypting %s: %w", filepath.Base(path), err)
		}
		return atomicWrite(path, plain, 0644)
	})
	if err != nil {
		return err
	}

	os.Remove(filepath.Join(s.baseDir, markerFile))
	os.Remove(filepath.Join(s.baseDir, verifyFile))

	s.encrypted = false
	s.identity = nil
	s.recipient = nil
	return nil
}

// walkData calls fn with the contents of every sealable file.
func (s *Storage) walkData(fn func(path string, data []byte) error) error {
	return filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !s.sealable(path) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		return fn(path, data)
	})
}

// restore decrypts files sealed during a failed migration, best effort.
func (s *Storage) restore(files []string, identity *age.ScryptIdentity) {
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil || !isAgeEncrypted(data) {
			continue
		}
		if plain, err := decrypt(data, identity); err == nil {
			os.WriteFile(path, plain, 0644)
		}
	}
}

func encrypt(data []byte, recipient age.Recipient) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decrypt(data []byte, identity age.Identity) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
