// Package main manages the at-rest encryption of the genio data directory
// and hashes passwords for the users file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"genio/internal/config"
	"genio/internal/services/storage"
	"genio/internal/session"
)

const usage = `usage: vault [-data dir] <command>

commands:
  status    show whether the data directory is encrypted
  enable    encrypt every data file with a password
  disable   decrypt every data file
  hash      print a bcrypt hash for usuarios.csv
`

func main() {
	cfg := config.Load()
	dataDir := flag.String("data", cfg.DataDirectory, "Data directory")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	log := cfg.Logger()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "hash":
		err = runHash()
	case "status", "enable", "disable":
		var store *storage.Storage
		store, err = storage.New(*dataDir)
		if err == nil {
			err = runStore(cmd, store, cfg.StoragePassword, log)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "vault: %v\n", err)
		os.Exit(1)
	}
}

func runStore(cmd string, store *storage.Storage, password string, log logrus.FieldLogger) error {
	switch cmd {
	case "status":
		st, err := store.Status()
		if err != nil {
			return err
		}
		state := "clear"
		if st.Encrypted {
			state = "encrypted"
		}
		fmt.Printf("directory: %s\nstate:     %s\nsealed:    %d\nclear:     %d\n",
			store.BaseDir(), state, st.SealedFiles, st.ClearFiles)
		return nil

	case "enable":
		if store.IsEncrypted() {
			return storage.ErrAlreadyEncrypted
		}
		if password == "" {
			var err error
			if password, err = readNewPassword(); err != nil {
				return err
			}
		}
		if err := store.EnableEncryption(password); err != nil {
			return err
		}
		log.WithField("dir", store.BaseDir()).Info("data directory encrypted")
		return nil

	case "disable":
		if !store.IsEncrypted() {
			return storage.ErrNotEncrypted
		}
		if password == "" {
			var err error
			if password, err = readPassword("Password: "); err != nil {
				return err
			}
		}
		if err := store.DisableEncryption(password); err != nil {
			return err
		}
		log.WithField("dir", store.BaseDir()).Info("data directory decrypted")
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func runHash() error {
	password, err := readNewPassword()
	if err != nil {
		return err
	}
	hash, err := session.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal; set GENIO_STORAGE_PASSWORD")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func readNewPassword() (string, error) {
	first, err := readPassword("New password: ")
	if err != nil {
		return "", err
	}
	second, err := readPassword("Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}
