package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when a username is unknown, so lookups for
// present and absent users cost about the same.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// UserProfile is one entry of the users file: a username mapped to a bcrypt
// password hash.
type UserProfile struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password"`
}

// UserStore is a CredentialChecker backed by a JSON users file
// (username -> profile, passwords as bcrypt hashes). The file can be
// rewritten while the server runs; Watch picks the change up.
type UserStore struct {
	filePath string
	logger   *slog.Logger

	mu    sync.RWMutex
	users map[string]*UserProfile
}

// NewUserStore loads the users file. A missing file is an error: running
// the file-backed policy against nothing would lock every client out
// silently.
func NewUserStore(filePath string, logger *slog.Logger) (*UserStore, error) {
	store := &UserStore{
		filePath: filePath,
		logger:   logger,
		users:    make(map[string]*UserProfile),
	}
	if err := store.reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// Check implements CredentialChecker.
func (us *UserStore) Check(username, password string) bool {
	us.mu.RLock()
	profile, ok := us.users[username]
	us.mu.RUnlock()
	if !ok {
		// Burn a comparison anyway so presence of a username is not
		// observable through timing.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)) == nil
}

// Usernames returns the configured usernames, for the startup banner.
func (us *UserStore) Usernames() []string {
	us.mu.RLock()
	defer us.mu.RUnlock()
	names := make([]string, 0, len(us.users))
	for name := range us.users {
		names = append(names, name)
	}
	return names
}

func (us *UserStore) reload() error {
	data, err := os.ReadFile(us.filePath)
	if err != nil {
		return fmt.Errorf("read users file: %w", err)
	}

	var parsed map[string]*UserProfile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse users file %s: %w", us.filePath, err)
	}
	for username, profile := range parsed {
		profile.Username = username
	}

	us.mu.Lock()
	us.users = parsed
	us.mu.Unlock()

	us.logger.Info("users file loaded", "path", us.filePath, "users", len(parsed))
	return nil
}

// Watch reloads the users file whenever it changes on disk, until ctx is
// done. A reload failure keeps the previous user set; credentials never
// vanish because of a half-written file.
func (us *UserStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(us.filePath); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := us.reload(); err != nil {
					us.logger.Warn("users file reload failed, keeping previous set", "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				us.logger.Warn("users file watch error", "error", err)
			}
		}
	}()
	return nil
}

// WriteUserFile writes a users file mapping usernames to bcrypt hashes of
// the given plaintext passwords. Used by tests and provisioning tooling.
func WriteUserFile(path string, credentials map[string]string) error {
	users := make(map[string]*UserProfile, len(credentials))
	for username, password := range credentials {
		hash, err := HashPassword(password)
		if err != nil {
			return err
		}
		users[username] = &UserProfile{Username: username, PasswordHash: hash}
	}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
