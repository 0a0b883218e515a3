// Package auth manages console user accounts: bcrypt passwords, TOTP
// secrets, and SSH login keys, persisted as a JSON file that can also be
// edited out of band.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"pkt.systems/pslog"
	"pkt.systems/sigdeck/schema"
)

// ErrBadCredentials covers every authentication failure so callers cannot
// distinguish unknown user, wrong password, and wrong code.
var ErrBadCredentials = errors.New("invalid credentials")

// SeedUser is a bootstrap account written when the user file does not
// exist yet.
type SeedUser struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"password_hash"`
	TOTPSecret   string `yaml:"totp_secret" json:"totp_secret"`
}

// User is a stored console account.
type User struct {
	Username     schema.UserID `json:"username"`
	PasswordHash string        `json:"password_hash"`
	TOTPSecret   string        `json:"totp_secret"`
	LoginPubKeys []string      `json:"login_pubkeys,omitempty"`
}

// Store manages console users on disk. The file is re-read when its
// mtime, size, or inode changes, so external edits are picked up without
// a restart.
type Store struct {
	path string
	log  pslog.Logger

	mu        sync.RWMutex
	users     map[schema.UserID]User
	fileState fileState
}

// NewStore loads the user file at path, seeding it with the given
// accounts when it does not exist.
func NewStore(path string, seeds []SeedUser, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("user file path is required")
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	store := &Store{
		path:  path,
		log:   logger.With("user_file", path),
		users: make(map[schema.UserID]User),
	}
	if err := store.ensureFile(seeds); err != nil {
		return nil, err
	}
	if err := store.loadFromDisk(); err != nil {
		return nil, err
	}
	return store, nil
}

// Authenticate verifies username, password, and TOTP code.
func (s *Store) Authenticate(username schema.UserID, password, totpCode string) error {
	user, err := s.lookup(username)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return ErrBadCredentials
	}
	if !totp.Validate(totpCode, user.TOTPSecret) {
		return ErrBadCredentials
	}
	return nil
}

// ValidateTOTP checks a TOTP code against the user's stored secret.
func (s *Store) ValidateTOTP(username schema.UserID, totpCode string) error {
	user, err := s.lookup(username)
	if err != nil {
		return err
	}
	if !totp.Validate(totpCode, user.TOTPSecret) {
		return ErrBadCredentials
	}
	return nil
}

// ChangePassword verifies current credentials and stores a new bcrypt hash.
func (s *Store) ChangePassword(username schema.UserID, currentPassword, totpCode, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return errors.New("new password is required")
	}
	if err := s.Authenticate(username, currentPassword, totpCode); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.UpdatePassword(username, string(hash))
}

// Users returns a snapshot of all accounts, sorted by username.
func (s *Store) Users() []User {
	if err := s.refreshIfNeeded(); err != nil {
		s.log.Warn("auth store refresh failed", "err", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// AddUser inserts a new account and persists the file.
func (s *Store) AddUser(user User) error {
	if err := s.refreshIfNeeded(); err != nil {
		return err
	}
	if err := schema.ValidateUserID(user.Username); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return fmt.Errorf("user %s already exists", user.Username)
	}
	s.users[user.Username] = user
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.log.Info("auth user added", "user", user.Username)
	return nil
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(username schema.UserID, passwordHash string) error {
	if strings.TrimSpace(passwordHash) == "" {
		return errors.New("password hash is required")
	}
	return s.mutate(username, "password updated", func(user *User) error {
		user.PasswordHash = passwordHash
		return nil
	})
}

// UpdateTOTP replaces the stored TOTP secret.
func (s *Store) UpdateTOTP(username schema.UserID, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return errors.New("totp secret is required")
	}
	return s.mutate(username, "totp rotated", func(user *User) error {
		user.TOTPSecret = secret
		return nil
	})
}

// DeleteUser removes an account.
func (s *Store) DeleteUser(username schema.UserID) error {
	if err := s.refreshIfNeeded(); err != nil {
		return err
	}
	if err := schema.ValidateUserID(username); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return fmt.Errorf("user %s not found", username)
	}
	delete(s.users, username)
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.log.Info("auth user deleted", "user", username)
	return nil
}

// lookup refreshes from disk when needed and fetches a user. Unknown
// users and invalid usernames both come back as ErrBadCredentials.
func (s *Store) lookup(username schema.UserID) (User, error) {
	if err := s.refreshIfNeeded(); err != nil {
		return User{}, err
	}
	if err := schema.ValidateUserID(username); err != nil {
		return User{}, ErrBadCredentials
	}
	s.mu.RLock()
	user, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return User{}, ErrBadCredentials
	}
	return user, nil
}

// mutate applies fn to a user under the write lock and persists the file.
func (s *Store) mutate(username schema.UserID, logMsg string, fn func(*User) error) error {
	if err := s.refreshIfNeeded(); err != nil {
		return err
	}
	if err := schema.ValidateUserID(username); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return fmt.Errorf("user %s not found", username)
	}
	if err := fn(&user); err != nil {
		return err
	}
	s.users[username] = user
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.log.Info("auth "+logMsg, "user", username)
	return nil
}

func (s *Store) ensureFile(seeds []SeedUser) error {
	if _, statErr := os.Stat(s.path); statErr == nil {
		return nil
	} else if !os.IsNotExist(statErr) {
		return statErr
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	users := make([]User, 0, len(seeds))
	for _, seed := range seeds {
		username := schema.UserID(seed.Username)
		if err := schema.ValidateUserID(username); err != nil {
			return fmt.Errorf("seed user %q: %w", seed.Username, err)
		}
		users = append(users, User{
			Username:     username,
			PasswordHash: seed.PasswordHash,
			TOTPSecret:   seed.TOTPSecret,
		})
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return err
	}
	s.log.Info("auth store initialized", "users", len(users))
	return nil
}

// saveLocked rewrites the user file atomically: temp file, fsync, chmod,
// rename. The caller holds s.mu.
func (s *Store) saveLocked() error {
	usernames := make([]schema.UserID, 0, len(s.users))
	for username := range s.users {
		usernames = append(usernames, username)
	}
	sort.Slice(usernames, func(i, j int) bool { return usernames[i] < usernames[j] })
	users := make([]User, 0, len(usernames))
	for _, username := range usernames {
		users = append(users, s.users[username])
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "users-*.json")
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.log.Warn("auth store save failed", "err", err)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return err
	}
	if info, err := os.Stat(s.path); err == nil {
		s.fileState = fileStateFromInfo(info)
	}
	s.log.Debug("auth store save ok", "users", len(users))
	return nil
}

type fileState struct {
	modTime time.Time
	size    int64
	inode   uint64
	dev     uint64
}

func fileStateFromInfo(info os.FileInfo) fileState {
	state := fileState{
		modTime: info.ModTime(),
		size:    info.Size(),
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		state.inode = stat.Ino
		state.dev = stat.Dev
	}
	return state
}

func (s fileState) equal(other fileState) bool {
	return s.size == other.size &&
		s.modTime.Equal(other.modTime) &&
		s.inode == other.inode &&
		s.dev == other.dev
}

func (s *Store) refreshIfNeeded() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	latest := fileStateFromInfo(info)
	s.mu.RLock()
	current := s.fileState
	s.mu.RUnlock()
	if current.equal(latest) {
		return nil
	}
	return s.loadFromDisk()
}

func (s *Store) loadFromDisk() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		s.log.Warn("auth store load failed", "err", err)
		return err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	next := make(map[schema.UserID]User, len(users))
	for _, user := range users {
		if err := schema.ValidateUserID(user.Username); err != nil {
			s.log.Warn("auth store load failed", "user", user.Username, "err", err)
			return fmt.Errorf("user file entry %q: %w", user.Username, err)
		}
		next[user.Username] = user
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = next
	s.fileState = fileStateFromInfo(info)
	s.log.Debug("auth store load ok", "users", len(users))
	return nil
}
