package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"schoolcomms-backend/pkg/crypto"

	"golang.org/x/oauth2"
)

// Well-known entry names.
const (
	keyChildcareSession = "childcare_session"
	keyMessagingGroups  = "messaging_groups"
	keyMailToken        = "mail_token"
)

// ErrNotFound is returned when a credential entry does not exist yet.
var ErrNotFound = errors.New("credential not found")

// ChildcareSession is the browser-captured session the childcare client
// authenticates with.
type ChildcareSession struct {
	Cookies   map[string]string `json:"cookies"`
	CSRFToken string            `json:"csrf_token"`
}

// Store is an encrypted JSON file of named secrets. Values are encrypted
// individually with AES-GCM under the configured passphrase; the file itself
// is plain JSON so entries stay independently replaceable.
type Store struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

// NewStore creates a store backed by the given file. The file is created
// lazily on first Set.
func NewStore(path, passphrase string) (*Store, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("credentials passphrase is required")
	}
	return &Store{path: path, passphrase: passphrase}, nil
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("corrupt credentials file %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *Store) save(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Get returns the decrypted value for name, or ErrNotFound.
func (s *Store) Get(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", err
	}
	encrypted, ok := entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return crypto.Decrypt(encrypted, s.passphrase)
}

// Set encrypts and stores a value under name.
func (s *Store) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	encrypted, err := crypto.Encrypt(value, s.passphrase)
	if err != nil {
		return err
	}
	entries[name] = encrypted
	return s.save(entries)
}

// Delete removes an entry; deleting a missing entry is not an error.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	delete(entries, name)
	return s.save(entries)
}

func (s *Store) getJSON(name string, out interface{}) error {
	raw, err := s.Get(name)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func (s *Store) setJSON(name string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(name, string(raw))
}

// ChildcareSession returns the stored childcare session.
func (s *Store) ChildcareSession() (*ChildcareSession, error) {
	var session ChildcareSession
	if err := s.getJSON(keyChildcareSession, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SetChildcareSession stores a freshly captured childcare session.
func (s *Store) SetChildcareSession(session *ChildcareSession) error {
	return s.setJSON(keyChildcareSession, session)
}

// MessagingGroups returns the configured group names to scrape.
func (s *Store) MessagingGroups() ([]string, error) {
	var groups []string
	if err := s.getJSON(keyMessagingGroups, &groups); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return groups, nil
}

// SetMessagingGroups stores the group names to scrape.
func (s *Store) SetMessagingGroups(groups []string) error {
	return s.setJSON(keyMessagingGroups, groups)
}

// LoadMailToken returns the stored OAuth token for the mail transport.
func (s *Store) LoadMailToken() (*oauth2.Token, error) {
	var token oauth2.Token
	if err := s.getJSON(keyMailToken, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// SaveMailToken persists a refreshed OAuth token.
func (s *Store) SaveMailToken(token *oauth2.Token) error {
	return s.setJSON(keyMailToken, token)
}
