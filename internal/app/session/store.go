/*
Package session owns account credentials and the live session tokens.

Accounts are register-on-first-use: the first login with a username creates
its credential record, every later login must present the same password.
Passwords are stored as bcrypt hashes. Session tokens are signed JWTs, but the
in-memory token map kept here is the sole authority on which tokens are live;
a token that validates cryptographically is still rejected unless this store
issued it and it has not expired.

The store is not safe for concurrent use. It is owned by the hub goroutine,
which serializes every call (see the chat package).
*/
package session

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"huddle/internal/pkg/auth/token"
	"huddle/internal/pkg/errs"
)

// Credential is the process-lifetime account record for one username.
// Records are created on first login and never deleted or updated.
type Credential struct {
	Username     string
	PasswordHash string
	Avatar       string
}

// record tracks one live session token.
type record struct {
	username  string
	expiresAt time.Time
}

// Store holds every credential record and live session token.
type Store struct {
	secret      string
	ttl         time.Duration
	credentials map[string]Credential
	sessions    map[string]record

	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewStore creates an empty Store. Tokens are signed with secret and stay
// resumable for ttl after issuance.
func NewStore(secret string, ttl time.Duration) *Store {
	return &Store{
		secret:      secret,
		ttl:         ttl,
		credentials: make(map[string]Credential),
		sessions:    make(map[string]record),
		now:         time.Now,
	}
}

// RegisterOrVerify authenticates a username/password pair, creating the
// account on first use. It returns the effective avatar (the stored one wins
// over the supplied one for existing accounts) and whether the account was
// newly registered. A password mismatch yields ErrInvalidPassword and leaves
// the record untouched.
func (s *Store) RegisterOrVerify(username, password, avatar string) (string, bool, *errs.CustomError) {
	cred, exists := s.credentials[username]
	if !exists {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", false, errs.NewError(errs.ErrUnknown, err)
		}

		s.credentials[username] = Credential{
			Username:     username,
			PasswordHash: string(hash),
			Avatar:       avatar,
		}
		return avatar, true, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", false, errs.NewError(errs.ErrInvalidPassword)
	}

	return cred.Avatar, false, nil
}

// IssueSession mints a session token for the username and records it as live.
// Token strings embed a random id plus the issuance time, so collisions among
// live tokens are not expected; the loop is a guard against the absurd case.
func (s *Store) IssueSession(username string) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		tok, err := token.Generate(username, s.secret, s.ttl)
		if err != nil {
			return "", fmt.Errorf("sign session token: %w", err)
		}

		if _, taken := s.sessions[tok]; taken {
			continue
		}

		s.sessions[tok] = record{
			username:  username,
			expiresAt: s.now().Add(s.ttl),
		}
		return tok, nil
	}

	return "", fmt.Errorf("could not issue a unique session token for %q", username)
}

// ResumeSession validates a presented token against the live-token map. It
// succeeds only when the token was issued by this store, has not expired, maps
// to exactly the claimed username, and that username still holds a credential
// record. The returned avatar is the stored credential avatar. Expired tokens
// are pruned as they are discovered.
func (s *Store) ResumeSession(tok, claimedUsername string) (string, *errs.CustomError) {
	rec, live := s.sessions[tok]
	if !live {
		return "", errs.NewError(errs.ErrInvalidSession)
	}

	if s.now().After(rec.expiresAt) {
		delete(s.sessions, tok)
		return "", errs.NewError(errs.ErrInvalidSession)
	}

	if rec.username != claimedUsername {
		return "", errs.NewError(errs.ErrInvalidSession)
	}

	// Signature and expiry double-check on the token itself.
	claims, err := token.Parse(tok, s.secret)
	if err != nil || claims.Username != claimedUsername {
		return "", errs.NewError(errs.ErrInvalidSession)
	}

	// Credentials are never deleted, so this miss should be unreachable.
	// Checked anyway so a future credential-expiry feature cannot resurrect
	// accounts through stale sessions.
	cred, ok := s.credentials[claimedUsername]
	if !ok {
		return "", errs.NewError(errs.ErrInvalidSession)
	}

	return cred.Avatar, nil
}

// Credential returns the stored record for a username, if any.
func (s *Store) Credential(username string) (Credential, bool) {
	cred, ok := s.credentials[username]
	return cred, ok
}

// LiveSessions reports how many unexpired tokens the store is tracking.
func (s *Store) LiveSessions() int {
	count := 0
	for _, rec := range s.sessions {
		if !s.now().After(rec.expiresAt) {
			count++
		}
	}
	return count
}
