// Package auth resolves an inbound request to an owning identity and
// gates access by allowlist. The resolution here is deliberately thin
// (trusted header or cookie); real session management sits in front of
// the server.
package auth

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
)

var ErrUnauthorized = errors.New("unauthorized")

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Repository interface {
	LoadAll() ([]User, error)
	Upsert(user User) error
	Remove(userID int64) error
}

type Service struct {
	mu           sync.RWMutex
	repo         Repository
	allowedUsers map[int64]User
}

func NewWithRepo(repo Repository, initial []int64) (*Service, error) {
	s := &Service{repo: repo, allowedUsers: make(map[int64]User)}
	if repo != nil {
		users, err := repo.LoadAll()
		if err == nil {
			for _, u := range users {
				s.allowedUsers[u.ID] = u
			}
		}
	}
	// merge initial IDs (from env) without usernames
	for _, id := range initial {
		if _, ok := s.allowedUsers[id]; !ok {
			s.allowedUsers[id] = User{ID: id}
		}
	}
	return s, nil
}

func (s *Service) IsAllowed(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.allowedUsers) == 0 {
		// An empty allowlist admits everyone; deployments lock down via
		// ALLOWED_USERS.
		return true
	}
	_, ok := s.allowedUsers[userID]
	return ok
}

func (s *Service) Upsert(user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowedUsers[user.ID] = user
	if s.repo != nil {
		return s.repo.Upsert(user)
	}
	return nil
}

func (s *Service) Remove(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.allowedUsers, userID)
	if s.repo != nil {
		return s.repo.Remove(userID)
	}
	return nil
}

func (s *Service) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.allowedUsers))
	for _, u := range s.allowedUsers {
		out = append(out, u)
	}
	return out
}

// ResolveRequest extracts the caller's identity from the X-User-ID
// header or the user_id cookie, in that order, and checks it against
// the allowlist.
func (s *Service) ResolveRequest(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		if c, err := r.Cookie("user_id"); err == nil {
			raw = c.Value
		}
	}
	if raw == "" {
		return 0, ErrUnauthorized
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrUnauthorized
	}
	if !s.IsAllowed(id) {
		return 0, ErrUnauthorized
	}
	return id, nil
}

// Owns reports whether userID may touch a resource owned by ownerID.
// Failure must surface as a plain rejection so conversation existence
// is never leaked.
func Owns(userID, ownerID int64) bool {
	return userID == ownerID
}
