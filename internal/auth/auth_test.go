package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
)

type memRepo struct{ users []User }

func (m *memRepo) LoadAll() ([]User, error) { return append([]User{}, m.users...), nil }
func (m *memRepo) Upsert(u User) error {
	for i, x := range m.users {
		if x.ID == u.ID {
			m.users[i] = u
			return nil
		}
	}
	m.users = append(m.users, u)
	return nil
}
func (m *memRepo) Remove(id int64) error {
	out := make([]User, 0, len(m.users))
	for _, x := range m.users {
		if x.ID != id {
			out = append(out, x)
		}
	}
	m.users = out
	return nil
}

func TestServiceBasic(t *testing.T) {
	repo := &memRepo{users: []User{{ID: 10, Username: "alice"}}}
	svc, err := NewWithRepo(repo, []int64{20})
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	if !svc.IsAllowed(10) {
		t.Fatalf("repo preload not effective")
	}
	if !svc.IsAllowed(20) {
		t.Fatalf("initial env list not merged")
	}
	if svc.IsAllowed(30) {
		t.Fatalf("unexpected allowed")
	}

	if err := svc.Upsert(User{ID: 30, Username: "bob"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !svc.IsAllowed(30) {
		t.Fatalf("upsert not effective")
	}

	if err := svc.Remove(10); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if svc.IsAllowed(10) {
		t.Fatalf("remove not effective")
	}

	lst := svc.List()
	if len(lst) != 2 {
		t.Fatalf("want 2 users, got %d", len(lst))
	}
}

func TestEmptyAllowlistAdmitsEveryone(t *testing.T) {
	svc, err := NewWithRepo(nil, nil)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !svc.IsAllowed(999) {
		t.Fatalf("empty allowlist should admit everyone")
	}
}

func TestResolveRequest(t *testing.T) {
	svc, err := NewWithRepo(nil, []int64{7})
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-User-ID", "7")
	id, err := svc.ResolveRequest(r)
	if err != nil || id != 7 {
		t.Fatalf("header resolve: id=%d err=%v", id, err)
	}

	r = httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: "user_id", Value: strconv.FormatInt(7, 10)})
	id, err = svc.ResolveRequest(r)
	if err != nil || id != 7 {
		t.Fatalf("cookie resolve: id=%d err=%v", id, err)
	}

	for _, bad := range []string{"", "abc", "-1", "8"} {
		r = httptest.NewRequest("GET", "/", nil)
		if bad != "" {
			r.Header.Set("X-User-ID", bad)
		}
		if _, err := svc.ResolveRequest(r); err == nil {
			t.Fatalf("expected rejection for %q", bad)
		}
	}
}

func TestFileRepositoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	repo, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	if err := repo.Upsert(User{ID: 1, Username: "alice"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(User{ID: 2, Username: "bob"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Remove(1); err != nil {
		t.Fatalf("remove: %v", err)
	}

	users, err := repo.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(users) != 1 || users[0].Username != "bob" {
		t.Fatalf("unexpected users: %+v", users)
	}
}
