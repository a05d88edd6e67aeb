package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

func TestEnsureProfileCreatesFromEmail(t *testing.T) {
	store := newProfileStore()
	svc := app.NewProfileService(store)
	id := uuid.NewString()

	profile, err := svc.EnsureProfile(context.Background(), app.SignedInUser{
		ID:       id,
		Email:    "wanjiru@example.com",
		Metadata: map[string]string{"display_name": "Wanjiru", "name": "ignored"},
	})
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if profile.Username != "wanjiru" || profile.DisplayName != "Wanjiru" || profile.Country != app.DefaultCountry {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if _, err := store.GetProfile(context.Background(), id); err != nil {
		t.Fatalf("profile not stored: %v", err)
	}
}

func TestEnsureProfileKeepsExisting(t *testing.T) {
	store := newProfileStore()
	store.profiles["u1"] = domain.Profile{ID: "u1", Username: "original"}
	svc := app.NewProfileService(store)

	profile, err := svc.EnsureProfile(context.Background(), app.SignedInUser{ID: "u1", Email: "new@example.com"})
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if profile.Username != "original" || store.inserts != 0 {
		t.Fatalf("existing profile must be left alone, got %+v (inserts=%d)", profile, store.inserts)
	}
}

func TestEnsureProfileRetriesOnUsernameCollision(t *testing.T) {
	store := newProfileStore()
	store.profiles["other"] = domain.Profile{ID: "other", Username: "user_abcdefgh"}
	svc := app.NewProfileService(store).WithSuffix(func() string { return "x1y2z3" })

	profile, err := svc.EnsureProfile(context.Background(), app.SignedInUser{ID: "abcdefgh-1234"})
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if profile.Username != "user_abcdefgh_x1y2z3" || profile.DisplayName != "user_abcdefgh" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if store.inserts != 2 {
		t.Fatalf("expected one retry, got %d inserts", store.inserts)
	}
}

func TestEnsureProfilePropagatesStoreErrors(t *testing.T) {
	store := newProfileStore()
	store.getErr = errors.New("db down")
	svc := app.NewProfileService(store)

	if _, err := svc.EnsureProfile(context.Background(), app.SignedInUser{ID: "u1"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := svc.EnsureProfile(context.Background(), app.SignedInUser{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestDeriveUsername(t *testing.T) {
	cases := []struct {
		user app.SignedInUser
		want string
	}{
		{app.SignedInUser{ID: "1234567890", Email: "amani@example.com"}, "amani"},
		{app.SignedInUser{ID: "1234567890"}, "user_12345678"},
		{app.SignedInUser{ID: "abc", Email: "@example.com"}, "user_abc"},
	}
	for _, tc := range cases {
		if got := app.DeriveUsername(tc.user); got != tc.want {
			t.Fatalf("DeriveUsername(%+v) = %q, want %q", tc.user, got, tc.want)
		}
	}
}

type profileStore struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
	inserts  int
	getErr   error
}

func newProfileStore() *profileStore {
	return &profileStore{profiles: make(map[string]domain.Profile)}
}

func (s *profileStore) GetProfile(_ context.Context, id string) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return domain.Profile{}, s.getErr
	}
	p, ok := s.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (s *profileStore) InsertProfile(_ context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	for _, p := range s.profiles {
		if p.Username == profile.Username {
			return domain.ErrUsernameTaken
		}
	}
	s.profiles[profile.ID] = profile
	return nil
}
