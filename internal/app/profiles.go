package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/rs/zerolog/log"
	"trivia-service/internal/domain"
)

// DefaultCountry is assigned to every newly provisioned profile.
const DefaultCountry = "Kenya"

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// SignedInUser is the identity handed over by the authentication provider.
type SignedInUser struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata"`
}

// ProfileService provisions a profile the first time a user signs in.
type ProfileService struct {
	store  ProfileStore
	suffix func() string
}

func NewProfileService(store ProfileStore) *ProfileService {
	return &ProfileService{store: store, suffix: randomSuffix}
}

// WithSuffix replaces the collision suffix generator.
func (s *ProfileService) WithSuffix(fn func() string) *ProfileService {
	s.suffix = fn
	return s
}

// EnsureProfile creates the user's profile unless one already exists.
// A username collision is retried once with a random suffix.
func (s *ProfileService) EnsureProfile(ctx context.Context, user SignedInUser) (domain.Profile, error) {
	if user.ID == "" {
		return domain.Profile{}, errors.New("user id required")
	}

	existing, err := s.store.GetProfile(ctx, user.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrProfileNotFound) {
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	username := DeriveUsername(user)
	profile := domain.Profile{
		ID:          user.ID,
		Username:    username,
		DisplayName: displayName(user.Metadata, username),
		Country:     DefaultCountry,
	}

	err = s.store.InsertProfile(ctx, profile)
	if errors.Is(err, domain.ErrUsernameTaken) {
		profile.Username = username + "_" + s.suffix()
		log.Info().
			Str("user_id", user.ID).
			Str("username", profile.Username).
			Msg("username taken, retrying with suffix")
		err = s.store.InsertProfile(ctx, profile)
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("insert profile: %w", err)
	}

	log.Info().Str("user_id", user.ID).Str("username", profile.Username).Msg("profile created")
	return profile, nil
}

// DeriveUsername uses the local part of the email, or user_ plus the first 8 characters of the id.
func DeriveUsername(user SignedInUser) string {
	if local, _, ok := strings.Cut(user.Email, "@"); ok && local != "" {
		return local
	}
	id := user.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return "user_" + id
}

func displayName(metadata map[string]string, fallback string) string {
	for _, key := range []string{"full_name", "display_name", "name"} {
		if v := strings.TrimSpace(metadata[key]); v != "" {
			return v
		}
	}
	return fallback
}

func randomSuffix() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = suffixAlphabet[rand.IntN(len(suffixAlphabet))]
	}
	return string(b)
}
