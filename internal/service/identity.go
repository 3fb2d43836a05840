package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"cleaning-manager/internal/repository"
)

// ErrAuthFailed marks a sign-in that cannot produce an identity.
var ErrAuthFailed = errors.New("authentication failed")

// Credential is what a front end knows about the person signing in.
// Token is a share code naming an existing user's checklist; with neither
// Token nor TelegramID the sign-in is anonymous.
type Credential struct {
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
	Token      string
}

// IdentityProvider turns a credential into a stable opaque identity.
type IdentityProvider interface {
	Authenticate(ctx context.Context, cred Credential) (string, error)
}

// AuthService resolves identities from Telegram accounts, share codes or
// anonymous sign-ins. A Telegram account that joined a share code keeps
// resolving to it until it joins another one.
type AuthService struct {
	users *repository.UserRepository
}

func NewAuthService(users *repository.UserRepository) *AuthService {
	return &AuthService{users: users}
}

func (s *AuthService) Authenticate(ctx context.Context, cred Credential) (string, error) {
	switch {
	case cred.Token != "":
		return s.join(ctx, cred)
	case cred.TelegramID != 0:
		user, err := s.users.UpsertFromTelegram(ctx, cred.TelegramID, cred.FirstName, cred.LastName, cred.Username)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		return user.ChecklistID(), nil
	default:
		return uuid.NewString(), nil
	}
}

// join resolves a share code to the owner's checklist and, for a Telegram
// account, remembers the link.
func (s *AuthService) join(ctx context.Context, cred Credential) (string, error) {
	code, err := uuid.Parse(cred.Token)
	if err != nil {
		return "", fmt.Errorf("%w: invalid share code: %w", ErrAuthFailed, err)
	}
	owner, err := s.users.FindByUID(ctx, code.String())
	if errors.Is(err, repository.ErrUserNotFound) {
		return "", fmt.Errorf("%w: unknown share code %s", ErrAuthFailed, code)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	identity := owner.ChecklistID()

	if cred.TelegramID == 0 {
		return identity, nil
	}
	if _, err := s.users.UpsertFromTelegram(ctx, cred.TelegramID, cred.FirstName, cred.LastName, cred.Username); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	if _, err := s.users.LinkIdentity(ctx, cred.TelegramID, identity); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	return identity, nil
}
