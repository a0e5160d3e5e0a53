package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-signup-api/internal/domain"
	"github.com/go-signup-api/internal/pkg/id"
)

type Service interface {
	// CompleteRegistration consumes the staged session and draft for the
	// presented code and commits the account to the durable store. It
	// succeeds at most once per issued code.
	CompleteRegistration(ctx context.Context, contact, purpose, code string) (string, error)
}

type tempStore interface {
	ConsumeSessionAndDraft(ctx context.Context, sessionKey string) (*domain.VerificationSession, *domain.RegistrationDraft, error)
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) (string, error)
}

type service struct {
	store tempStore
	users userStore
}

func NewService(store tempStore, users userStore) Service {
	return &service{store: store, users: users}
}

func (s *service) CompleteRegistration(ctx context.Context, contact, purpose, code string) (string, error) {
	key := domain.SessionKey(purpose, contact, code)

	sess, draft, err := s.store.ConsumeSessionAndDraft(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("no matching session: %w", domain.ErrCodeInvalidOrExpired)
		}
		return "", err
	}
	if draft == nil {
		// The session was consumed but carried no staged registration data;
		// nothing can be promoted from it.
		return "", fmt.Errorf("session has no linked draft: %w", domain.ErrCodeInvalidOrExpired)
	}

	now := time.Now().UTC()
	u := &domain.User{
		UserID:         id.New(),
		Username:       draft.Payload.Username,
		Email:          draft.Payload.Email,
		Phone:          draft.Payload.Phone,
		PasswordHash:   draft.Payload.PasswordHash,
		Role:           domain.RoleUser,
		FirstName:      draft.Payload.FirstName,
		LastName:       draft.Payload.LastName,
		EmailConfirmed: sess.DeliveryMethod == domain.DeliveryEmail,
		PhoneConfirmed: sess.DeliveryMethod == domain.DeliverySMS,
		Enable:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	userID, err := s.users.Create(ctx, u)
	if err != nil {
		// The temporary records are gone by now; they are intentionally not
		// resurrected. The caller must restart the request-code flow.
		slog.Warn("durable commit failed after consuming temp records",
			"contact", contact, "purpose", purpose, "err", err)
		return "", fmt.Errorf("create user: %v: %w", err, domain.ErrRegistrationCommitFailed)
	}
	return userID, nil
}
