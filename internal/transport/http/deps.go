package http

import (
	"context"

	"github.com/go-signup-api/internal/domain"
	"github.com/go-signup-api/internal/infrastructure/mail"
	"github.com/go-signup-api/internal/infrastructure/password"
	"github.com/go-signup-api/internal/infrastructure/sns"
	jwtinfra "github.com/go-signup-api/internal/infrastructure/jwt"
)

// UserRepository is the minimal interface the router requires from the
// durable user store.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) (string, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// SessionRepository is the minimal interface the router requires from a
// login-session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Update(ctx context.Context, sessionID string, updates map[string]interface{}) error
}

// TempStore is the minimal interface the router requires from the temporary
// TTL store that stages verification sessions and registration drafts. Both
// the DynamoDB and the Redis backend satisfy it.
type TempStore interface {
	PutSession(ctx context.Context, v *domain.VerificationSession) error
	GetSession(ctx context.Context, key string) (*domain.VerificationSession, error)
	DeleteSession(ctx context.Context, key string) error
	PutDraft(ctx context.Context, d *domain.RegistrationDraft) error
	ConsumeSessionAndDraft(ctx context.Context, sessionKey string) (*domain.VerificationSession, *domain.RegistrationDraft, error)
}

// CodeGenerator produces one-time verification codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo      UserRepository
	SessionRepo   SessionRepository
	TempStore     TempStore
	CodeGenerator CodeGenerator
	Hasher        password.Hasher
	Mailer        mail.Mailer
	SMSSender     sns.SMSSender
	JWTProvider   *jwtinfra.Provider
}
