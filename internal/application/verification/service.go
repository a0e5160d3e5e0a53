package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-signup-api/internal/domain"
)

// DraftPayload is the registration data a client stages when requesting a
// code for finish_registration. The password arrives in plaintext and is
// hashed before anything is written.
type DraftPayload struct {
	Username  string  `json:"username" validate:"required"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
	Phone     *string `json:"phone"`
}

type RequestCodeRequest struct {
	Contact        string        `json:"contact" validate:"required"`
	Purpose        string        `json:"purpose" validate:"required,oneof=finish_registration forgot_password"`
	DeliveryMethod string        `json:"delivery_method" validate:"required,oneof=email sms"`
	Draft          *DraftPayload `json:"draft"`
}

type RequestCodeResult struct {
	ExpiresIn time.Duration
}

type ValidateCodeRequest struct {
	Contact     string `json:"contact" validate:"required"`
	Purpose     string `json:"purpose" validate:"required"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"new_password"`
}

type Service interface {
	RequestCode(ctx context.Context, req RequestCodeRequest) (*RequestCodeResult, error)
	ValidateCode(ctx context.Context, req ValidateCodeRequest) error
}

type tempStore interface {
	PutSession(ctx context.Context, v *domain.VerificationSession) error
	GetSession(ctx context.Context, key string) (*domain.VerificationSession, error)
	DeleteSession(ctx context.Context, key string) error
	PutDraft(ctx context.Context, d *domain.RegistrationDraft) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type codeGenerator interface {
	Generate() (string, error)
}

type hasher interface {
	Hash(plain string) (string, error)
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type service struct {
	store          tempStore
	users          userStore
	codes          codeGenerator
	hasher         hasher
	mailer         mailer
	sms            smsSender
	ttl            time.Duration
	allowedMethods map[string]bool
}

type ServiceDeps struct {
	TempStore       tempStore
	UserRepo        userStore
	CodeGenerator   codeGenerator
	Hasher          hasher
	Mailer          mailer
	SMSSender       smsSender
	TTL             time.Duration
	DeliveryMethods []string
}

func NewService(deps ServiceDeps) Service {
	allowed := make(map[string]bool, len(deps.DeliveryMethods))
	for _, m := range deps.DeliveryMethods {
		allowed[m] = true
	}
	return &service{
		store:          deps.TempStore,
		users:          deps.UserRepo,
		codes:          deps.CodeGenerator,
		hasher:         deps.Hasher,
		mailer:         deps.Mailer,
		sms:            deps.SMSSender,
		ttl:            deps.TTL,
		allowedMethods: allowed,
	}
}

// RequestCode stages a verification session (and, for registration flows, a
// draft carrying the hashed secret) and delivers the code. A delivery failure
// is surfaced as ErrDeliveryFailed but leaves the staged records in place;
// re-requesting simply supersedes them with a fresh code.
func (s *service) RequestCode(ctx context.Context, req RequestCodeRequest) (*RequestCodeResult, error) {
	if !s.allowedMethods[req.DeliveryMethod] {
		return nil, fmt.Errorf("delivery method %q not allowed: %w", req.DeliveryMethod, domain.ErrBadRequest)
	}

	code, err := s.codes.Generate()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)

	sess := &domain.VerificationSession{
		RecordKey:      domain.SessionKey(req.Purpose, req.Contact, code),
		Contact:        req.Contact,
		Code:           code,
		Purpose:        req.Purpose,
		DeliveryMethod: req.DeliveryMethod,
		CreatedAt:      now.Unix(),
		ExpiresAt:      expiresAt.Unix(),
	}

	switch req.Purpose {
	case domain.PurposeFinishRegistration:
		if req.Draft == nil {
			return nil, fmt.Errorf("registration requires a draft payload: %w", domain.ErrBadRequest)
		}
		if _, err := s.users.GetByEmail(ctx, req.Contact); err == nil {
			return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		hash, err := s.hasher.Hash(req.Draft.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		draft := &domain.RegistrationDraft{
			RecordKey: domain.DraftKey(req.Contact, code),
			Contact:   req.Contact,
			Code:      code,
			Payload: domain.RegistrationPayload{
				Username:     req.Draft.Username,
				Email:        req.Contact,
				Phone:        req.Draft.Phone,
				FirstName:    req.Draft.FirstName,
				LastName:     req.Draft.LastName,
				PasswordHash: hash,
			},
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
		}
		if err := s.store.PutDraft(ctx, draft); err != nil {
			return nil, err
		}
		sess.LinkedDraftKey = draft.RecordKey

	case domain.PurposeForgotPassword:
		if req.Draft != nil {
			return nil, fmt.Errorf("draft payload not accepted for this purpose: %w", domain.ErrBadRequest)
		}
		if _, err := s.users.GetByEmail(ctx, req.Contact); err != nil {
			return nil, fmt.Errorf("no account for contact: %w", domain.ErrNotFound)
		}

	default:
		return nil, fmt.Errorf("unknown purpose %q: %w", req.Purpose, domain.ErrBadRequest)
	}

	if err := s.store.PutSession(ctx, sess); err != nil {
		return nil, err
	}

	if err := s.deliver(ctx, req.DeliveryMethod, req.Contact, code); err != nil {
		return nil, fmt.Errorf("send code via %s: %v: %w", req.DeliveryMethod, err, domain.ErrDeliveryFailed)
	}
	return &RequestCodeResult{ExpiresIn: s.ttl}, nil
}

// ValidateCode checks a presented code by exact (purpose, contact, code) key
// match. Absence, expiry and prior consumption are indistinguishable to the
// caller. Sessions linked to a registration draft are not consumed here;
// promotion owns their single use. Pure-verify purposes consume the session
// immediately.
func (s *service) ValidateCode(ctx context.Context, req ValidateCodeRequest) error {
	key := domain.SessionKey(req.Purpose, req.Contact, req.Code)
	sess, err := s.store.GetSession(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no matching session: %w", domain.ErrCodeInvalidOrExpired)
		}
		return err
	}
	if sess.Expired(time.Now()) {
		return fmt.Errorf("session expired: %w", domain.ErrCodeInvalidOrExpired)
	}

	if sess.LinkedDraftKey != "" {
		// Registration flow: this is only a dry-run check.
		return nil
	}

	if err := s.store.DeleteSession(ctx, key); err != nil {
		return err
	}

	if req.Purpose == domain.PurposeForgotPassword {
		return s.resetPassword(ctx, req.Contact, req.NewPassword)
	}
	return nil
}

func (s *service) resetPassword(ctx context.Context, contact, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("new password required: %w", domain.ErrBadRequest)
	}
	u, err := s.users.GetByEmail(ctx, contact)
	if err != nil {
		return fmt.Errorf("no account for contact: %w", domain.ErrNotFound)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.Update(ctx, u.UserID, map[string]interface{}{"password_hash": hash})
}

func (s *service) deliver(ctx context.Context, method, contact, code string) error {
	switch method {
	case domain.DeliveryEmail:
		return s.mailer.SendEmail(contact, "Your verification code", "Your verification code: "+code)
	case domain.DeliverySMS:
		return s.sms.SendSMS(ctx, contact, "Your verification code: "+code)
	}
	return fmt.Errorf("unsupported delivery method %q: %w", method, domain.ErrBadRequest)
}
