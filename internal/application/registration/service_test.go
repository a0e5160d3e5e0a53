package registration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-signup-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockTempStore struct{ mock.Mock }

func (m *mockTempStore) ConsumeSessionAndDraft(ctx context.Context, sessionKey string) (*domain.VerificationSession, *domain.RegistrationDraft, error) {
	args := m.Called(ctx, sessionKey)
	sess, _ := args.Get(0).(*domain.VerificationSession)
	draft, _ := args.Get(1).(*domain.RegistrationDraft)
	return sess, draft, args.Error(2)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Create(ctx context.Context, u *domain.User) (string, error) {
	args := m.Called(ctx, u)
	return args.String(0), args.Error(1)
}

func stagedPair(contact, code string) (*domain.VerificationSession, *domain.RegistrationDraft) {
	now := time.Now().UTC()
	draft := &domain.RegistrationDraft{
		RecordKey: domain.DraftKey(contact, code),
		Contact:   contact,
		Code:      code,
		Payload: domain.RegistrationPayload{
			Username:     "ana",
			Email:        contact,
			FirstName:    "Ana",
			LastName:     "Diaz",
			PasswordHash: "$2a$fakehash",
		},
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(10 * time.Minute).Unix(),
	}
	sess := &domain.VerificationSession{
		RecordKey:      domain.SessionKey(domain.PurposeFinishRegistration, contact, code),
		Contact:        contact,
		Code:           code,
		Purpose:        domain.PurposeFinishRegistration,
		DeliveryMethod: domain.DeliveryEmail,
		LinkedDraftKey: draft.RecordKey,
		CreatedAt:      draft.CreatedAt,
		ExpiresAt:      draft.ExpiresAt,
	}
	return sess, draft
}

// --- CompleteRegistration ---

func TestCompleteRegistration_HappyPath(t *testing.T) {
	sess, draft := stagedPair("a@b.com", "123456")
	ts := &mockTempStore{}
	ts.On("ConsumeSessionAndDraft", mock.Anything, sess.RecordKey).Return(sess, draft, nil)

	us := &mockUserStore{}
	var created *domain.User
	us.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.User) }).
		Return("user-1", nil)

	svc := NewService(ts, us)
	userID, err := svc.CompleteRegistration(context.Background(), "a@b.com", domain.PurposeFinishRegistration, "123456")

	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	require.NotNil(t, created)
	assert.Equal(t, "a@b.com", created.Email)
	assert.Equal(t, "$2a$fakehash", created.PasswordHash)
	assert.Equal(t, domain.RoleUser, created.Role)
	assert.True(t, created.EmailConfirmed)
	assert.False(t, created.PhoneConfirmed)
	assert.True(t, created.Enable)
	assert.NotEmpty(t, created.UserID)
	ts.AssertExpectations(t)
}

func TestCompleteRegistration_SMSDelivery_ConfirmsPhone(t *testing.T) {
	sess, draft := stagedPair("a@b.com", "123456")
	sess.DeliveryMethod = domain.DeliverySMS
	ts := &mockTempStore{}
	ts.On("ConsumeSessionAndDraft", mock.Anything, sess.RecordKey).Return(sess, draft, nil)
	us := &mockUserStore{}
	var created *domain.User
	us.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.User) }).
		Return("user-1", nil)

	svc := NewService(ts, us)
	_, err := svc.CompleteRegistration(context.Background(), "a@b.com", domain.PurposeFinishRegistration, "123456")

	require.NoError(t, err)
	assert.False(t, created.EmailConfirmed)
	assert.True(t, created.PhoneConfirmed)
}

func TestCompleteRegistration_NoStagedRecords(t *testing.T) {
	ts := &mockTempStore{}
	ts.On("ConsumeSessionAndDraft", mock.Anything, mock.Anything).Return(nil, nil, domain.ErrNotFound)

	svc := NewService(ts, &mockUserStore{})
	_, err := svc.CompleteRegistration(context.Background(), "a@b.com", domain.PurposeFinishRegistration, "000000")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCodeInvalidOrExpired))
}

func TestCompleteRegistration_SessionWithoutDraft(t *testing.T) {
	sess, _ := stagedPair("a@b.com", "123456")
	sess.LinkedDraftKey = ""
	ts := &mockTempStore{}
	ts.On("ConsumeSessionAndDraft", mock.Anything, sess.RecordKey).Return(sess, nil, nil)

	svc := NewService(ts, &mockUserStore{})
	_, err := svc.CompleteRegistration(context.Background(), "a@b.com", domain.PurposeFinishRegistration, "123456")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCodeInvalidOrExpired))
}

func TestCompleteRegistration_CommitFailure_NoResurrection(t *testing.T) {
	sess, draft := stagedPair("a@b.com", "123456")
	ts := &mockTempStore{}
	ts.On("ConsumeSessionAndDraft", mock.Anything, sess.RecordKey).Return(sess, draft, nil).Once()

	us := &mockUserStore{}
	us.On("Create", mock.Anything, mock.Anything).Return("", errors.New("dynamo unavailable"))

	svc := NewService(ts, us)
	_, err := svc.CompleteRegistration(context.Background(), "a@b.com", domain.PurposeFinishRegistration, "123456")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRegistrationCommitFailed))

	// The staged records were consumed and are not restored; a retry with the
	// same code finds nothing.
	ts.On("ConsumeSessionAndDraft", mock.Anything, sess.RecordKey).Return(nil, nil, domain.ErrNotFound)
	_, err = svc.CompleteRegistration(context.Background(), "a@b.com", domain.PurposeFinishRegistration, "123456")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCodeInvalidOrExpired))
}

// --- concurrency ---

// fakeTempStore consumes each staged pair at most once, like the real
// transactional stores.
type fakeTempStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.VerificationSession
	drafts   map[string]*domain.RegistrationDraft
}

func (f *fakeTempStore) ConsumeSessionAndDraft(_ context.Context, sessionKey string) (*domain.VerificationSession, *domain.RegistrationDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[sessionKey]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	delete(f.sessions, sessionKey)
	var draft *domain.RegistrationDraft
	if sess.LinkedDraftKey != "" {
		draft = f.drafts[sess.LinkedDraftKey]
		delete(f.drafts, sess.LinkedDraftKey)
	}
	return sess, draft, nil
}

type countingUserStore struct {
	mu      sync.Mutex
	created int
}

func (c *countingUserStore) Create(_ context.Context, _ *domain.User) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created++
	return "user-1", nil
}

func TestCompleteRegistration_ConcurrentAttempts_ExactlyOneSucceeds(t *testing.T) {
	sess, draft := stagedPair("a@b.com", "123456")
	store := &fakeTempStore{
		sessions: map[string]*domain.VerificationSession{sess.RecordKey: sess},
		drafts:   map[string]*domain.RegistrationDraft{draft.RecordKey: draft},
	}
	users := &countingUserStore{}
	svc := NewService(store, users)

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CompleteRegistration(context.Background(), "a@b.com", domain.PurposeFinishRegistration, "123456")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, invalid int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrCodeInvalidOrExpired):
			invalid++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, invalid)
	assert.Equal(t, 1, users.created)
}
