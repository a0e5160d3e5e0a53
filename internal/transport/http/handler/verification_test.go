package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-signup-api/internal/application/verification"
	"github.com/go-signup-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockVerificationSvc struct{ mock.Mock }

func (m *mockVerificationSvc) RequestCode(ctx context.Context, req verification.RequestCodeRequest) (*verification.RequestCodeResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*verification.RequestCodeResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVerificationSvc) ValidateCode(ctx context.Context, req verification.ValidateCodeRequest) error {
	return m.Called(ctx, req).Error(0)
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

// --- Request ---

func TestVerificationRequest_HappyPath(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("RequestCode", mock.Anything, mock.AnythingOfType("verification.RequestCodeRequest")).
		Return(&verification.RequestCodeResult{ExpiresIn: 10 * time.Minute}, nil)

	h := NewVerificationHandler(svc)
	rr := postJSON(t, h.Request, "/v1/verification/request", map[string]interface{}{
		"contact":         "a@b.com",
		"purpose":         "forgot_password",
		"delivery_method": "email",
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	var env CodeRequestedEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, int64(600), env.ExpiresInSeconds)
}

func TestVerificationRequest_InvalidPurpose_Unprocessable(t *testing.T) {
	h := NewVerificationHandler(&mockVerificationSvc{})
	rr := postJSON(t, h.Request, "/v1/verification/request", map[string]interface{}{
		"contact":         "a@b.com",
		"purpose":         "unlock_account",
		"delivery_method": "email",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestVerificationRequest_DeliveryFailure_BadGateway(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("RequestCode", mock.Anything, mock.Anything).
		Return(nil, domain.ErrDeliveryFailed)

	h := NewVerificationHandler(svc)
	rr := postJSON(t, h.Request, "/v1/verification/request", map[string]interface{}{
		"contact":         "a@b.com",
		"purpose":         "forgot_password",
		"delivery_method": "email",
	})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

// --- Validate ---

func TestVerificationValidate_InvalidCode_Unauthorized(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("ValidateCode", mock.Anything, mock.Anything).
		Return(domain.ErrCodeInvalidOrExpired)

	h := NewVerificationHandler(svc)
	rr := postJSON(t, h.Validate, "/v1/verification/validate", map[string]interface{}{
		"contact": "a@b.com",
		"purpose": "forgot_password",
		"code":    "000000",
	})

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var env map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	// One uniform message for absent, wrong, expired and consumed codes.
	assert.Equal(t, "invalid or expired code", env["error"])
}

func TestVerificationValidate_HappyPath(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("ValidateCode", mock.Anything, mock.Anything).Return(nil)

	h := NewVerificationHandler(svc)
	rr := postJSON(t, h.Validate, "/v1/verification/validate", map[string]interface{}{
		"contact": "a@b.com",
		"purpose": "forgot_password",
		"code":    "123456",
	})
	assert.Equal(t, http.StatusOK, rr.Code)
}
