package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-signup-api/internal/application/registration"
	"github.com/go-signup-api/internal/pkg/validate"
)

// RegistrationHandler promotes a staged registration into a durable account.
type RegistrationHandler struct {
	svc registration.Service
}

func NewRegistrationHandler(svc registration.Service) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

type completeRegistrationRequest struct {
	Contact string `json:"contact" validate:"required"`
	Purpose string `json:"purpose" validate:"required"`
	Code    string `json:"code" validate:"required"`
}

func (h *RegistrationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	userID, err := h.svc.CompleteRegistration(r.Context(), req.Contact, req.Purpose, req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegistrationEnvelope{UserID: userID, Message: "account created"})
}
