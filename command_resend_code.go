package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type ResendCodeMessage struct {
	Email      string `json:"email"`
	OnResponse func(*ResendCodeResponse)
}

func (e ResendCodeMessage) Type() string { return "identity.resend_code" }

// Validate will run validation rules
func (e ResendCodeMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

type ResendCodeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ResendCodeHandler regenerates the verification code with a fresh window.
// The previous code stops matching the moment the new one persists.
// There is no rate limiting here, repeated calls keep regenerating.
type ResendCodeHandler struct {
	repo     RepositoryManager
	notifier Notifier
	cfg      Config
	logger   Logger
}

// NewResendCodeHandler creates a handler with sane defaults.
func NewResendCodeHandler(repo RepositoryManager) *ResendCodeHandler {
	return &ResendCodeHandler{
		repo:     repo,
		notifier: noopNotifier{},
		logger:   defLogger{},
	}
}

func (h *ResendCodeHandler) WithNotifier(n Notifier) *ResendCodeHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

func (h *ResendCodeHandler) WithConfig(cfg Config) *ResendCodeHandler {
	h.cfg = cfg
	return h
}

func (h *ResendCodeHandler) WithLogger(logger Logger) *ResendCodeHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ResendCodeHandler) Execute(ctx context.Context, event ResendCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during code resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendCodeHandler) execute(ctx context.Context, event ResendCodeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		return err
	}

	if user.Verified {
		// Nothing pending to refresh, leave the record untouched.
		if event.OnResponse != nil {
			event.OnResponse(&ResendCodeResponse{
				Success: true,
				Message: "account already verified",
			})
		}
		return nil
	}

	code, err := GenerateVerificationCode()
	if err != nil {
		return err
	}

	expiry := time.Now().Add(verificationCodeTTL(h.cfg))
	if err := h.repo.Users().SetVerification(ctx, user.ID, code, expiry); err != nil {
		return err
	}

	if err := h.notifier.Send(ctx, Notification{
		Kind:     NotificationEmailVerification,
		To:       user.Email,
		Subject:  defaultSubject(NotificationEmailVerification),
		Code:     code,
		Username: user.Username,
	}); err != nil {
		h.logger.Warn("verification email dispatch failed", "error", err, "email", user.Email)
	}

	if event.OnResponse != nil {
		event.OnResponse(&ResendCodeResponse{
			Success: true,
			Message: "verification code sent",
		})
	}

	return nil
}
