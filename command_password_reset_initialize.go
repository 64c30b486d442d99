package identity

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(*InitializePasswordResetResponse)
}

func (e InitializePasswordResetMessage) Type() string { return "identity.password_reset" }

// Validate will run validation rules
func (e InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

type InitializePasswordResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// InitializePasswordResetHandler persists a fresh reset token and mails a
// link carrying it. A new request supersedes any token still in flight,
// last write wins.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	notifier Notifier
	cfg      Config
	resetURL string
	logger   Logger
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		notifier: noopNotifier{},
		resetURL: "/new-password",
		logger:   defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithNotifier(n Notifier) *InitializePasswordResetHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

func (h *InitializePasswordResetHandler) WithConfig(cfg Config) *InitializePasswordResetHandler {
	h.cfg = cfg
	return h
}

// WithResetURL sets the base the emailed link is built from
func (h *InitializePasswordResetHandler) WithResetURL(base string) *InitializePasswordResetHandler {
	if base != "" {
		h.resetURL = base
	}
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		return err
	}

	token, err := GenerateResetToken()
	if err != nil {
		return err
	}

	expiry := time.Now().Add(resetTokenTTL(h.cfg))
	if err := h.repo.Users().SetResetToken(ctx, user.ID, token, expiry); err != nil {
		return err
	}

	if err := h.notifier.Send(ctx, Notification{
		Kind:     NotificationPasswordReset,
		To:       user.Email,
		Subject:  defaultSubject(NotificationPasswordReset),
		Username: user.Username,
		Link:     strings.TrimRight(h.resetURL, "/") + "/" + token,
	}); err != nil {
		h.logger.Warn("password reset email dispatch failed", "error", err, "email", user.Email)
	}

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			Success: true,
			Message: "password reset link sent",
		})
	}

	return nil
}
