package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Token      string `json:"token"`
	Password   string `json:"password"`
	OnResponse func(*FinalizePasswordResetResponse)
}

func (e FinalizePasswordResetMessage) Type() string { return "identity.new_password" }

// Validate will run validation rules
func (e FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required, validation.Length(64, 64)),
		validation.Field(&e.Password, validation.Required, validation.Length(6, 100)),
	)
}

type FinalizePasswordResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
	User    *User  `json:"user"`
}

// FinalizePasswordResetHandler consumes a reset token and sets the new
// password. The update clears the reset fields in the same statement, so
// replaying the token fails with InvalidOrExpiredToken.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	notifier Notifier
	logger   Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens TokenService) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		notifier: noopNotifier{},
		logger:   defLogger{},
	}
}

func (h *FinalizePasswordResetHandler) WithNotifier(n Notifier) *FinalizePasswordResetHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	user, err := h.repo.Users().GetByResetToken(ctx, event.Token)
	if err != nil {
		return err
	}

	if user.ResetExpired(time.Now()) {
		return ErrInvalidOrExpiredToken
	}

	// Always rehash, the old hash is discarded.
	if err := user.SetPassword(event.Password); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	if err := h.repo.Users().UpdatePassword(ctx, user.ID, user.PasswordHash); err != nil {
		return err
	}

	user.ResetToken = nil
	user.ResetTokenExpiresAt = nil
	user.AccountExpiresAt = nil

	if err := h.notifier.Send(ctx, Notification{
		Kind:     NotificationPasswordResetOK,
		To:       user.Email,
		Subject:  defaultSubject(NotificationPasswordResetOK),
		Username: user.Username,
	}); err != nil {
		h.logger.Warn("password reset confirmation dispatch failed", "error", err, "email", user.Email)
	}

	// Auto login, the caller gets a fresh session token.
	token, err := h.tokens.Generate(user.Identity())
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&FinalizePasswordResetResponse{
			Success: true,
			Message: "password updated",
			Token:   token,
			User:    user.Sanitized(),
		})
	}

	return nil
}
