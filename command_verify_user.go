package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type VerifyUserMessage struct {
	Email      string `json:"email"`
	Code       string `json:"code"`
	OnResponse func(*VerifyUserResponse)
}

func (e VerifyUserMessage) Type() string { return "identity.verify" }

// Validate will run validation rules
func (e VerifyUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Code, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

type VerifyUserResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// VerifyUserHandler consumes a verification code. The code has to match
// before expiry is even looked at, so an expired but correct code reports
// CodeExpired rather than InvalidCode.
type VerifyUserHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	notifier Notifier
	logger   Logger
}

// NewVerifyUserHandler creates a handler with sane defaults.
func NewVerifyUserHandler(repo RepositoryManager, tokens TokenService) *VerifyUserHandler {
	return &VerifyUserHandler{
		repo:     repo,
		tokens:   tokens,
		notifier: noopNotifier{},
		logger:   defLogger{},
	}
}

func (h *VerifyUserHandler) WithNotifier(n Notifier) *VerifyUserHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

func (h *VerifyUserHandler) WithLogger(logger Logger) *VerifyUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyUserHandler) Execute(ctx context.Context, event VerifyUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyUserHandler) execute(ctx context.Context, event VerifyUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.Is(err, ErrUserNotFound) {
			return ErrInvalidCode
		}
		return err
	}

	if user.VerificationCode == nil || *user.VerificationCode != event.Code {
		return ErrInvalidCode
	}

	// Expiry is checked strictly after the code matched.
	if user.VerificationExpired(time.Now()) {
		return ErrCodeExpired
	}

	if err := h.repo.Users().MarkVerified(ctx, user.ID); err != nil {
		return err
	}

	user.Verified = true
	user.VerificationCode = nil
	user.VerificationCodeExpiresAt = nil
	user.AccountExpiresAt = nil

	if err := h.notifier.Send(ctx, Notification{
		Kind:     NotificationWelcomeMessage,
		To:       user.Email,
		Subject:  defaultSubject(NotificationWelcomeMessage),
		Username: user.Username,
	}); err != nil {
		h.logger.Warn("welcome email dispatch failed", "error", err, "email", user.Email)
	}

	token, err := h.tokens.Generate(user.Identity())
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&VerifyUserResponse{
			Token: token,
			User:  user.Sanitized(),
		})
	}

	return nil
}
