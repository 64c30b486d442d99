package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

const handlerTimeout = time.Second * 10

type RegisterUserMessage struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	UseHashid  bool
	OnResponse func(*RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "identity.register" }

// Validate will run validation rules
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&e.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(6, 100)),
	)
}

type RegisterUserResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RegisterUserHandler creates a user in pending verification state. No
// session token is issued until the email verifies.
type RegisterUserHandler struct {
	repo     RepositoryManager
	notifier Notifier
	cfg      Config
	logger   Logger
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		notifier: noopNotifier{},
		logger:   defLogger{},
	}
}

func (h *RegisterUserHandler) WithNotifier(n Notifier) *RegisterUserHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

func (h *RegisterUserHandler) WithConfig(cfg Config) *RegisterUserHandler {
	h.cfg = cfg
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	users := h.repo.Users()

	// Pre check shapes the error, the unique indexes close the race.
	if taken, err := users.UsernameTaken(ctx, event.Username); err != nil {
		return err
	} else if taken {
		return ErrDuplicateUsername
	}

	if taken, err := users.EmailTaken(ctx, event.Email); err != nil {
		return err
	} else if taken {
		return ErrDuplicateEmail
	}

	user := &User{
		Username: event.Username,
		Email:    event.Email,
	}

	if err := user.SetPassword(event.Password); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(event.Email); err == nil {
			user.ID = id
		}
	}

	code, err := GenerateVerificationCode()
	if err != nil {
		return err
	}

	now := time.Now()
	codeExpiry := now.Add(verificationCodeTTL(h.cfg))
	accountExpiry := now.Add(unverifiedAccountTTL(h.cfg))

	user.VerificationCode = &code
	user.VerificationCodeExpiresAt = &codeExpiry
	user.AccountExpiresAt = &accountExpiry

	if user, err = users.Create(ctx, user); err != nil {
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
		event.OnResponse(&RegisterUserResponse{
			Success: true,
			Message: "verification code sent",
		})
	}

	return nil
}
