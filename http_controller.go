package identity

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the lifecycle endpoints on the given router
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.Register).SetName("identity.register")
	app.Post(controller.Routes.ResendCode, controller.ResendCode).SetName("identity.resend-code")
	app.Post(controller.Routes.Verify, controller.Verify).SetName("identity.verify")
	app.Post(controller.Routes.Login, controller.Login).SetName("identity.login")
	app.Post(controller.Routes.Logout, controller.Logout).SetName("identity.logout")
	app.Post(controller.Routes.PasswordReset, controller.PasswordReset).SetName("identity.password-reset")
	app.Post(controller.Routes.NewPassword, controller.NewPassword).SetName("identity.new-password")
}

type AuthControllerRoutes struct {
	Register      string
	ResendCode    string
	Verify        string
	Login         string
	Logout        string
	PasswordReset string
	NewPassword   string
}

type AuthController struct {
	Debug    bool
	Logger   Logger
	Repo     RepositoryManager
	Auther   HTTPAuthenticator
	Tokens   TokenService
	Notifier Notifier
	Config   Config
	Routes   *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerTokens(tokens TokenService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Tokens = tokens
		return c
	}
}

func WithControllerNotifier(n Notifier) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Notifier = normalizeNotifier(n)
		return c
	}
}

func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Config = cfg
		return c
	}
}

func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = l
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   defLogger{},
		Notifier: noopNotifier{},
		Routes: &AuthControllerRoutes{
			Register:      "/register",
			ResendCode:    "/resend-code",
			Verify:        "/verify",
			Login:         "/login",
			Logout:        "/logout",
			PasswordReset: "/password-reset",
			NewPassword:   "/new-password",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenService in auth controller...")
	}

	return c
}

type ackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type tokenResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func (a *AuthController) Register(ctx router.Context) error {
	payload := new(RegisterUserMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	if a.Debug {
		a.Logger.Debug("register payload", "payload", print.MaybePrettyJSON(payload))
	}

	var resp *RegisterUserResponse
	payload.OnResponse = func(r *RegisterUserResponse) { resp = r }

	handler := NewRegisterUserHandler(a.Repo).
		WithNotifier(a.Notifier).
		WithConfig(a.Config).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), *payload); err != nil {
		return a.errorJSON(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, ackResponse{
		Success: resp.Success,
		Message: resp.Message,
	})
}

func (a *AuthController) ResendCode(ctx router.Context) error {
	payload := new(ResendCodeMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	var resp *ResendCodeResponse
	payload.OnResponse = func(r *ResendCodeResponse) { resp = r }

	handler := NewResendCodeHandler(a.Repo).
		WithNotifier(a.Notifier).
		WithConfig(a.Config).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), *payload); err != nil {
		return a.errorJSON(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, ackResponse{
		Success: resp.Success,
		Message: resp.Message,
	})
}

func (a *AuthController) Verify(ctx router.Context) error {
	payload := new(VerifyUserMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	var resp *VerifyUserResponse
	payload.OnResponse = func(r *VerifyUserResponse) { resp = r }

	handler := NewVerifyUserHandler(a.Repo, a.Tokens).
		WithNotifier(a.Notifier).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), *payload); err != nil {
		return a.errorJSON(ctx, err)
	}

	a.setSessionCookie(ctx, resp.Token)

	return ctx.JSON(fiber.StatusOK, tokenResponse{
		Token: resp.Token,
		User:  resp.User,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// GetIdentifier returns the username or email
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	token, err := a.Auther.Login(ctx, payload)
	if err != nil {
		return a.errorJSON(ctx, err)
	}

	user, err := a.Repo.Users().GetByIdentifier(ctx.Context(), payload.GetIdentifier())
	if err != nil {
		a.Logger.Error("login user lookup after authentication", "error", err)
		return a.errorJSON(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, tokenResponse{
		Token: token,
		User:  user.Sanitized(),
	})
}

// Logout clears the session cookie, it always succeeds
func (a *AuthController) Logout(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.JSON(fiber.StatusOK, ackResponse{
		Success: true,
		Message: "logged out",
	})
}

func (a *AuthController) PasswordReset(ctx router.Context) error {
	payload := new(InitializePasswordResetMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	var resp *InitializePasswordResetResponse
	payload.OnResponse = func(r *InitializePasswordResetResponse) { resp = r }

	handler := NewInitializePasswordResetHandler(a.Repo).
		WithNotifier(a.Notifier).
		WithConfig(a.Config).
		WithResetURL(a.Routes.NewPassword).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), *payload); err != nil {
		return a.errorJSON(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, ackResponse{
		Success: resp.Success,
		Message: resp.Message,
	})
}

func (a *AuthController) NewPassword(ctx router.Context) error {
	payload := new(FinalizePasswordResetMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	var resp *FinalizePasswordResetResponse
	payload.OnResponse = func(r *FinalizePasswordResetResponse) { resp = r }

	handler := NewFinalizePasswordResetHandler(a.Repo, a.Tokens).
		WithNotifier(a.Notifier).
		WithLogger(a.Logger)

	if err := handler.Execute(ctx.Context(), *payload); err != nil {
		return a.errorJSON(ctx, err)
	}

	a.setSessionCookie(ctx, resp.Token)

	return ctx.JSON(fiber.StatusOK, tokenResponse{
		Token: resp.Token,
		User:  resp.User,
	})
}

func (a *AuthController) setSessionCookie(ctx router.Context, token string) {
	if setter, ok := a.Auther.(interface {
		SetSessionCookie(router.Context, string)
	}); ok {
		setter.SetSessionCookie(ctx, token)
	}
}

func (a *AuthController) badRequest(ctx router.Context, err error) error {
	a.Logger.Debug("failed to parse payload", "error", err)
	return ctx.JSON(fiber.StatusBadRequest, ackResponse{
		Success: false,
		Message: fmt.Sprintf("failed to parse payload: %s", err),
	})
}

func (a *AuthController) validationError(ctx router.Context, err error) error {
	return ctx.JSON(fiber.StatusBadRequest, ackResponse{
		Success: false,
		Message: err.Error(),
	})
}

func (a *AuthController) errorJSON(ctx router.Context, err error) error {
	a.Logger.Debug("lifecycle operation failed", "error", err)
	return ctx.JSON(statusFromError(err), ackResponse{
		Success: false,
		Message: errorMessage(err),
	})
}

func statusFromError(err error) int {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return fiber.StatusInternalServerError
	}

	switch rich.Category {
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return fiber.StatusUnauthorized
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Message
	}
	return "unexpected error"
}
