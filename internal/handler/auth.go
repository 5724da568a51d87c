package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/levitt-app/levitt/internal/federated"
	"github.com/levitt-app/levitt/internal/logging"
	"github.com/levitt-app/levitt/internal/middleware"
	"github.com/levitt-app/levitt/internal/model"
	"github.com/levitt-app/levitt/internal/repository"
	"github.com/levitt-app/levitt/internal/service"
	"github.com/levitt-app/levitt/internal/utils"
	"github.com/levitt-app/levitt/internal/verse"
)

// storeTimeout bounds every store round trip made by a handler.
const storeTimeout = 5 * time.Second

// AuthHandler bundles dependencies for the session endpoints.
type AuthHandler struct {
	Accounts   repository.AccountStore
	Tokens     *utils.TokenIssuer
	Resets     *service.ResetTokenManager
	Verifier   federated.Verifier
	Linker     *service.Linker
	BcryptCost int
	Log        logging.Logger

	// dummyHash is compared against on unknown identifiers so a miss costs
	// the same bcrypt work as a wrong password.
	dummyHash string
}

// NewAuthHandler precomputes the dummy hash at bcryptCost.
func NewAuthHandler(accounts repository.AccountStore, tokens *utils.TokenIssuer, resets *service.ResetTokenManager,
	verifier federated.Verifier, linker *service.Linker, bcryptCost int, log logging.Logger) *AuthHandler {
	dummy, _ := utils.HashPassword(uuid.NewString(), bcryptCost)
	return &AuthHandler{
		Accounts:   accounts,
		Tokens:     tokens,
		Resets:     resets,
		Verifier:   verifier,
		Linker:     linker,
		BcryptCost: bcryptCost,
		Log:        log,
		dummyHash:  dummy,
	}
}

// ----- DTOs -----

type registerReq struct {
	FullName string `json:"fullName" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,password"`
}

type loginReq struct {
	EmailOrUsername string `json:"emailOrUsername" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

type forgotReq struct {
	Email string `json:"email" validate:"required,email"`
}

type resetReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,password"`
}

type googleReq struct {
	ProviderIDToken string `json:"providerIdToken" validate:"required"`
}

type sessionResp struct {
	User      model.PublicAccount `json:"user"`
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

type messageResp struct {
	Message string `json:"message"`
}

type initialDataResp struct {
	User       model.PublicAccount `json:"user"`
	DailyVerse verse.Verse         `json:"dailyVerse"`
}

const forgotPasswordMessage = "If an account exists for that email, a reset link has been sent."

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return ValidationError("invalid request body")
	}
	return c.Validate(req)
}

// session issues a token for acc and writes the session payload.
func (h *AuthHandler) session(c echo.Context, status int, acc model.Account) error {
	tok, err := h.Tokens.Issue(acc.ID)
	if err != nil {
		return err
	}
	return c.JSON(status, sessionResp{User: acc.Public(), Token: tok.Token, ExpiresAt: tok.ExpiresAt})
}

// Register creates a password account and signs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return ValidationError("invalid request body")
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = model.NormalizeEmail(req.Email)
	req.Username = model.NormalizeUsername(req.Username)
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	field, err := h.Accounts.FindConflict(ctx, req.Email, req.Username)
	if err != nil {
		return err
	}
	if field != "" {
		return ConflictError(field)
	}

	hash, err := utils.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		return err
	}
	acc := model.Account{
		ID:           uuid.NewString(),
		FullName:     req.FullName,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: &hash,
	}
	switch err := h.Accounts.Create(ctx, &acc); {
	case errors.Is(err, repository.ErrEmailExists):
		return ConflictError(repository.FieldEmail)
	case errors.Is(err, repository.ErrUsernameExists):
		return ConflictError(repository.FieldUsername)
	case err != nil:
		return err
	}

	h.Log.Info(ctx, "account registered", "account_id", acc.ID)
	return h.session(c, http.StatusCreated, acc)
}

// Login signs in with email or username. Every failure returns the same body.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	var (
		acc model.Account
		err error
	)
	if strings.Contains(req.EmailOrUsername, "@") {
		acc, err = h.Accounts.GetByEmail(ctx, req.EmailOrUsername)
	} else {
		acc, err = h.Accounts.GetByUsername(ctx, req.EmailOrUsername)
	}
	if errors.Is(err, repository.ErrNotFound) {
		utils.VerifyPassword(h.dummyHash, req.Password)
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if !acc.HasPassword() {
		utils.VerifyPassword(h.dummyHash, req.Password)
		return ErrInvalidCredentials
	}
	if !utils.VerifyPassword(*acc.PasswordHash, req.Password) {
		return ErrInvalidCredentials
	}

	return h.session(c, http.StatusOK, acc)
}

// ForgotPassword always acknowledges at once. The lookup, token issue and
// mail publish run in the background, so known and unknown emails answer alike.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	h.Resets.RequestResetAsync(c.Request().Context(), req.Email)
	return c.JSON(http.StatusOK, messageResp{Message: forgotPasswordMessage})
}

// ResetPassword consumes a reset token and sets the new password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	acc, err := h.Resets.Consume(ctx, strings.TrimSpace(req.Token), req.Password)
	if errors.Is(err, service.ErrResetTokenInvalid) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return err
	}
	h.Log.Info(ctx, "password reset", "account_id", acc.ID)
	return c.JSON(http.StatusOK, messageResp{Message: "Password updated."})
}

// GoogleLogin verifies a Google ID token, links or creates the account and
// signs it in.
func (h *AuthHandler) GoogleLogin(c echo.Context) error {
	var req googleReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	claims, err := h.Verifier.Verify(ctx, req.ProviderIDToken)
	if err != nil {
		h.Log.Warn(ctx, "federated token rejected", "err", err)
		return ErrFederatedTokenInvalid
	}
	acc, _, err := h.Linker.Resolve(ctx, claims)
	if errors.Is(err, federated.ErrTokenInvalid) {
		return ErrFederatedTokenInvalid
	}
	if err != nil {
		return err
	}
	return h.session(c, http.StatusOK, acc)
}

func (h *AuthHandler) currentAccount(c echo.Context) (model.Account, error) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	acc, err := h.Accounts.GetByID(ctx, middleware.AccountID(c))
	if errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, ErrAccountNotFound
	}
	return acc, err
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c echo.Context) error {
	acc, err := h.currentAccount(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acc.Public())
}

// InitialData returns the account together with the home-screen bootstrap data.
func (h *AuthHandler) InitialData(c echo.Context) error {
	acc, err := h.currentAccount(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, initialDataResp{User: acc.Public(), DailyVerse: verse.Today()})
}
