package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-calendar/internal/config"
	"github.com/iliyamo/hall-calendar/internal/middleware"
	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/policy"
	"github.com/iliyamo/hall-calendar/internal/repository"
	"github.com/iliyamo/hall-calendar/internal/utils"
)

// UserAccounts is the account storage used by the auth endpoints.
type UserAccounts interface {
	Create(ctx context.Context, username, name, password string, role model.Role, cost int) (uint64, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// RefreshTokens stores hashes of issued refresh tokens.
type RefreshTokens interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserAccounts
	Tokens RefreshTokens
	Log    *slog.Logger
}

func NewAuthHandler(cfg config.Config, u UserAccounts, t RefreshTokens, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Log: logger}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"` // user | admin, default user
}
type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64     `json:"id"`
	Username string     `json:"username"`
	Name     string     `json:"name"`
	Role     model.Role `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
}

// issue creates an access/refresh pair and stores the refresh hash.
func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    toUserPart(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Register: an administrator creates an account.  No tokens are issued;
// the new user logs in separately.
func (h *AuthHandler) Register(c echo.Context) error {
	if err := policy.Authorize(middleware.ActorFrom(c), policy.ManageUsers, policy.NoOwner); err != nil {
		return writeError(c, h.Log, err)
	}
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Name = strings.TrimSpace(req.Name)
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username/password required")
	}
	if req.Name == "" {
		req.Name = req.Username
	}
	role := model.RoleUser
	if strings.TrimSpace(req.Role) != "" {
		r, ok := model.ParseRole(req.Role)
		if !ok {
			return badRequest(c, "role must be user or admin")
		}
		role = r
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Username, req.Name, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
		}
		return writeError(c, h.Log, err)
	}
	h.Log.InfoContext(ctx, "user created", "user_id", uid, "role", role, "by", middleware.ActorFrom(c).UserID)
	return c.JSON(http.StatusCreated, userPart{ID: uid, Username: req.Username, Name: req.Name, Role: role})
}

// Login: verify and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username/password required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return writeError(c, h.Log, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) || !u.Role.Valid() {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	resp, err := h.issue(ctx, u)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// refreshUser resolves the account behind a valid refresh token.
func (h *AuthHandler) refreshUser(ctx context.Context, hash string) (model.User, bool, error) {
	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrRefreshInvalid) {
		// Unknown, expired and revoked tokens look alike.
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.User{}, false, nil
		}
		return model.User{}, false, err
	}
	return u, true, nil
}

func bindRefresh(c echo.Context) (string, bool) {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return "", false
	}
	raw := strings.TrimSpace(req.RefreshToken)
	return raw, raw != ""
}

// Refresh: validate by hash, revoke old, issue a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw, ok := bindRefresh(c)
	if !ok {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(raw)

	ctx, cancel := requestContext(c)
	defer cancel()

	u, ok, err := h.refreshUser(ctx, hash)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return writeError(c, h.Log, err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess: return a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	raw, ok := bindRefresh(c)
	if !ok {
		return badRequest(c, "refresh_token required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, ok, err := h.refreshUser(ctx, utils.HashRefreshRaw(raw))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes one session when a refresh_token is posted, or every
// session of the caller when only a valid bearer token is sent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var (
		actor     model.Actor
		hasBearer bool
	)
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		a, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
		if err == nil {
			actor, hasBearer = a, true
		}
	}
	refreshToken, _ := bindRefresh(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	switch {
	case refreshToken != "":
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrRefreshInvalid) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
			}
			return writeError(c, h.Log, err)
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return writeError(c, h.Log, err)
		}
		return c.NoContent(http.StatusNoContent)
	case hasBearer:
		if err := h.Tokens.RevokeAllForUser(ctx, actor.UserID); err != nil {
			return writeError(c, h.Log, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	return badRequest(c, "provide Authorization header or refresh_token")
}

// Me returns the account behind the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	actor := middleware.ActorFrom(c)
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account no longer exists"})
		}
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}
