package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/common/middleware"
	"github.com/zagip/zagip-game/internal/common/response"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/features/auth/session"
	"github.com/zagip/zagip-game/internal/features/auth/verifier"
	identity "github.com/zagip/zagip-game/internal/features/identity/service"
)

type BootstrapRequest struct {
	InitData   string `json:"initData" binding:"required"`
	ReferrerID *int64 `json:"referrerId,omitempty"`
}

type BootstrapResponse struct {
	Status    string      `json:"status" example:"ok"`
	UserID    int64       `json:"userId"`
	Balance   int64       `json:"balance"`
	Username  string      `json:"username,omitempty"`
	AvatarURL string      `json:"avatarUrl,omitempty"`
	Token     string      `json:"token"`
	Role      domain.Role `json:"role"`
	IsNewUser bool        `json:"isNewUser"`
}

type AuthHandler struct {
	verifier *verifier.Verifier
	resolver *identity.Resolver
	sessions *session.Store
}

func NewAuthHandler(v *verifier.Verifier, r *identity.Resolver, s *session.Store) *AuthHandler {
	return &AuthHandler{verifier: v, resolver: r, sessions: s}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	router.POST("/auth/telegram", h.bootstrap)
	router.POST("/auth/logout", auth, h.logout)
}

// @Summary Bootstrap a session from Telegram init data
// @Description Verifies the signed init data, finds or creates the user, applies a pending referral and issues a bearer token.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body BootstrapRequest true "Init data"
// @Success 200 {object} BootstrapResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid request"
// @Failure 401 {object} middleware.ErrorResponse "Invalid signature or malformed payload"
// @Failure 500 {object} middleware.ErrorResponse "Internal server error"
// @Router /auth/telegram [post]
func (h *AuthHandler) bootstrap(c *gin.Context) {
	var req BootstrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, errors.NewMalformedPayloadError("initData is required"))
		return
	}

	verified, err := h.verifier.Verify(req.InitData)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	res, err := h.resolver.Resolve(c.Request.Context(), verified.Profile, req.ReferrerID)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	u := res.User
	token, err := h.sessions.Issue(c.Request.Context(), session.Session{
		UserID:     u.ID,
		TelegramID: u.TelegramID,
		Role:       u.Role,
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, BootstrapResponse{
		Status:    "ok",
		UserID:    u.ID,
		Balance:   u.Balance,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		Token:     token,
		Role:      u.Role,
		IsNewUser: res.IsNewUser,
	})
}

// @Summary Revoke the current session
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Status
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Router /auth/logout [post]
func (h *AuthHandler) logout(c *gin.Context) {
	if err := h.sessions.Revoke(c.Request.Context(), middleware.BearerToken(c)); err != nil {
		middleware.Fail(c, err)
		return
	}
	response.Done(c, "Logged out")
}
