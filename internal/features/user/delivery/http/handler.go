package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zagip/zagip-game/internal/common/middleware"
	"github.com/zagip/zagip-game/internal/common/response"
	"github.com/zagip/zagip-game/internal/features/user/service"
)

type LeaderboardResponse struct {
	Users []service.LeaderboardEntry `json:"users"`
}

type UserHandler struct {
	service *service.Service
}

func NewUserHandler(service *service.Service) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	router.GET("/auth/me", auth, h.getMe)
	router.GET("/user/stats", auth, h.getStats)

	leaderboard := router.Group("/leaderboard", auth)
	{
		leaderboard.GET("/users", h.getLeaderboard)
		leaderboard.GET("/user/:userId", h.getUser)
	}
}

// @Summary Get current user
// @Description Returns the caller's balance, pinned NFT, referral count and role.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Profile "User data"
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Failure 404 {object} middleware.ErrorResponse "User not found"
// @Failure 500 {object} middleware.ErrorResponse "Internal server error"
// @Router /auth/me [get]
func (h *UserHandler) getMe(c *gin.Context) {
	profile, err := h.service.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// @Summary Get activity stats of the current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Stats
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Failure 500 {object} middleware.ErrorResponse "Internal server error"
// @Router /user/stats [get]
func (h *UserHandler) getStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Get leaderboard
// @Description Users ordered by balance, highest first.
// @Tags leaderboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} LeaderboardResponse
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Failure 500 {object} middleware.ErrorResponse "Internal server error"
// @Router /leaderboard/users [get]
func (h *UserHandler) getLeaderboard(c *gin.Context) {
	users, err := h.service.Leaderboard(c.Request.Context())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, LeaderboardResponse{Users: users})
}

// @Summary Get user by ID
// @Description Public card of a user with every NFT they own.
// @Tags leaderboard
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} service.UserDetails
// @Failure 400 {object} middleware.ErrorResponse "Invalid request"
// @Failure 404 {object} middleware.ErrorResponse "User not found"
// @Failure 500 {object} middleware.ErrorResponse "Internal server error"
// @Router /leaderboard/user/{userId} [get]
func (h *UserHandler) getUser(c *gin.Context) {
	id, ok := response.IDParam(c, "userId")
	if !ok {
		return
	}

	details, err := h.service.UserDetails(c.Request.Context(), id)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}
