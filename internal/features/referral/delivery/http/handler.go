package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zagip/zagip-game/internal/common/middleware"
	"github.com/zagip/zagip-game/internal/features/referral/service"
)

type ReferralsResponse struct {
	Referrals []service.Referral `json:"referrals"`
}

type ReferralHandler struct {
	service *service.Service
}

func NewReferralHandler(service *service.Service) *ReferralHandler {
	return &ReferralHandler{service: service}
}

func (h *ReferralHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	referral := router.Group("/referral", auth)
	{
		referral.GET("/link", h.link)
		referral.GET("/list", h.list)
	}
}

// @Summary Get the caller's referral link
// @Tags referral
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Link
// @Router /referral/link [get]
func (h *ReferralHandler) link(c *gin.Context) {
	link, err := h.service.Link(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// @Summary List users the caller referred
// @Tags referral
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ReferralsResponse
// @Router /referral/list [get]
func (h *ReferralHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ReferralsResponse{Referrals: list})
}
