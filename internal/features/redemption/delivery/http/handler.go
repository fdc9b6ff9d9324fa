package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zagip/zagip-game/internal/common/middleware"
	"github.com/zagip/zagip-game/internal/common/response"
	"github.com/zagip/zagip-game/internal/features/redemption/service"
)

type RedeemRequest struct {
	Code string `json:"code" binding:"required"`
}

type CompleteTaskRequest struct {
	TaskID int64 `json:"taskId" binding:"required"`
}

type RewardResponse struct {
	Status     string `json:"status" example:"ok"`
	Message    string `json:"message"`
	NewBalance int64  `json:"newBalance"`
	Reward     int64  `json:"reward"`
}

type TasksResponse struct {
	Tasks []service.TaskView `json:"tasks"`
}

type RedemptionHandler struct {
	service *service.Service
}

func NewRedemptionHandler(service *service.Service) *RedemptionHandler {
	return &RedemptionHandler{service: service}
}

func (h *RedemptionHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	router.POST("/code/redeem", auth, h.redeem)

	tasks := router.Group("/task", auth)
	{
		tasks.GET("/all", h.tasks)
		tasks.POST("/complete", h.complete)
	}
}

// @Summary Redeem a promo code
// @Tags rewards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RedeemRequest true "Code"
// @Success 200 {object} RewardResponse
// @Failure 404 {object} middleware.ErrorResponse "Unknown or inactive code"
// @Failure 409 {object} middleware.ErrorResponse "Code exhausted or already redeemed"
// @Router /code/redeem [post]
func (h *RedemptionHandler) redeem(c *gin.Context) {
	var req RedeemRequest
	if !response.BindJSON(c, &req) {
		return
	}
	h.reward(c)(h.service.RedeemCode(c.Request.Context(), middleware.UserID(c), req.Code))
}

// @Summary List active tasks
// @Description Each task carries whether the caller already completed it.
// @Tags rewards
// @Produce json
// @Security BearerAuth
// @Success 200 {object} TasksResponse
// @Router /task/all [get]
func (h *RedemptionHandler) tasks(c *gin.Context) {
	tasks, err := h.service.Tasks(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, TasksResponse{Tasks: tasks})
}

// @Summary Complete a task
// @Tags rewards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CompleteTaskRequest true "Task"
// @Success 200 {object} RewardResponse
// @Failure 404 {object} middleware.ErrorResponse "Unknown or inactive task"
// @Failure 409 {object} middleware.ErrorResponse "Already completed"
// @Router /task/complete [post]
func (h *RedemptionHandler) complete(c *gin.Context) {
	var req CompleteTaskRequest
	if !response.BindJSON(c, &req) {
		return
	}
	h.reward(c)(h.service.CompleteTask(c.Request.Context(), middleware.UserID(c), req.TaskID))
}

func (h *RedemptionHandler) reward(c *gin.Context) func(*service.Receipt, error) {
	return func(r *service.Receipt, err error) {
		if err != nil {
			middleware.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, RewardResponse{Status: "ok", Message: r.Message, NewBalance: r.NewBalance, Reward: r.Reward})
	}
}
