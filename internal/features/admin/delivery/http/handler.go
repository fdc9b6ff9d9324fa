package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zagip/zagip-game/internal/common/errors"
	"github.com/zagip/zagip-game/internal/common/middleware"
	"github.com/zagip/zagip-game/internal/common/response"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/features/admin/service"
)

const maxImageSize = 5 << 20

type DeleteRequest struct {
	ID int64 `json:"id" binding:"required"`
}

type BalanceRequest struct {
	Username   string `json:"username" binding:"required"`
	NewBalance int64  `json:"newBalance"`
}

type BalanceResponse struct {
	Status     string `json:"status" example:"ok"`
	Message    string `json:"message"`
	Username   string `json:"username"`
	NewBalance int64  `json:"newBalance"`
}

type CodeResponse struct {
	Status string                 `json:"status" example:"ok"`
	Code   *domain.RedeemableCode `json:"code"`
}

type CodesResponse struct {
	Codes []*domain.RedeemableCode `json:"codes"`
}

type TaskResponse struct {
	Status string       `json:"status" example:"ok"`
	Task   *domain.Task `json:"task"`
}

type TasksResponse struct {
	Tasks []*domain.Task `json:"tasks"`
}

type MintResponse struct {
	Status  string         `json:"status" example:"ok"`
	Message string         `json:"message"`
	NFTs    []*domain.Item `json:"nfts"`
}

type AdminHandler struct {
	service *service.Service
}

func NewAdminHandler(service *service.Service) *AdminHandler {
	return &AdminHandler{service: service}
}

func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	admin := router.Group("/admin", auth, middleware.RequireAdmin())
	{
		admin.POST("/code/create", h.createCode)
		admin.GET("/code/all", h.codes)
		admin.DELETE("/code/delete", h.deleteCode)

		admin.POST("/task/create", h.createTask)
		admin.GET("/task/all", h.tasks)
		admin.DELETE("/task/delete", h.deleteTask)

		admin.POST("/nft/create", h.mint)
		admin.DELETE("/nft/delete", h.deleteItem)

		admin.POST("/user/balance", h.setBalance)
	}
}

// @Summary Create a promo code
// @Description An empty code is replaced by a generated CODEXXXXXXXX value.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CodeInput true "Code"
// @Success 200 {object} CodeResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid request"
// @Failure 403 {object} middleware.ErrorResponse "Admin access required"
// @Failure 409 {object} middleware.ErrorResponse "Code already exists"
// @Router /admin/code/create [post]
func (h *AdminHandler) createCode(c *gin.Context) {
	var in service.CodeInput
	if !response.BindJSON(c, &in) {
		return
	}
	code, err := h.service.CreateCode(c.Request.Context(), in)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CodeResponse{Status: "ok", Code: code})
}

// @Summary List promo codes
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} CodesResponse
// @Router /admin/code/all [get]
func (h *AdminHandler) codes(c *gin.Context) {
	codes, err := h.service.Codes(c.Request.Context())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CodesResponse{Codes: codes})
}

// @Summary Delete a promo code
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeleteRequest true "Code id"
// @Success 200 {object} response.Status
// @Failure 404 {object} middleware.ErrorResponse "Code not found"
// @Router /admin/code/delete [delete]
func (h *AdminHandler) deleteCode(c *gin.Context) {
	var req DeleteRequest
	if !response.BindJSON(c, &req) {
		return
	}
	if err := h.service.DeleteCode(c.Request.Context(), req.ID); err != nil {
		middleware.Fail(c, err)
		return
	}
	response.Done(c, "Code deleted")
}

// @Summary Create a task
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.TaskInput true "Task"
// @Success 200 {object} TaskResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid request"
// @Router /admin/task/create [post]
func (h *AdminHandler) createTask(c *gin.Context) {
	var in service.TaskInput
	if !response.BindJSON(c, &in) {
		return
	}
	task, err := h.service.CreateTask(c.Request.Context(), in)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, TaskResponse{Status: "ok", Task: task})
}

// @Summary List every task
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} TasksResponse
// @Router /admin/task/all [get]
func (h *AdminHandler) tasks(c *gin.Context) {
	tasks, err := h.service.Tasks(c.Request.Context())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, TasksResponse{Tasks: tasks})
}

// @Summary Delete a task
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeleteRequest true "Task id"
// @Success 200 {object} response.Status
// @Failure 404 {object} middleware.ErrorResponse "Task not found"
// @Router /admin/task/delete [delete]
func (h *AdminHandler) deleteTask(c *gin.Context) {
	var req DeleteRequest
	if !response.BindJSON(c, &req) {
		return
	}
	if err := h.service.DeleteTask(c.Request.Context(), req.ID); err != nil {
		middleware.Fail(c, err)
		return
	}
	response.Done(c, "Task deleted")
}

// @Summary Mint NFTs
// @Description Uploads the artwork once and creates amount identical NFTs in the shop.
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param name formData string true "Name"
// @Param description formData string false "Description"
// @Param price formData int true "Price"
// @Param gradientColor1 formData string true "First gradient color"
// @Param gradientColor2 formData string true "Second gradient color"
// @Param amount formData int true "How many copies to mint"
// @Param image formData file true "Artwork"
// @Success 200 {object} MintResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid request"
// @Failure 500 {object} middleware.ErrorResponse "Internal server error"
// @Router /admin/nft/create [post]
func (h *AdminHandler) mint(c *gin.Context) {
	price, err := strconv.ParseInt(c.PostForm("price"), 10, 64)
	if err != nil {
		middleware.Fail(c, errors.NewValidationError("price", "must be an integer"))
		return
	}
	amount, err := strconv.Atoi(c.PostForm("amount"))
	if err != nil {
		middleware.Fail(c, errors.NewValidationError("amount", "must be an integer"))
		return
	}
	img, ok := readImage(c)
	if !ok {
		return
	}

	def := domain.ItemDefinition{
		Name:           c.PostForm("name"),
		Description:    c.PostForm("description"),
		Price:          price,
		GradientColor1: c.PostForm("gradientColor1"),
		GradientColor2: c.PostForm("gradientColor2"),
	}
	items, err := h.service.MintItems(c.Request.Context(), def, amount, img)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MintResponse{Status: "ok", Message: "NFTs created", NFTs: items})
}

func readImage(c *gin.Context) (service.Image, bool) {
	fh, err := c.FormFile("image")
	if err != nil {
		middleware.Fail(c, errors.NewValidationError("image", "an image file is required"))
		return service.Image{}, false
	}
	if fh.Size > maxImageSize {
		middleware.Fail(c, errors.NewValidationError("image", "image is larger than 5 MiB"))
		return service.Image{}, false
	}

	f, err := fh.Open()
	if err != nil {
		middleware.Fail(c, errors.NewValidationError("image", err.Error()))
		return service.Image{}, false
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, maxImageSize+1))
	if err != nil {
		middleware.Fail(c, errors.NewValidationError("image", err.Error()))
		return service.Image{}, false
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
	}
	return service.Image{Filename: fh.Filename, ContentType: contentType, Body: body}, true
}

// @Summary Delete an NFT
// @Description Removes the NFT with its auctions and unpins it; the artwork is deleted when nothing else uses it.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeleteRequest true "NFT id"
// @Success 200 {object} response.Status
// @Failure 404 {object} middleware.ErrorResponse "NFT not found"
// @Router /admin/nft/delete [delete]
func (h *AdminHandler) deleteItem(c *gin.Context) {
	var req DeleteRequest
	if !response.BindJSON(c, &req) {
		return
	}
	if err := h.service.DeleteItem(c.Request.Context(), req.ID); err != nil {
		middleware.Fail(c, err)
		return
	}
	response.Done(c, "NFT deleted")
}

// @Summary Set a user's balance
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BalanceRequest true "Username and balance"
// @Success 200 {object} BalanceResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid balance"
// @Failure 404 {object} middleware.ErrorResponse "User not found"
// @Router /admin/user/balance [post]
func (h *AdminHandler) setBalance(c *gin.Context) {
	var req BalanceRequest
	if !response.BindJSON(c, &req) {
		return
	}
	u, err := h.service.SetBalance(c.Request.Context(), req.Username, req.NewBalance)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{Status: "ok", Message: "Balance updated", Username: u.Username, NewBalance: u.Balance})
}
