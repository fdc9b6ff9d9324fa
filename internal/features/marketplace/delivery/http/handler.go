package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zagip/zagip-game/internal/common/middleware"
	"github.com/zagip/zagip-game/internal/common/response"
	"github.com/zagip/zagip-game/internal/domain"
	"github.com/zagip/zagip-game/internal/features/marketplace/service"
)

type ItemRequest struct {
	NFTID int64 `json:"nftId" binding:"required"`
}

type TransferRequest struct {
	NFTID             int64  `json:"nftId" binding:"required"`
	RecipientUsername string `json:"recipientUsername" binding:"required"`
}

type CreateAuctionRequest struct {
	NFTID int64 `json:"nftId" binding:"required"`
	Price int64 `json:"price"`
}

type AuctionRequest struct {
	AuctionID int64 `json:"auctionId" binding:"required"`
}

type ItemsResponse struct {
	NFTs []*domain.Item `json:"nfts"`
}

type AuctionsResponse struct {
	Auctions []*domain.AuctionListing `json:"auctions"`
}

type CreateAuctionResponse struct {
	Status  string          `json:"status" example:"ok"`
	Message string          `json:"message"`
	Auction *domain.Auction `json:"auction"`
}

type MarketplaceHandler struct {
	service *service.Service
}

func NewMarketplaceHandler(service *service.Service) *MarketplaceHandler {
	return &MarketplaceHandler{service: service}
}

func (h *MarketplaceHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	nft := router.Group("/nft", auth)
	{
		nft.GET("/all", h.shop)
		nft.GET("/my", h.myItems)
		nft.POST("/buy", h.buy)
		nft.POST("/sell", h.sell)
		nft.POST("/pin", h.pin)
		nft.POST("/transfer", h.transfer)
	}

	auction := router.Group("/auction", auth)
	{
		auction.POST("/create", h.createAuction)
		auction.GET("/all", h.auctions)
		auction.GET("/my", h.myAuctions)
		auction.POST("/buy", h.buyAuction)
		auction.POST("/cancel", h.cancelAuction)
	}
}

// @Summary List the shop
// @Description NFTs nobody owns yet.
// @Tags nft
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ItemsResponse
// @Router /nft/all [get]
func (h *MarketplaceHandler) shop(c *gin.Context) {
	items, err := h.service.Shop(c.Request.Context())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ItemsResponse{NFTs: items})
}

// @Summary List my NFTs
// @Description NFTs owned by the caller that are not in an active auction.
// @Tags nft
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ItemsResponse
// @Router /nft/my [get]
func (h *MarketplaceHandler) myItems(c *gin.Context) {
	items, err := h.service.MyItems(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ItemsResponse{NFTs: items})
}

// @Summary Buy an NFT from the shop
// @Tags nft
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ItemRequest true "NFT"
// @Success 200 {object} response.Receipt
// @Failure 400 {object} middleware.ErrorResponse "Insufficient funds"
// @Failure 404 {object} middleware.ErrorResponse "NFT not found"
// @Failure 409 {object} middleware.ErrorResponse "Already owned"
// @Router /nft/buy [post]
func (h *MarketplaceHandler) buy(c *gin.Context) {
	var req ItemRequest
	if !response.BindJSON(c, &req) {
		return
	}
	h.receipt(c)(h.service.Buy(c.Request.Context(), middleware.UserID(c), req.NFTID))
}

// @Summary Sell an NFT back to the system
// @Tags nft
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ItemRequest true "NFT"
// @Success 200 {object} response.Receipt
// @Failure 403 {object} middleware.ErrorResponse "Not the owner"
// @Failure 409 {object} middleware.ErrorResponse "NFT is in an active auction"
// @Router /nft/sell [post]
func (h *MarketplaceHandler) sell(c *gin.Context) {
	var req ItemRequest
	if !response.BindJSON(c, &req) {
		return
	}
	h.receipt(c)(h.service.Sell(c.Request.Context(), middleware.UserID(c), req.NFTID))
}

// @Summary Pin an owned NFT to the profile
// @Tags nft
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ItemRequest true "NFT"
// @Success 200 {object} response.Receipt
// @Failure 403 {object} middleware.ErrorResponse "Not the owner"
// @Router /nft/pin [post]
func (h *MarketplaceHandler) pin(c *gin.Context) {
	var req ItemRequest
	if !response.BindJSON(c, &req) {
		return
	}
	h.receipt(c)(h.service.Pin(c.Request.Context(), middleware.UserID(c), req.NFTID))
}

// @Summary Transfer an NFT to another user
// @Description Costs a flat fee paid by the sender.
// @Tags nft
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransferRequest true "NFT and recipient"
// @Success 200 {object} response.Receipt
// @Failure 400 {object} middleware.ErrorResponse "Unknown recipient, self transfer or insufficient funds"
// @Failure 403 {object} middleware.ErrorResponse "Not the owner"
// @Router /nft/transfer [post]
func (h *MarketplaceHandler) transfer(c *gin.Context) {
	var req TransferRequest
	if !response.BindJSON(c, &req) {
		return
	}
	h.receipt(c)(h.service.Transfer(c.Request.Context(), middleware.UserID(c), req.NFTID, req.RecipientUsername))
}

// @Summary List an owned NFT for sale
// @Tags auction
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateAuctionRequest true "NFT and price"
// @Success 200 {object} CreateAuctionResponse
// @Failure 400 {object} middleware.ErrorResponse "Invalid price"
// @Failure 403 {object} middleware.ErrorResponse "Not the owner"
// @Failure 409 {object} middleware.ErrorResponse "Already listed"
// @Router /auction/create [post]
func (h *MarketplaceHandler) createAuction(c *gin.Context) {
	var req CreateAuctionRequest
	if !response.BindJSON(c, &req) {
		return
	}
	a, err := h.service.CreateAuction(c.Request.Context(), middleware.UserID(c), req.NFTID, req.Price)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CreateAuctionResponse{Status: "ok", Message: "Auction created", Auction: a})
}

// @Summary List active auctions
// @Tags auction
// @Produce json
// @Security BearerAuth
// @Success 200 {object} AuctionsResponse
// @Router /auction/all [get]
func (h *MarketplaceHandler) auctions(c *gin.Context) {
	list, err := h.service.Auctions(c.Request.Context())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AuctionsResponse{Auctions: list})
}

// @Summary List my auctions
// @Description Every auction the caller created, in any status.
// @Tags auction
// @Produce json
// @Security BearerAuth
// @Success 200 {object} AuctionsResponse
// @Router /auction/my [get]
func (h *MarketplaceHandler) myAuctions(c *gin.Context) {
	list, err := h.service.MyAuctions(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AuctionsResponse{Auctions: list})
}

// @Summary Buy a listed NFT
// @Tags auction
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AuctionRequest true "Auction"
// @Success 200 {object} response.Receipt
// @Failure 400 {object} middleware.ErrorResponse "Insufficient funds or own auction"
// @Failure 409 {object} middleware.ErrorResponse "Auction is no longer active"
// @Router /auction/buy [post]
func (h *MarketplaceHandler) buyAuction(c *gin.Context) {
	var req AuctionRequest
	if !response.BindJSON(c, &req) {
		return
	}
	h.receipt(c)(h.service.BuyAuction(c.Request.Context(), middleware.UserID(c), req.AuctionID))
}

// @Summary Cancel an own auction
// @Tags auction
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AuctionRequest true "Auction"
// @Success 200 {object} response.Receipt
// @Failure 403 {object} middleware.ErrorResponse "Not the seller"
// @Failure 409 {object} middleware.ErrorResponse "Auction is no longer active"
// @Router /auction/cancel [post]
func (h *MarketplaceHandler) cancelAuction(c *gin.Context) {
	var req AuctionRequest
	if !response.BindJSON(c, &req) {
		return
	}
	h.receipt(c)(h.service.CancelAuction(c.Request.Context(), middleware.UserID(c), req.AuctionID))
}

func (h *MarketplaceHandler) receipt(c *gin.Context) func(*service.Receipt, error) {
	return func(r *service.Receipt, err error) {
		if err != nil {
			middleware.Fail(c, err)
			return
		}
		response.OK(c, r.Message, r.NewBalance)
	}
}
