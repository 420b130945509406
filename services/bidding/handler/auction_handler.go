package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"pigeon-bidding/internal/models"
	"pigeon-bidding/services/bidding/helpers"
	"pigeon-bidding/utils"

	"github.com/gin-gonic/gin"
)

var errNoEventFeed = errors.New("handler: event stream not configured")

// CreateAuctionHandler handles POST /auctions
func (h *BiddingHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), req.ToModel())
	if err != nil {
		helpers.WriteServiceError(c, err)
		utils.Warn("CreateAuctionHandler: failed to create auction", map[string]any{"seller_id": req.SellerID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.ToAuctionResponse(auction, h.now()), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"seller_id":  auction.SellerID,
	})
}

// SubmitAuctionHandler handles POST /auctions/:auction_id/submit
func (h *BiddingHandler) SubmitAuctionHandler(c *gin.Context) {
	h.transition(c, "SubmitAuctionHandler", "auction submitted for approval", h.service.SubmitForApproval)
}

// ApproveAuctionHandler handles POST /auctions/:auction_id/approve
func (h *BiddingHandler) ApproveAuctionHandler(c *gin.Context) {
	h.transition(c, "ApproveAuctionHandler", "auction approved", h.service.Approve)
}

// CancelAuctionHandler handles POST /auctions/:auction_id/cancel
func (h *BiddingHandler) CancelAuctionHandler(c *gin.Context) {
	h.transition(c, "CancelAuctionHandler", "auction cancelled", h.service.Cancel)
}

func (h *BiddingHandler) transition(c *gin.Context, handlerName, message string, fn func(context.Context, string) (models.AuctionState, error)) {
	auctionID := c.Param("auction_id")
	state, err := fn(c.Request.Context(), auctionID)
	if err != nil {
		helpers.WriteServiceError(c, err)
		utils.Warn(handlerName+": transition failed", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToAuctionStateResponse(state), message)
	helpers.LogSuccess(handlerName, message, map[string]any{"auction_id": auctionID, "status": string(state.Status)})
}

// StreamEventsHandler handles GET /auctions/:auction_id/events as server-sent events
func (h *BiddingHandler) StreamEventsHandler(c *gin.Context) {
	if h.events == nil {
		utils.JSONError(c, http.StatusNotFound, errNoEventFeed, "event stream not available")
		return
	}

	auctionID := c.Param("auction_id")
	if _, err := h.service.GetCurrentState(c.Request.Context(), auctionID); err != nil {
		helpers.WriteServiceError(c, err)
		return
	}

	events := h.events.Subscribe(c.Request.Context(), auctionID)
	c.Stream(func(w io.Writer) bool {
		evt, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(string(evt.Type), evt)
		return true
	})
}
