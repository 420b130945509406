package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pigeon-bidding/internal/biddingerrors"
	"pigeon-bidding/internal/models"
	"pigeon-bidding/services/bidding/helpers"
	"pigeon-bidding/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=bidding_handler.go -destination=mock_service.go -package=handler

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, req models.PlaceBid) (models.BidResult, error)
	GetCurrentState(ctx context.Context, auctionID string) (models.AuctionState, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error)
	GetAuctionsByBidder(ctx context.Context, bidderID string) ([]models.Auction, error)
	CreateAuction(ctx context.Context, req models.NewAuction) (models.Auction, error)
	SubmitForApproval(ctx context.Context, auctionID string) (models.AuctionState, error)
	Approve(ctx context.Context, auctionID string) (models.AuctionState, error)
	Cancel(ctx context.Context, auctionID string) (models.AuctionState, error)
}

// EventSubscriber is the in-process event feed behind the SSE endpoint
type EventSubscriber interface {
	Subscribe(ctx context.Context, auctionID string) <-chan models.Event
}

type BiddingHandler struct {
	service BiddingServiceInterface
	events  EventSubscriber
	now     func() time.Time
}

func NewBiddingHandler(service BiddingServiceInterface, events EventSubscriber) *BiddingHandler {
	return &BiddingHandler{service: service, events: events, now: func() time.Time { return time.Now().UTC() }}
}

// RecordBidHandler handles POST /bids
func (h *BiddingHandler) RecordBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RecordBidHandler", err)
		return
	}

	result, err := h.service.PlaceBid(c.Request.Context(), req.ToModel())
	if err != nil {
		status, _ := helpers.WriteServiceError(c, err)
		fields := map[string]any{
			"handler":    "RecordBidHandler",
			"auction_id": req.AuctionID,
			"bidder_id":  req.BidderID,
			"reason":     string(biddingerrors.ReasonOf(err)),
			"error":      err.Error(),
		}
		if status >= http.StatusInternalServerError {
			utils.Error("RecordBidHandler: failed to record bid", fields)
		} else {
			utils.Warn("RecordBidHandler: bid rejected", fields)
		}
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.ToPlaceBidResponse(result), "bid recorded successfully")
	helpers.LogSuccess("RecordBidHandler", "bid recorded successfully", map[string]any{
		"bid_id":        result.Bid.BidID,
		"auction_id":    req.AuctionID,
		"bidder_id":     req.BidderID,
		"amount":        result.AcceptedAmount,
		"current_price": result.CurrentPrice,
	})
}

// GetAuctionStateHandler handles GET /auctions/:auction_id/state
func (h *BiddingHandler) GetAuctionStateHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	state, err := h.service.GetCurrentState(c.Request.Context(), auctionID)
	if err != nil {
		helpers.WriteServiceError(c, err)
		utils.Warn("GetAuctionStateHandler: error retrieving state", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToAuctionStateResponse(state), "auction state retrieved successfully")
}

// GetBidsByAuctionHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		helpers.WriteServiceError(c, err)
		utils.Warn("GetBidsByAuctionHandler: error retrieving bids", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, helpers.ToBidResponse(b))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByAuctionHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(resp),
	})
}

// GetWinningBidHandler handles GET /auctions/:auction_id/winning
func (h *BiddingHandler) GetWinningBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bid, err := h.service.GetWinningBid(c.Request.Context(), auctionID)
	if err != nil {
		// For auction, winning bid not found -> 404
		if errors.Is(err, biddingerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no winning bid found")
			utils.Info("GetWinningBidHandler: no winning bid found", map[string]any{"auction_id": auctionID})
			return
		}
		helpers.WriteServiceError(c, err)
		utils.Warn("GetWinningBidHandler: winning bid error", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponse(bid), "winning bid retrieved successfully")
	helpers.LogSuccess("GetWinningBidHandler", "winning bid retrieved successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount,
	})
}

// GetAuctionsByBidderHandler handles GET /bidders/:bidder_id/auctions
func (h *BiddingHandler) GetAuctionsByBidderHandler(c *gin.Context) {
	bidderID := c.Param("bidder_id")
	auctions, err := h.service.GetAuctionsByBidder(c.Request.Context(), bidderID)
	if err != nil && !errors.Is(err, biddingerrors.ErrBidderNoBids) {
		helpers.WriteServiceError(c, err)
		utils.Warn("GetAuctionsByBidderHandler: error retrieving auctions", map[string]any{"bidder_id": bidderID, "error": err.Error()})
		return
	}

	now := h.now()
	resp := make([]helpers.AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		resp = append(resp, helpers.ToAuctionResponse(a, now))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "auctions retrieved successfully")
	helpers.LogSuccess("GetAuctionsByBidderHandler", "auctions retrieved successfully", map[string]any{
		"bidder_id":      bidderID,
		"auctions_count": len(resp),
	})
}
