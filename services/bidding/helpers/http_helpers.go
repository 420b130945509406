package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pigeon-bidding/internal/biddingerrors"
	"pigeon-bidding/internal/models"
	"pigeon-bidding/utils"
)

// minor units per major unit
const displayExponent = -2

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONRejection(c, http.StatusBadRequest, wrappedErr, "invalid request payload", string(biddingerrors.ReasonInvalidBid))
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrInvalidAuction):
		return http.StatusBadRequest, "invalid auction details"
	case errors.Is(err, biddingerrors.ErrCeilingBelowAmount):
		return http.StatusBadRequest, "proxy ceiling below bid amount"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrSelfBidding):
		return http.StatusForbidden, "seller cannot bid on own auction"
	case errors.Is(err, biddingerrors.ErrBidderNotEligible):
		return http.StatusForbidden, "bidder is not eligible to bid"
	case errors.Is(err, biddingerrors.ErrAuctionNotActive):
		return http.StatusConflict, "auction is not active"
	case errors.Is(err, biddingerrors.ErrInvalidTransition):
		return http.StatusConflict, "invalid auction status transition"
	case errors.Is(err, biddingerrors.ErrAuctionEnded):
		return http.StatusGone, "auction has ended"
	case errors.Is(err, biddingerrors.ErrAuctionClosed):
		return http.StatusGone, "auction is closed"
	case errors.Is(err, biddingerrors.ErrLockTimeout), errors.Is(err, biddingerrors.ErrVersionConflict):
		return http.StatusServiceUnavailable, "auction busy, retry later"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusOK, "no bids found for auction"
	case errors.Is(err, biddingerrors.ErrBidderNoBids):
		return http.StatusOK, "no auctions found for bidder"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// WriteServiceError renders a service error with its reason code
func WriteServiceError(c *gin.Context, err error) (int, string) {
	status, message := MapErrorToHTTP(err)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	utils.JSONRejection(c, status, fmt.Errorf("%s: %w", message, err), message, string(biddingerrors.ReasonOf(err)))
	return status, message
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}

// FormatAmount renders minor units as a two-decimal string
func FormatAmount(minor int64) string {
	return decimal.New(minor, displayExponent).StringFixed(-displayExponent)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func ToBidResponse(b models.Bid) BidResponse {
	return BidResponse{
		BidID:         b.BidID,
		AuctionID:     b.AuctionID,
		BidderID:      b.BidderID,
		Amount:        b.Amount,
		DisplayAmount: FormatAmount(b.Amount),
		Kind:          string(b.Kind),
		Sequence:      b.Sequence,
		IsWinning:     b.IsWinning,
		CreatedAt:     formatTime(b.CreatedAt),
	}
}

func ToPlaceBidResponse(r models.BidResult) PlaceBidResponse {
	return PlaceBidResponse{
		Bid:            ToBidResponse(r.Bid),
		AcceptedAmount: r.AcceptedAmount,
		CurrentPrice:   r.CurrentPrice,
		DisplayPrice:   FormatAmount(r.CurrentPrice),
		TopBidderID:    r.TopBidderID,
		IsWinning:      r.IsWinning,
		EndTime:        formatTime(r.EndTime),
		Extended:       r.Extended,
		Status:         string(r.Status),
	}
}

func ToAuctionStateResponse(s models.AuctionState) AuctionStateResponse {
	return AuctionStateResponse{
		AuctionID:    s.AuctionID,
		CurrentPrice: s.CurrentPrice,
		DisplayPrice: FormatAmount(s.CurrentPrice),
		EndTime:      formatTime(s.EndTime),
		Status:       string(s.Status),
		TopBidderID:  s.TopBidderID,
		ReserveMet:   s.ReserveMet,
		BidCount:     s.BidCount,
	}
}

// ToAuctionResponse renders the public fields of an auction as of now. Reserve
// price and proxy ceilings are not part of it.
func ToAuctionResponse(a models.Auction, now time.Time) AuctionResponse {
	return AuctionResponse{
		AuctionID:       a.AuctionID,
		SellerID:        a.SellerID,
		Title:           a.Title,
		StartingPrice:   a.StartingPrice,
		CurrentPrice:    a.CurrentPrice,
		DisplayPrice:    FormatAmount(a.CurrentPrice),
		BuyNowPrice:     a.BuyNowPrice,
		MinBidIncrement: a.MinBidIncrement,
		EndTime:         formatTime(a.EndTime),
		OriginalEndTime: formatTime(a.OriginalEndTime),
		Status:          string(a.EffectiveStatus(now)),
		TopBidderID:     a.TopBidderID,
		ReserveMet:      a.ReserveMet(),
		BidCount:        a.BidCount,
	}
}

func (r CreateAuctionRequest) ToModel() models.NewAuction {
	return models.NewAuction{
		SellerID:        r.SellerID,
		Title:           r.Title,
		StartingPrice:   r.StartingPrice,
		ReservePrice:    r.ReservePrice,
		BuyNowPrice:     r.BuyNowPrice,
		MinBidIncrement: r.MinBidIncrement,
		EndTime:         r.EndTime,
		SnipeWindow:     seconds(r.SnipeWindowSeconds),
		SnipeExtension:  seconds(r.SnipeExtensionSeconds),
	}
}

func seconds(s *int64) *time.Duration {
	if s == nil {
		return nil
	}
	d := time.Duration(*s) * time.Second
	return &d
}

func (r PlaceBidRequest) ToModel() models.PlaceBid {
	return models.PlaceBid{
		AuctionID: r.AuctionID,
		BidderID:  r.BidderID,
		Amount:    r.Amount,
		MaxAmount: r.MaxAmount,
	}
}
