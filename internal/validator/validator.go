package validator

import (
	"context"
	"fmt"
	"time"

	"pigeon-bidding/internal/biddingerrors"
	"pigeon-bidding/internal/models"
)

// EligibilityChecker is the external profile/phone verification capability
type EligibilityChecker interface {
	IsEligibleToBid(ctx context.Context, bidderID string) (bool, error)
}

// EligibilityFunc adapts a function to EligibilityChecker
type EligibilityFunc func(ctx context.Context, bidderID string) (bool, error)

func (f EligibilityFunc) IsEligibleToBid(ctx context.Context, bidderID string) (bool, error) {
	return f(ctx, bidderID)
}

// AllowAll treats every bidder as verified
var AllowAll = EligibilityFunc(func(context.Context, string) (bool, error) { return true, nil })

// Validator applies the auction rules to a candidate bid
type Validator struct {
	eligibility EligibilityChecker
}

// New creates a Validator. A nil checker allows every bidder.
func New(eligibility EligibilityChecker) *Validator {
	if eligibility == nil {
		eligibility = AllowAll
	}
	return &Validator{eligibility: eligibility}
}

// CheckStructure rejects malformed requests without touching any auction state
func CheckStructure(req models.PlaceBid) error {
	if req.AuctionID == "" || req.BidderID == "" {
		return fmt.Errorf("validator: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if req.Amount < 0 || req.MaxAmount < 0 {
		return fmt.Errorf("validator: %w - negative amount", biddingerrors.ErrInvalidBid)
	}
	if req.Amount == 0 && req.MaxAmount == 0 {
		return fmt.Errorf("validator: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	return nil
}

// EffectiveAmount resolves the amount a request bids against the given auction.
// A proxy bid without an explicit amount opens at the minimum acceptable bid.
func EffectiveAmount(auction models.Auction, req models.PlaceBid) int64 {
	if req.Amount == 0 && req.HasCeiling() {
		return MinimumBid(auction)
	}
	return req.Amount
}

// MinimumBid is the lowest amount the next bid may name
func MinimumBid(auction models.Auction) int64 {
	return auction.CurrentPrice + auction.MinBidIncrement
}

// Validate runs the ordered rule checks. amount must already be the effective amount.
// Any failure leaves no side effect.
func (v *Validator) Validate(ctx context.Context, auction models.Auction, req models.PlaceBid, amount int64, now time.Time) error {
	if err := checkOpen(auction, now); err != nil {
		return err
	}
	if req.BidderID == auction.SellerID {
		return fmt.Errorf("validator: %w", biddingerrors.ErrSelfBidding)
	}

	ok, err := v.eligibility.IsEligibleToBid(ctx, req.BidderID)
	if err != nil {
		return fmt.Errorf("validator: eligibility check for bidder %s: %w", req.BidderID, err)
	}
	if !ok {
		return fmt.Errorf("validator: %w", biddingerrors.ErrBidderNotEligible)
	}

	if minimum := MinimumBid(auction); amount < minimum {
		return fmt.Errorf("validator: %w - minimum acceptable bid is %d", biddingerrors.ErrBidTooLow, minimum)
	}
	if req.HasCeiling() && req.MaxAmount < amount {
		return fmt.Errorf("validator: %w", biddingerrors.ErrCeilingBelowAmount)
	}
	return nil
}

func checkOpen(auction models.Auction, now time.Time) error {
	switch auction.Status {
	case models.StatusActive:
		if !now.Before(auction.EndTime) {
			return fmt.Errorf("validator: %w - ended at %s", biddingerrors.ErrAuctionEnded, auction.EndTime.UTC().Format(time.RFC3339))
		}
		return nil
	case models.StatusClosed:
		return fmt.Errorf("validator: %w", biddingerrors.ErrAuctionEnded)
	case models.StatusCancelled, models.StatusSold:
		return fmt.Errorf("validator: %w - status %s", biddingerrors.ErrAuctionClosed, auction.Status)
	default:
		return fmt.Errorf("validator: %w - status %s", biddingerrors.ErrAuctionNotActive, auction.Status)
	}
}
