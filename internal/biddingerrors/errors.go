package biddingerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrNoBids          = errors.New("no bids found for auction")
	ErrBidderNoBids    = errors.New("bidder has not placed any bids")
	ErrVersionConflict = errors.New("auction was modified concurrently")
	ErrPersistence     = errors.New("auction store unavailable")
	ErrAuctionExists   = errors.New("auction already exists")
)

// bid validation errors, surfaced verbatim and never retried
var (
	ErrInvalidBid         = errors.New("invalid bid")
	ErrAuctionNotActive   = errors.New("auction is not active")
	ErrAuctionEnded       = errors.New("auction has ended")
	ErrSelfBidding        = errors.New("seller cannot bid on own auction")
	ErrBidderNotEligible  = errors.New("bidder is not eligible to bid")
	ErrBidTooLow          = errors.New("bid amount too low")
	ErrCeilingBelowAmount = errors.New("proxy ceiling below bid amount")
)

// coordination and lifecycle errors
var (
	ErrAuctionClosed     = errors.New("auction is closed")
	ErrLockTimeout       = errors.New("auction busy, retry later")
	ErrInvalidTransition = errors.New("invalid auction status transition")
	ErrInvalidAuction    = errors.New("invalid auction details")
)

// Reason is a machine-readable rejection code
type Reason string

const (
	ReasonInvalidBid         Reason = "INVALID_BID"
	ReasonAuctionNotActive   Reason = "AUCTION_NOT_ACTIVE"
	ReasonAuctionEnded       Reason = "AUCTION_ENDED"
	ReasonAuctionClosed      Reason = "AUCTION_CLOSED"
	ReasonSelfBidding        Reason = "SELF_BIDDING"
	ReasonBidderNotEligible  Reason = "BIDDER_NOT_ELIGIBLE"
	ReasonBidTooLow          Reason = "BID_TOO_LOW"
	ReasonCeilingBelowAmount Reason = "CEILING_BELOW_AMOUNT"
	ReasonAuctionNotFound    Reason = "AUCTION_NOT_FOUND"
	ReasonConcurrencyTimeout Reason = "CONCURRENCY_TIMEOUT"
	ReasonPersistenceFailure Reason = "PERSISTENCE_FAILURE"
	ReasonInvalidTransition  Reason = "INVALID_TRANSITION"
	ReasonInvalidAuction     Reason = "INVALID_AUCTION"
	ReasonInternal           Reason = "INTERNAL"
)

var reasons = []struct {
	err    error
	reason Reason
}{
	{ErrInvalidBid, ReasonInvalidBid},
	{ErrAuctionNotActive, ReasonAuctionNotActive},
	{ErrAuctionEnded, ReasonAuctionEnded},
	{ErrAuctionClosed, ReasonAuctionClosed},
	{ErrSelfBidding, ReasonSelfBidding},
	{ErrBidderNotEligible, ReasonBidderNotEligible},
	{ErrBidTooLow, ReasonBidTooLow},
	{ErrCeilingBelowAmount, ReasonCeilingBelowAmount},
	{ErrAuctionNotFound, ReasonAuctionNotFound},
	{ErrLockTimeout, ReasonConcurrencyTimeout},
	{ErrVersionConflict, ReasonConcurrencyTimeout},
	{ErrPersistence, ReasonPersistenceFailure},
	{ErrInvalidTransition, ReasonInvalidTransition},
	{ErrInvalidAuction, ReasonInvalidAuction},
}

// ReasonOf maps an error chain to its rejection code
func ReasonOf(err error) Reason {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonInternal
}

// IsValidation reports whether err is a bid rejection decided by the rules
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidBid),
		errors.Is(err, ErrAuctionNotActive),
		errors.Is(err, ErrAuctionEnded),
		errors.Is(err, ErrAuctionClosed),
		errors.Is(err, ErrSelfBidding),
		errors.Is(err, ErrBidderNotEligible),
		errors.Is(err, ErrBidTooLow),
		errors.Is(err, ErrCeilingBelowAmount):
		return true
	}
	return false
}
