package models

import "time"

// AuctionStatus is the persisted lifecycle state of an auction
type AuctionStatus string

const (
	StatusDraft           AuctionStatus = "draft"
	StatusPendingApproval AuctionStatus = "pending_approval"
	StatusActive          AuctionStatus = "active"
	StatusClosed          AuctionStatus = "closed"
	StatusCancelled       AuctionStatus = "cancelled"
	StatusSold            AuctionStatus = "sold"

	// StatusEnding is never persisted. It classifies an active auction whose
	// deadline is inside the snipe window.
	StatusEnding AuctionStatus = "ending"
)

// IsTerminal reports whether no further transition is possible
func (s AuctionStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled || s == StatusSold
}

// Auction is the aggregate for one pigeon listed for sale. Amounts are in the
// smallest currency unit.
type Auction struct {
	AuctionID       string        `json:"auction_id"`
	SellerID        string        `json:"seller_id"`
	Title           string        `json:"title"`
	StartingPrice   int64         `json:"starting_price"`
	CurrentPrice    int64         `json:"current_price"`
	ReservePrice    int64         `json:"reserve_price,omitempty"`
	BuyNowPrice     int64         `json:"buy_now_price,omitempty"`
	MinBidIncrement int64         `json:"min_bid_increment"`
	EndTime         time.Time     `json:"end_time"`
	OriginalEndTime time.Time     `json:"original_end_time"`
	SnipeWindow     time.Duration `json:"snipe_window"`
	SnipeExtension  time.Duration `json:"snipe_extension"`
	Status          AuctionStatus `json:"status"`
	TopBidderID     string        `json:"top_bidder_id,omitempty"`
	BidCount        int           `json:"bid_count"`
	Version         int64         `json:"version"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`

	// Ceilings holds the standing proxy ceilings keyed by bidder. It must never
	// leave the engine.
	Ceilings map[string]ProxyCeiling `json:"-"`
}

// ProxyCeiling is a bidder's private authorization to be outbid-protected up to Amount
type ProxyCeiling struct {
	BidderID     string
	Amount       int64
	RegisteredAt time.Time
	Sequence     int64
}

// ReserveMet reports whether the current price satisfies the reserve
func (a Auction) ReserveMet() bool {
	return a.ReservePrice == 0 || (a.TopBidderID != "" && a.CurrentPrice >= a.ReservePrice)
}

// EffectiveStatus evaluates the time-driven part of the lifecycle lazily
func (a Auction) EffectiveStatus(now time.Time) AuctionStatus {
	if a.Status != StatusActive {
		return a.Status
	}
	if !now.Before(a.EndTime) {
		return StatusClosed
	}
	if a.SnipeWindow > 0 && a.EndTime.Sub(now) <= a.SnipeWindow {
		return StatusEnding
	}
	return StatusActive
}

// Clone returns a deep copy so callers can mutate it outside the store
func (a Auction) Clone() Auction {
	out := a
	out.Ceilings = make(map[string]ProxyCeiling, len(a.Ceilings))
	for k, v := range a.Ceilings {
		out.Ceilings[k] = v
	}
	return out
}

// BidKind tells who placed a ledger row
type BidKind string

const (
	BidKindManual BidKind = "manual" // plain bid at the requested amount
	BidKindProxy  BidKind = "proxy"  // placed by the bidder's own ceiling
	BidKindAuto   BidKind = "auto"   // a rival's standing ceiling answering
)

// Bid is one immutable ledger row
type Bid struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	Kind      BidKind   `json:"kind"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
	IsWinning bool      `json:"is_winning"`
}

// DeriveStanding re-scans a ledger ordered by Sequence and returns the price and
// the leader. The highest-ordered row always leads.
func DeriveStanding(bids []Bid) (price int64, winner string, ok bool) {
	var last *Bid
	for i := range bids {
		if last == nil || bids[i].Sequence > last.Sequence {
			last = &bids[i]
		}
	}
	if last == nil {
		return 0, "", false
	}
	return last.Amount, last.BidderID, true
}

// MarkWinning sets IsWinning on the highest-ordered row
func MarkWinning(bids []Bid) []Bid {
	out := make([]Bid, len(bids))
	copy(out, bids)
	top := -1
	for i := range out {
		out[i].IsWinning = false
		if top < 0 || out[i].Sequence > out[top].Sequence {
			top = i
		}
	}
	if top >= 0 {
		out[top].IsWinning = true
	}
	return out
}

// BidCommit is everything one accepted bid writes, applied atomically
type BidCommit struct {
	ExpectedVersion int64
	Auction         Auction
	Bids            []Bid
	Ceiling         *ProxyCeiling
}

// NewAuction carries the seller-supplied fields for a draft auction
type NewAuction struct {
	SellerID        string
	Title           string
	StartingPrice   int64
	ReservePrice    int64
	BuyNowPrice     int64
	MinBidIncrement int64
	EndTime         time.Time
	// nil takes the service default, zero turns extension off
	SnipeWindow    *time.Duration
	SnipeExtension *time.Duration
}

// PlaceBid is an incoming bid request. MaxAmount is the optional proxy ceiling;
// Amount may be zero when MaxAmount is set, meaning "the minimum acceptable bid".
type PlaceBid struct {
	AuctionID string
	BidderID  string
	Amount    int64
	MaxAmount int64
}

// HasCeiling reports whether a proxy ceiling was declared
func (p PlaceBid) HasCeiling() bool { return p.MaxAmount > 0 }

// BidResult is returned to the caller of an accepted bid. It never carries a ceiling.
type BidResult struct {
	Bid            Bid           `json:"bid"`
	AcceptedAmount int64         `json:"accepted_amount"`
	CurrentPrice   int64         `json:"current_price"`
	TopBidderID    string        `json:"top_bidder_id"`
	IsWinning      bool          `json:"is_winning"`
	EndTime        time.Time     `json:"end_time"`
	Extended       bool          `json:"extended"`
	Status         AuctionStatus `json:"status"`
}

// AuctionState is the lock-free read snapshot of an auction
type AuctionState struct {
	AuctionID    string        `json:"auction_id"`
	CurrentPrice int64         `json:"current_price"`
	EndTime      time.Time     `json:"end_time"`
	Status       AuctionStatus `json:"status"`
	TopBidderID  string        `json:"top_bidder_id,omitempty"`
	ReserveMet   bool          `json:"reserve_met"`
	BidCount     int           `json:"bid_count"`
}
