package proxy

import (
	"time"

	"pigeon-bidding/internal/models"
)

// Incoming is a validated bid about to be resolved against the standing ceilings.
type Incoming struct {
	BidderID string
	Amount   int64 // effective amount, already checked against the minimum
	Ceiling  int64 // zero for a plain bid
	At       time.Time
	Sequence int64 // ledger sequence the incoming row will take
}

// Placement is one ledger row produced by a resolution.
type Placement struct {
	BidderID string
	Amount   int64
	Kind     models.BidKind
}

// Resolution is the outcome of one resolution round.
type Resolution struct {
	Price      int64
	Winner     string
	Placements []Placement          // incoming row first, then an optional auto response
	Ceiling    *models.ProxyCeiling // ceiling to register for the incoming bidder, nil for plain bids
}

// IncomingAmount is the amount recorded on the incoming bidder's row.
func (r Resolution) IncomingAmount() int64 {
	if len(r.Placements) == 0 {
		return 0
	}
	return r.Placements[0].Amount
}

// ProxyPlacements returns the rows placed by a ceiling rather than typed by a bidder.
func (r Resolution) ProxyPlacements() []Placement {
	var out []Placement
	for _, p := range r.Placements {
		if p.Kind == models.BidKindProxy || p.Kind == models.BidKindAuto {
			out = append(out, p)
		}
	}
	return out
}

// Resolve computes the visible price and the leader after an incoming bid.
//
// Processing flow:
//  1. Find the strongest standing ceiling held by another bidder (the rival).
//  2. Plain bid: a rival whose ceiling reaches the bid answers at min(ceiling, amount+increment)
//     and keeps the lead. Otherwise the bidder leads at the bid amount.
//  3. Proxy bid: the bidder's ceiling is registered (replacing any previous one).
//     A weaker rival is beaten at max(amount, min(ceiling, rivalCeiling+increment)).
//     A rival at or above the new ceiling keeps the lead at the new ceiling; equal
//     ceilings go to the earlier registration.
//
// Exactly one round is performed per call. Rival ceilings never appear in the result
// except as the price needed to beat the incoming bid.
func Resolve(auction models.Auction, in Incoming) Resolution {
	inc := auction.MinBidIncrement
	rival, hasRival := strongestRival(auction.Ceilings, in.BidderID)

	if in.Ceiling == 0 {
		if hasRival && rival.Amount >= in.Amount {
			price := min(rival.Amount, in.Amount+inc)
			return Resolution{
				Price:  price,
				Winner: rival.BidderID,
				Placements: []Placement{
					{BidderID: in.BidderID, Amount: in.Amount, Kind: models.BidKindManual},
					{BidderID: rival.BidderID, Amount: price, Kind: models.BidKindAuto},
				},
			}
		}
		return Resolution{
			Price:      in.Amount,
			Winner:     in.BidderID,
			Placements: []Placement{{BidderID: in.BidderID, Amount: in.Amount, Kind: models.BidKindManual}},
		}
	}

	ceiling := &models.ProxyCeiling{
		BidderID:     in.BidderID,
		Amount:       in.Ceiling,
		RegisteredAt: in.At,
		Sequence:     in.Sequence,
	}

	switch {
	case !hasRival:
		return Resolution{
			Price:      in.Amount,
			Winner:     in.BidderID,
			Placements: []Placement{{BidderID: in.BidderID, Amount: in.Amount, Kind: models.BidKindProxy}},
			Ceiling:    ceiling,
		}
	case rival.Amount < in.Ceiling:
		price := max(in.Amount, min(in.Ceiling, rival.Amount+inc))
		return Resolution{
			Price:      price,
			Winner:     in.BidderID,
			Placements: []Placement{{BidderID: in.BidderID, Amount: price, Kind: models.BidKindProxy}},
			Ceiling:    ceiling,
		}
	default:
		return Resolution{
			Price:  in.Ceiling,
			Winner: rival.BidderID,
			Placements: []Placement{
				{BidderID: in.BidderID, Amount: in.Amount, Kind: models.BidKindProxy},
				{BidderID: rival.BidderID, Amount: in.Ceiling, Kind: models.BidKindAuto},
			},
			Ceiling: ceiling,
		}
	}
}

// strongestRival picks the highest ceiling not held by bidderID. Equal ceilings go to
// the earliest registration.
func strongestRival(ceilings map[string]models.ProxyCeiling, bidderID string) (models.ProxyCeiling, bool) {
	var best models.ProxyCeiling
	found := false
	for id, c := range ceilings {
		if id == bidderID {
			continue
		}
		if !found || outranks(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func outranks(a, b models.ProxyCeiling) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	if !a.RegisteredAt.Equal(b.RegisteredAt) {
		return a.RegisteredAt.Before(b.RegisteredAt)
	}
	return a.Sequence < b.Sequence
}
