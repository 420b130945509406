package proxy

import (
	"testing"
	"time"

	"pigeon-bidding/internal/models"

	"github.com/peterldowns/testy/check"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func auctionAt(price int64, leader string, ceilings ...models.ProxyCeiling) models.Auction {
	a := models.Auction{
		AuctionID:       "auction1",
		SellerID:        "seller",
		StartingPrice:   100,
		CurrentPrice:    price,
		MinBidIncrement: 10,
		TopBidderID:     leader,
		Status:          models.StatusActive,
		Ceilings:        map[string]models.ProxyCeiling{},
	}
	for _, c := range ceilings {
		a.Ceilings[c.BidderID] = c
	}
	return a
}

func TestResolve_PlainBidWithoutRival(t *testing.T) {
	t.Parallel()

	res := Resolve(auctionAt(100, ""), Incoming{BidderID: "A", Amount: 110, At: t0, Sequence: 1})

	check.Equal(t, int64(110), res.Price)
	check.Equal(t, "A", res.Winner)
	check.True(t, res.Ceiling == nil)
	check.Equal(t, []Placement{{BidderID: "A", Amount: 110, Kind: models.BidKindManual}}, res.Placements)
	check.Equal(t, 0, len(res.ProxyPlacements()))
}

func TestResolve_ProxyBidAgainstPlainLeader(t *testing.T) {
	t.Parallel()

	// B registers 200 while A leads at 110 without a ceiling
	res := Resolve(auctionAt(110, "A"), Incoming{BidderID: "B", Amount: 120, Ceiling: 200, At: t0, Sequence: 2})

	check.Equal(t, int64(120), res.Price)
	check.Equal(t, "B", res.Winner)
	check.True(t, res.Ceiling != nil)
	check.Equal(t, int64(200), res.Ceiling.Amount)
	check.Equal(t, int64(2), res.Ceiling.Sequence)
	check.Equal(t, 1, len(res.ProxyPlacements()))
	check.Equal(t, int64(120), res.IncomingAmount())
}

func TestResolve_WeakerProxyCappedAtOwnCeiling(t *testing.T) {
	t.Parallel()

	b := models.ProxyCeiling{BidderID: "B", Amount: 200, RegisteredAt: t0, Sequence: 2}
	res := Resolve(auctionAt(120, "B", b), Incoming{BidderID: "A", Amount: 130, Ceiling: 150, At: t0.Add(time.Minute), Sequence: 3})

	check.Equal(t, int64(150), res.Price)
	check.Equal(t, "B", res.Winner)
	check.Equal(t, []Placement{
		{BidderID: "A", Amount: 130, Kind: models.BidKindProxy},
		{BidderID: "B", Amount: 150, Kind: models.BidKindAuto},
	}, res.Placements)
	check.Equal(t, "A", res.Ceiling.BidderID)
	check.Equal(t, 2, len(res.ProxyPlacements()))
}

func TestResolve_PlainBidAnsweredByRivalCeiling(t *testing.T) {
	t.Parallel()

	b := models.ProxyCeiling{BidderID: "B", Amount: 200, RegisteredAt: t0, Sequence: 2}

	tests := []struct {
		name   string
		amount int64
		price  int64
		winner string
	}{
		{name: "rival answers one increment above", amount: 150, price: 160, winner: "B"},
		{name: "rival capped at its ceiling", amount: 195, price: 200, winner: "B"},
		{name: "bid equal to ceiling keeps rival", amount: 200, price: 200, winner: "B"},
		{name: "bid above ceiling wins", amount: 210, price: 210, winner: "A"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := Resolve(auctionAt(130, "B", b), Incoming{BidderID: "A", Amount: tt.amount, At: t0, Sequence: 4})
			check.Equal(t, tt.price, res.Price)
			check.Equal(t, tt.winner, res.Winner)
			check.Equal(t, tt.amount, res.IncomingAmount())
		})
	}
}

func TestResolve_StrongerProxyBeatsRivalByIncrement(t *testing.T) {
	t.Parallel()

	b := models.ProxyCeiling{BidderID: "B", Amount: 200, RegisteredAt: t0, Sequence: 2}

	tests := []struct {
		name    string
		amount  int64
		ceiling int64
		price   int64
	}{
		{name: "one increment over rival", amount: 140, ceiling: 300, price: 210},
		{name: "capped at own ceiling", amount: 140, ceiling: 205, price: 205},
		{name: "explicit amount above rival", amount: 250, ceiling: 300, price: 250},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := Resolve(auctionAt(130, "B", b), Incoming{BidderID: "A", Amount: tt.amount, Ceiling: tt.ceiling, At: t0, Sequence: 4})
			check.Equal(t, tt.price, res.Price)
			check.Equal(t, "A", res.Winner)
			check.Equal(t, 1, len(res.Placements))
		})
	}
}

func TestResolve_EqualCeilingsGoToEarlierRegistration(t *testing.T) {
	t.Parallel()

	b := models.ProxyCeiling{BidderID: "B", Amount: 200, RegisteredAt: t0, Sequence: 2}
	res := Resolve(auctionAt(130, "B", b), Incoming{BidderID: "A", Amount: 140, Ceiling: 200, At: t0.Add(time.Second), Sequence: 5})

	check.Equal(t, "B", res.Winner)
	check.Equal(t, int64(200), res.Price)
}

func TestResolve_OwnCeilingIsNotARival(t *testing.T) {
	t.Parallel()

	own := models.ProxyCeiling{BidderID: "A", Amount: 300, RegisteredAt: t0, Sequence: 1}
	res := Resolve(auctionAt(120, "A", own), Incoming{BidderID: "A", Amount: 130, Ceiling: 400, At: t0.Add(time.Minute), Sequence: 2})

	check.Equal(t, "A", res.Winner)
	check.Equal(t, int64(130), res.Price)
	check.Equal(t, int64(400), res.Ceiling.Amount)
}

func TestStrongestRival(t *testing.T) {
	t.Parallel()

	ceilings := map[string]models.ProxyCeiling{
		"A": {BidderID: "A", Amount: 500, RegisteredAt: t0, Sequence: 1},
		"B": {BidderID: "B", Amount: 300, RegisteredAt: t0, Sequence: 2},
		"C": {BidderID: "C", Amount: 300, RegisteredAt: t0, Sequence: 3},
		"D": {BidderID: "D", Amount: 300, RegisteredAt: t0.Add(-time.Second), Sequence: 4},
	}

	best, ok := strongestRival(ceilings, "A")
	check.True(t, ok)
	check.Equal(t, "D", best.BidderID)

	delete(ceilings, "D")
	best, ok = strongestRival(ceilings, "A")
	check.True(t, ok)
	check.Equal(t, "B", best.BidderID)

	_, ok = strongestRival(map[string]models.ProxyCeiling{"A": ceilings["A"]}, "A")
	check.False(t, ok)
}
