package proxy

// ApplyBuyNow settles a resolution against the buy-now price. An incoming bid that
// reaches buyNow buys at buyNow and no rival ceiling answers it. A resolution whose
// price reaches buyNow only through a proxy sells to the resolved leader, with the
// leading row capped at buyNow. The sale price never exceeds buyNow.
func ApplyBuyNow(res Resolution, in Incoming, buyNow int64) (Resolution, bool) {
	if buyNow <= 0 || len(res.Placements) == 0 {
		return res, false
	}

	if in.Amount >= buyNow {
		first := res.Placements[0]
		first.Amount = buyNow
		return Resolution{
			Price:      buyNow,
			Winner:     in.BidderID,
			Placements: []Placement{first},
		}, true
	}

	if res.Price < buyNow {
		return res, false
	}

	placements := append([]Placement(nil), res.Placements...)
	placements[len(placements)-1].Amount = buyNow
	return Resolution{
		Price:      buyNow,
		Winner:     res.Winner,
		Placements: placements,
		Ceiling:    res.Ceiling,
	}, true
}
