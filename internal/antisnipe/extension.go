package antisnipe

import (
	"time"

	"pigeon-bidding/internal/models"
)

// Extension records whether an accepted bid pushed the deadline
type Extension struct {
	Previous time.Time
	NewEnd   time.Time
	Extended bool
}

// MaybeExtend returns the deadline after a bid accepted at acceptedAt.
//
// A bid landing within SnipeWindow of EndTime moves the deadline to
// acceptedAt+SnipeExtension, measured from the acceptance instant. The deadline never
// shrinks and there is no cap on the number of extensions. A zero window disables it.
func MaybeExtend(auction models.Auction, acceptedAt time.Time) Extension {
	ext := Extension{Previous: auction.EndTime, NewEnd: auction.EndTime}
	if auction.SnipeWindow <= 0 || auction.SnipeExtension <= 0 {
		return ext
	}
	if auction.EndTime.Sub(acceptedAt) > auction.SnipeWindow {
		return ext
	}
	candidate := acceptedAt.Add(auction.SnipeExtension)
	if !candidate.After(auction.EndTime) {
		return ext
	}
	ext.NewEnd = candidate
	ext.Extended = true
	return ext
}
