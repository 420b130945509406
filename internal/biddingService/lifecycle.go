package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pigeon-bidding/internal/biddingerrors"
	"pigeon-bidding/internal/metrics"
	"pigeon-bidding/internal/models"
	"pigeon-bidding/utils"
)

// CreateAuction stores a new draft auction
func (s *BiddingService) CreateAuction(ctx context.Context, req models.NewAuction) (models.Auction, error) {
	now := s.clock.Now()
	if err := validateNewAuction(req, now); err != nil {
		return models.Auction{}, err
	}

	window, extension := s.snipeWindow, s.snipeExtension
	if req.SnipeWindow != nil {
		window = *req.SnipeWindow
	}
	if req.SnipeExtension != nil {
		extension = *req.SnipeExtension
	}

	auction := models.Auction{
		AuctionID:       utils.GenerateID(),
		SellerID:        req.SellerID,
		Title:           req.Title,
		StartingPrice:   req.StartingPrice,
		CurrentPrice:    req.StartingPrice,
		ReservePrice:    req.ReservePrice,
		BuyNowPrice:     req.BuyNowPrice,
		MinBidIncrement: req.MinBidIncrement,
		EndTime:         req.EndTime.UTC(),
		OriginalEndTime: req.EndTime.UTC(),
		SnipeWindow:     window,
		SnipeExtension:  extension,
		Status:          models.StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
		Ceilings:        map[string]models.ProxyCeiling{},
	}

	if err := s.repo.CreateAuction(ctx, auction); err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction: %w", err)
	}

	utils.Info("CreateAuction: auction created", map[string]any{
		"auction_id": auction.AuctionID,
		"seller_id":  auction.SellerID,
		"end_time":   auction.EndTime,
	})
	return auction, nil
}

func validateNewAuction(req models.NewAuction, now time.Time) error {
	switch {
	case req.SellerID == "":
		return fmt.Errorf("service: %w - missing seller ID", biddingerrors.ErrInvalidAuction)
	case req.StartingPrice < 0:
		return fmt.Errorf("service: %w - negative starting price", biddingerrors.ErrInvalidAuction)
	case req.MinBidIncrement <= 0:
		return fmt.Errorf("service: %w - minimum bid increment must be positive", biddingerrors.ErrInvalidAuction)
	case req.ReservePrice < 0:
		return fmt.Errorf("service: %w - negative reserve price", biddingerrors.ErrInvalidAuction)
	case req.BuyNowPrice < 0 || (req.BuyNowPrice > 0 && req.BuyNowPrice <= req.StartingPrice):
		return fmt.Errorf("service: %w - buy-now price must exceed the starting price", biddingerrors.ErrInvalidAuction)
	case negative(req.SnipeWindow) || negative(req.SnipeExtension):
		return fmt.Errorf("service: %w - negative snipe durations", biddingerrors.ErrInvalidAuction)
	case !req.EndTime.After(now):
		return fmt.Errorf("service: %w - end time must be in the future", biddingerrors.ErrInvalidAuction)
	}
	return nil
}

func negative(d *time.Duration) bool {
	return d != nil && *d < 0
}

// SubmitForApproval moves a draft to pending approval
func (s *BiddingService) SubmitForApproval(ctx context.Context, auctionID string) (models.AuctionState, error) {
	return s.transition(ctx, auctionID, models.StatusPendingApproval, models.StatusDraft)
}

// Approve is the external approval action that opens an auction for bidding
func (s *BiddingService) Approve(ctx context.Context, auctionID string) (models.AuctionState, error) {
	return s.transition(ctx, auctionID, models.StatusActive, models.StatusPendingApproval)
}

// Cancel withdraws an auction that is still accepting bids
func (s *BiddingService) Cancel(ctx context.Context, auctionID string) (models.AuctionState, error) {
	return s.transition(ctx, auctionID, models.StatusCancelled, models.StatusActive, models.StatusEnding)
}

// transition changes the persisted status under the auction lock. from lists the
// effective statuses the move is allowed from.
func (s *BiddingService) transition(ctx context.Context, auctionID string, to models.AuctionStatus, from ...models.AuctionStatus) (models.AuctionState, error) {
	if auctionID == "" {
		return models.AuctionState{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}

	unlock, err := s.locks.Lock(ctx, auctionID, s.lockTimeout)
	if err != nil {
		return models.AuctionState{}, fmt.Errorf("service: transition auction %s: %w", auctionID, err)
	}
	defer unlock()
	ctx = context.WithoutCancel(ctx)

	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.AuctionState{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}

	now := s.clock.Now()
	current := a.EffectiveStatus(now)
	allowed := false
	for _, f := range from {
		if current == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return models.AuctionState{}, fmt.Errorf("service: %w - auction %s is %s, cannot become %s",
			biddingerrors.ErrInvalidTransition, auctionID, current, to)
	}

	if err := s.repo.UpdateStatus(ctx, auctionID, a.Version, to, now); err != nil {
		return models.AuctionState{}, fmt.Errorf("service: failed to update auction %s: %w", auctionID, err)
	}

	utils.Info("auction status changed", map[string]any{
		"auction_id": auctionID,
		"from":       string(current),
		"to":         string(to),
	})

	a.Status = to
	return models.AuctionState{
		AuctionID:    a.AuctionID,
		CurrentPrice: a.CurrentPrice,
		EndTime:      a.EndTime,
		Status:       a.EffectiveStatus(now),
		TopBidderID:  a.TopBidderID,
		ReserveMet:   a.ReserveMet(),
		BidCount:     a.BidCount,
	}, nil
}

// CloseExpired persists the lazily-evaluated close for every active auction past its
// deadline. It only speeds up queries; bid acceptance never depends on it.
func (s *BiddingService) CloseExpired(ctx context.Context) (int, error) {
	ids, err := s.repo.ListExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("service: failed to list expired auctions: %w", err)
	}

	closed := 0
	for _, id := range ids {
		ok, err := s.closeOne(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return closed, err
			}
			utils.Warn("CloseExpired: skipping auction", map[string]any{"auction_id": id, "error": err.Error()})
			continue
		}
		if ok {
			closed++
		}
	}
	if closed > 0 {
		metrics.AuctionsClosed.Add(float64(closed))
		utils.Info("CloseExpired: auctions closed", map[string]any{"count": closed})
	}
	return closed, nil
}

func (s *BiddingService) closeOne(ctx context.Context, auctionID string) (bool, error) {
	unlock, err := s.locks.Lock(ctx, auctionID, s.lockTimeout)
	if err != nil {
		return false, err
	}
	defer unlock()

	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return false, err
	}
	now := s.clock.Now()
	if a.Status != models.StatusActive || a.EffectiveStatus(now) != models.StatusClosed {
		return false, nil
	}
	if err := s.repo.UpdateStatus(ctx, auctionID, a.Version, models.StatusClosed, now); err != nil {
		return false, err
	}
	return true, nil
}

// StartSweeper runs CloseExpired every interval until the returned stop function is called
func (s *BiddingService) StartSweeper(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.CloseExpired(ctx); err != nil && ctx.Err() == nil {
					utils.Error("sweeper: close expired failed", map[string]any{"error": err.Error()})
				}
			}
		}
	}()
	return cancel
}
