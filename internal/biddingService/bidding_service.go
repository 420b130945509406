package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pigeon-bidding/internal/antisnipe"
	"pigeon-bidding/internal/biddingerrors"
	"pigeon-bidding/internal/clock"
	"pigeon-bidding/internal/metrics"
	"pigeon-bidding/internal/models"
	"pigeon-bidding/internal/notify"
	"pigeon-bidding/internal/proxy"
	"pigeon-bidding/internal/repository"
	"pigeon-bidding/internal/validator"
	"pigeon-bidding/utils"
)

const (
	DefaultLockTimeout    = 2 * time.Second
	DefaultSnipeWindow    = 5 * time.Minute
	DefaultSnipeExtension = 5 * time.Minute
)

// BiddingService is the bid acceptance coordinator. Writes to one auction are
// serialized by a per-auction lock; different auctions proceed in parallel.
type BiddingService struct {
	repo           repository.AuctionDB
	clock          clock.Clock
	validator      *validator.Validator
	notifier       notify.Notifier
	locks          *keyedLocker
	lockTimeout    time.Duration
	snipeWindow    time.Duration
	snipeExtension time.Duration
}

// Option configures a BiddingService
type Option func(*BiddingService)

func WithClock(c clock.Clock) Option {
	return func(s *BiddingService) { s.clock = c }
}

func WithEligibility(e validator.EligibilityChecker) Option {
	return func(s *BiddingService) { s.validator = validator.New(e) }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *BiddingService) { s.notifier = n }
}

func WithLockTimeout(d time.Duration) Option {
	return func(s *BiddingService) { s.lockTimeout = d }
}

// WithSnipeDefaults sets the window and extension given to auctions created without them
func WithSnipeDefaults(window, extension time.Duration) Option {
	return func(s *BiddingService) {
		s.snipeWindow = window
		s.snipeExtension = extension
	}
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, opts ...Option) *BiddingService {
	s := &BiddingService{
		repo:           repo,
		clock:          clock.System{},
		validator:      validator.New(nil),
		notifier:       notify.Discard{},
		locks:          newKeyedLocker(),
		lockTimeout:    DefaultLockTimeout,
		snipeWindow:    DefaultSnipeWindow,
		snipeExtension: DefaultSnipeExtension,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBid validates, resolves, extends, commits and announces one bid as a single
// unit. On error nothing is written and no event is emitted.
func (s *BiddingService) PlaceBid(ctx context.Context, req models.PlaceBid) (models.BidResult, error) {
	if err := validator.CheckStructure(req); err != nil {
		s.rejected(req, err)
		return models.BidResult{}, fmt.Errorf("service: %w", err)
	}

	waitStart := time.Now()
	unlock, err := s.locks.Lock(ctx, req.AuctionID, s.lockTimeout)
	if err != nil {
		s.rejected(req, err)
		return models.BidResult{}, fmt.Errorf("service: bid on auction %s: %w", req.AuctionID, err)
	}
	defer unlock()
	waited := time.Since(waitStart)
	metrics.ObserveLockWait(waited)
	utils.Debug("PlaceBid: auction lock acquired", map[string]any{"auction_id": req.AuctionID, "wait": waited.String()})

	// past this point the outcome is decided and must run to completion
	ctx = context.WithoutCancel(ctx)

	result, events, err := s.acceptLocked(ctx, req)
	if err != nil {
		s.rejected(req, err)
		return models.BidResult{}, err
	}

	s.notifier.Publish(ctx, events...)
	s.accepted(req, result, events)
	return result, nil
}

func (s *BiddingService) acceptLocked(ctx context.Context, req models.PlaceBid) (models.BidResult, []models.Event, error) {
	auction, err := s.repo.GetAuction(ctx, req.AuctionID)
	if err != nil {
		return models.BidResult{}, nil, fmt.Errorf("service: failed to load auction %s: %w", req.AuctionID, err)
	}

	now := s.clock.Now()
	commit, result, events, err := s.decide(ctx, auction, req, now)
	if err != nil {
		return models.BidResult{}, nil, fmt.Errorf("service: %w", err)
	}

	if err := s.commit(ctx, commit); err != nil {
		return models.BidResult{}, nil, fmt.Errorf("service: failed to record bid on auction %s by bidder %s: %w", req.AuctionID, req.BidderID, err)
	}
	return result, events, nil
}

// decide runs validator, resolver, buy-now check and extension controller against
// freshly loaded state and builds the commit without writing anything
func (s *BiddingService) decide(ctx context.Context, auction models.Auction, req models.PlaceBid, now time.Time) (models.BidCommit, models.BidResult, []models.Event, error) {
	amount := validator.EffectiveAmount(auction, req)
	if err := s.validator.Validate(ctx, auction, req, amount, now); err != nil {
		return models.BidCommit{}, models.BidResult{}, nil, err
	}

	seq := int64(auction.BidCount) + 1
	in := proxy.Incoming{
		BidderID: req.BidderID,
		Amount:   amount,
		Ceiling:  req.MaxAmount,
		At:       now,
		Sequence: seq,
	}
	// a sale settles at exactly the buy-now price
	res, sold := proxy.ApplyBuyNow(proxy.Resolve(auction, in), in, auction.BuyNowPrice)
	if res.Price < auction.CurrentPrice {
		return models.BidCommit{}, models.BidResult{}, nil, fmt.Errorf("resolution lowered price of auction %s from %d to %d", auction.AuctionID, auction.CurrentPrice, res.Price)
	}

	next := auction.Clone()
	bids := make([]models.Bid, 0, len(res.Placements))
	for i, p := range res.Placements {
		bids = append(bids, models.Bid{
			BidID:     utils.GenerateSortableID(now),
			AuctionID: auction.AuctionID,
			BidderID:  p.BidderID,
			Amount:    p.Amount,
			Kind:      p.Kind,
			Sequence:  seq + int64(i),
			CreatedAt: now,
		})
	}
	bids = models.MarkWinning(bids)

	next.CurrentPrice = res.Price
	next.TopBidderID = res.Winner
	next.BidCount += len(bids)
	next.UpdatedAt = now
	if res.Ceiling != nil {
		next.Ceilings[res.Ceiling.BidderID] = *res.Ceiling
	}

	events := []models.Event{models.BidAccepted(auction.AuctionID, req.BidderID, res.IncomingAmount(), now)}
	for _, p := range res.ProxyPlacements() {
		events = append(events, models.ProxyBidTriggered(auction.AuctionID, p.BidderID, p.Amount, now))
	}

	extended := false
	if sold {
		next.Status = models.StatusSold
		events = append(events, models.AuctionSold(auction.AuctionID, res.Winner, res.Price, now))
	} else if ext := antisnipe.MaybeExtend(auction, now); ext.Extended {
		next.EndTime = ext.NewEnd
		extended = true
		events = append(events, models.AuctionExtended(auction.AuctionID, ext.Previous, ext.NewEnd, now))
	}

	commit := models.BidCommit{
		ExpectedVersion: auction.Version,
		Auction:         next,
		Bids:            bids,
		Ceiling:         res.Ceiling,
	}
	result := models.BidResult{
		Bid:            bids[0],
		AcceptedAmount: res.IncomingAmount(),
		CurrentPrice:   res.Price,
		TopBidderID:    res.Winner,
		IsWinning:      res.Winner == req.BidderID,
		EndTime:        next.EndTime,
		Extended:       extended,
		Status:         next.EffectiveStatus(now),
	}
	return commit, result, events, nil
}

// commit writes the decided state. A store failure is retried once; if the retry
// finds the version already advanced, the ledger tells whether the first attempt landed.
func (s *BiddingService) commit(ctx context.Context, commit models.BidCommit) error {
	err := s.repo.CommitBid(ctx, commit)
	if err == nil || !retryable(err) {
		return err
	}

	metrics.CommitRetries.Inc()
	utils.Warn("PlaceBid: commit failed, retrying once", map[string]any{
		"auction_id": commit.Auction.AuctionID,
		"error":      err.Error(),
	})

	retryErr := s.repo.CommitBid(ctx, commit)
	if retryErr == nil {
		return nil
	}
	if errors.Is(retryErr, biddingerrors.ErrVersionConflict) && s.landed(ctx, commit) {
		return nil
	}
	return fmt.Errorf("%w: %v", biddingerrors.ErrPersistence, retryErr)
}

func retryable(err error) bool {
	return !errors.Is(err, biddingerrors.ErrAuctionNotFound) &&
		!errors.Is(err, biddingerrors.ErrVersionConflict) &&
		!errors.Is(err, biddingerrors.ErrLockTimeout)
}

func (s *BiddingService) landed(ctx context.Context, commit models.BidCommit) bool {
	if len(commit.Bids) == 0 {
		return false
	}
	bids, err := s.repo.GetBidsByAuction(ctx, commit.Auction.AuctionID)
	if err != nil {
		return false
	}
	want := commit.Bids[0].BidID
	for _, b := range bids {
		if b.BidID == want {
			return true
		}
	}
	return false
}

func (s *BiddingService) rejected(req models.PlaceBid, err error) {
	reason := biddingerrors.ReasonOf(err)
	metrics.BidsRejected.WithLabelValues(string(reason)).Inc()
	fields := map[string]any{
		"auction_id": req.AuctionID,
		"bidder_id":  req.BidderID,
		"amount":     req.Amount,
		"reason":     string(reason),
		"error":      err.Error(),
	}
	switch {
	case biddingerrors.IsValidation(err):
		utils.Info("PlaceBid: bid rejected", fields)
	case errors.Is(err, biddingerrors.ErrLockTimeout), errors.Is(err, biddingerrors.ErrVersionConflict):
		utils.Warn("PlaceBid: auction busy", fields)
	default:
		utils.Error("PlaceBid: bid failed", fields)
	}
}

func (s *BiddingService) accepted(req models.PlaceBid, result models.BidResult, events []models.Event) {
	metrics.BidsAccepted.Inc()
	for _, e := range events {
		switch e.Type {
		case models.EventAuctionExtended:
			metrics.AuctionExtensions.Inc()
		case models.EventProxyBidTriggered:
			metrics.ProxyBidsTriggered.Inc()
		case models.EventAuctionSold:
			metrics.AuctionsSold.Inc()
		}
	}
	utils.Info("PlaceBid: bid accepted", map[string]any{
		"auction_id":    req.AuctionID,
		"bidder_id":     req.BidderID,
		"bid_id":        result.Bid.BidID,
		"amount":        result.AcceptedAmount,
		"current_price": result.CurrentPrice,
		"top_bidder_id": result.TopBidderID,
		"extended":      result.Extended,
		"status":        string(result.Status),
	})
}

// GetCurrentState returns a lock-free snapshot. Price and leader come from the same commit.
func (s *BiddingService) GetCurrentState(ctx context.Context, auctionID string) (models.AuctionState, error) {
	if auctionID == "" {
		return models.AuctionState{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.AuctionState{}, fmt.Errorf("service: failed to get state of auction %s: %w", auctionID, err)
	}

	return models.AuctionState{
		AuctionID:    a.AuctionID,
		CurrentPrice: a.CurrentPrice,
		EndTime:      a.EndTime,
		Status:       a.EffectiveStatus(s.clock.Now()),
		TopBidderID:  a.TopBidderID,
		ReserveMet:   a.ReserveMet(),
		BidCount:     a.BidCount,
	}, nil
}

// GetBidsForAuction returns the ledger with the current leader flagged
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}

	return models.MarkWinning(bids), nil
}

// GetWinningBid returns the highest-ordered ledger row
func (s *BiddingService) GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error) {
	bids, err := s.GetBidsForAuction(ctx, auctionID)
	if err != nil {
		return models.Bid{}, err
	}
	for _, b := range bids {
		if b.IsWinning {
			return b, nil
		}
	}
	return models.Bid{}, fmt.Errorf("service: auction %s: %w", auctionID, biddingerrors.ErrNoBids)
}

// GetAuctionsByBidder returns all auctions a bidder has placed bids on
func (s *BiddingService) GetAuctionsByBidder(ctx context.Context, bidderID string) ([]models.Auction, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("service: %w - empty bidder ID", biddingerrors.ErrInvalidBid)
	}

	auctions, err := s.repo.GetAuctionsByBidder(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for bidder %s: %w", bidderID, err)
	}

	return auctions, nil
}
