package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pigeon-bidding/internal/biddingerrors"
	"pigeon-bidding/internal/models"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// AuctionDB defines the auction and bid ledger storage for the bidding engine
type AuctionDB interface {
	CreateAuction(ctx context.Context, auction models.Auction) error
	GetAuction(ctx context.Context, auctionID string) (models.Auction, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	CommitBid(ctx context.Context, commit models.BidCommit) error
	UpdateStatus(ctx context.Context, auctionID string, expectedVersion int64, status models.AuctionStatus, at time.Time) error
	GetAuctionsByBidder(ctx context.Context, bidderID string) ([]models.Auction, error)
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu             sync.RWMutex
	auctions       map[string]models.Auction // key: auctionID -> value: committed aggregate
	bids           map[string][]models.Bid   // key: auctionID -> value: ledger in sequence order
	bidderAuctions map[string][]string       // key: bidderID -> value: auctionIDs bid on
}

var _ AuctionDB = (*MemoryRepo)(nil)

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:       make(map[string]models.Auction),
		bids:           make(map[string][]models.Bid),
		bidderAuctions: make(map[string][]string),
	}
}

// CreateAuction stores a new auction
func (r *MemoryRepo) CreateAuction(_ context.Context, auction models.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if auction.AuctionID == "" {
		return fmt.Errorf("create auction: %w - empty auction id", biddingerrors.ErrInvalidAuction)
	}
	if _, ok := r.auctions[auction.AuctionID]; ok {
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, biddingerrors.ErrAuctionExists)
	}
	r.auctions[auction.AuctionID] = auction.Clone()
	return nil
}

// GetAuction returns a private copy of the committed aggregate, ceilings included
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (models.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return a.Clone(), nil
}

// GetBidsByAuction returns the ledger of an auction in acceptance order
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	bids := r.bids[auctionID]
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return append([]models.Bid(nil), bids...), nil
}

// CommitBid applies the auction row, ledger rows and ceiling of one accepted bid
// at once, or nothing when the stored version moved on
func (r *MemoryRepo) CommitBid(_ context.Context, commit models.BidCommit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := commit.Auction.AuctionID
	stored, ok := r.auctions[id]
	if !ok {
		return fmt.Errorf("commit bid for auction %s: %w", id, biddingerrors.ErrAuctionNotFound)
	}
	if stored.Version != commit.ExpectedVersion {
		return fmt.Errorf("commit bid for auction %s: %w - expected version %d, found %d",
			id, biddingerrors.ErrVersionConflict, commit.ExpectedVersion, stored.Version)
	}

	next := commit.Auction.Clone()
	next.Version = commit.ExpectedVersion + 1
	if commit.Ceiling != nil {
		next.Ceilings[commit.Ceiling.BidderID] = *commit.Ceiling
	}
	r.auctions[id] = next
	r.bids[id] = append(r.bids[id], commit.Bids...)

	for _, b := range commit.Bids {
		r.indexBidder(b.BidderID, id)
	}
	return nil
}

func (r *MemoryRepo) indexBidder(bidderID, auctionID string) {
	for _, id := range r.bidderAuctions[bidderID] {
		if id == auctionID {
			return
		}
	}
	r.bidderAuctions[bidderID] = append(r.bidderAuctions[bidderID], auctionID)
}

// UpdateStatus moves an auction to a new persisted status
func (r *MemoryRepo) UpdateStatus(_ context.Context, auctionID string, expectedVersion int64, status models.AuctionStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.auctions[auctionID]
	if !ok {
		return fmt.Errorf("update status of auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("update status of auction %s: %w", auctionID, biddingerrors.ErrVersionConflict)
	}
	stored.Status = status
	stored.UpdatedAt = at
	stored.Version++
	r.auctions[auctionID] = stored
	return nil
}

// GetAuctionsByBidder returns all auctions a bidder has a ledger row on
func (r *MemoryRepo) GetAuctionsByBidder(_ context.Context, bidderID string) ([]models.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.bidderAuctions[bidderID]
	if !ok || len(ids) == 0 {
		return nil, fmt.Errorf("get auctions for bidder %s: %w", bidderID, biddingerrors.ErrBidderNoBids)
	}

	auctions := make([]models.Auction, 0, len(ids))
	for _, id := range ids {
		if a, exists := r.auctions[id]; exists {
			a.Ceilings = nil
			auctions = append(auctions, a)
		}
	}
	return auctions, nil
}

// ListExpired returns active auctions whose deadline is at or before now
func (r *MemoryRepo) ListExpired(_ context.Context, now time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, a := range r.auctions {
		if a.Status == models.StatusActive && !now.Before(a.EndTime) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// AddAuction stores an auction as-is, overwriting any previous one. Intended for seeding and tests.
func (r *MemoryRepo) AddAuction(auction models.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if auction.Ceilings == nil {
		auction.Ceilings = map[string]models.ProxyCeiling{}
	}
	r.auctions[auction.AuctionID] = auction.Clone()
}
