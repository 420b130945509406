package helpers

import "time"

// Request/Response DTOs. Amounts are integers in the smallest currency unit.
type PlaceBidRequest struct {
	AuctionID string `json:"auction_id" binding:"required"`
	BidderID  string `json:"bidder_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"gte=0"`
	MaxAmount int64  `json:"max_amount,omitempty" binding:"gte=0"`
}

type BidResponse struct {
	BidID         string `json:"bid_id"`
	AuctionID     string `json:"auction_id"`
	BidderID      string `json:"bidder_id"`
	Amount        int64  `json:"amount"`
	DisplayAmount string `json:"display_amount"`
	Kind          string `json:"kind"`
	Sequence      int64  `json:"sequence"`
	IsWinning     bool   `json:"is_winning"`
	CreatedAt     string `json:"created_at"`
}

type PlaceBidResponse struct {
	Bid            BidResponse `json:"bid"`
	AcceptedAmount int64       `json:"accepted_amount"`
	CurrentPrice   int64       `json:"current_price"`
	DisplayPrice   string      `json:"display_price"`
	TopBidderID    string      `json:"top_bidder_id"`
	IsWinning      bool        `json:"is_winning"`
	EndTime        string      `json:"end_time"`
	Extended       bool        `json:"extended"`
	Status         string      `json:"status"`
}

type CreateAuctionRequest struct {
	SellerID              string    `json:"seller_id" binding:"required"`
	Title                 string    `json:"title"`
	StartingPrice         int64     `json:"starting_price" binding:"gte=0"`
	ReservePrice          int64     `json:"reserve_price" binding:"gte=0"`
	BuyNowPrice           int64     `json:"buy_now_price" binding:"gte=0"`
	MinBidIncrement       int64     `json:"min_bid_increment" binding:"required,gt=0"`
	EndTime               time.Time `json:"end_time" binding:"required"`
	SnipeWindowSeconds    *int64    `json:"snipe_window_seconds" binding:"omitempty,gte=0"`
	SnipeExtensionSeconds *int64    `json:"snipe_extension_seconds" binding:"omitempty,gte=0"`
}

type AuctionResponse struct {
	AuctionID       string `json:"auction_id"`
	SellerID        string `json:"seller_id"`
	Title           string `json:"title"`
	StartingPrice   int64  `json:"starting_price"`
	CurrentPrice    int64  `json:"current_price"`
	DisplayPrice    string `json:"display_price"`
	BuyNowPrice     int64  `json:"buy_now_price,omitempty"`
	MinBidIncrement int64  `json:"min_bid_increment"`
	EndTime         string `json:"end_time"`
	OriginalEndTime string `json:"original_end_time"`
	Status          string `json:"status"`
	TopBidderID     string `json:"top_bidder_id,omitempty"`
	ReserveMet      bool   `json:"reserve_met"`
	BidCount        int    `json:"bid_count"`
}

type AuctionStateResponse struct {
	AuctionID    string `json:"auction_id"`
	CurrentPrice int64  `json:"current_price"`
	DisplayPrice string `json:"display_price"`
	EndTime      string `json:"end_time"`
	Status       string `json:"status"`
	TopBidderID  string `json:"top_bidder_id,omitempty"`
	ReserveMet   bool   `json:"reserve_met"`
	BidCount     int    `json:"bid_count"`
}
