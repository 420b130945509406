package models

import "time"

// EventType names a domain event handed to the notification sink
type EventType string

const (
	EventBidAccepted       EventType = "BidAccepted"
	EventAuctionExtended   EventType = "AuctionExtended"
	EventProxyBidTriggered EventType = "ProxyBidTriggered"
	EventAuctionSold       EventType = "AuctionSold"
)

// Event is a flat domain event. Fields irrelevant to Type stay zero.
type Event struct {
	Type            EventType `json:"type"`
	AuctionID       string    `json:"auction_id"`
	BidderID        string    `json:"bidder_id,omitempty"`
	Amount          int64     `json:"amount,omitempty"`
	AcceptedAt      time.Time `json:"accepted_at,omitempty"`
	PreviousEndTime time.Time `json:"previous_end_time,omitempty"`
	NewEndTime      time.Time `json:"new_end_time,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func BidAccepted(auctionID, bidderID string, amount int64, at time.Time) Event {
	return Event{Type: EventBidAccepted, AuctionID: auctionID, BidderID: bidderID, Amount: amount, AcceptedAt: at, OccurredAt: at}
}

func AuctionExtended(auctionID string, previous, next, at time.Time) Event {
	return Event{Type: EventAuctionExtended, AuctionID: auctionID, PreviousEndTime: previous, NewEndTime: next, OccurredAt: at}
}

func ProxyBidTriggered(auctionID, bidderID string, resulting int64, at time.Time) Event {
	return Event{Type: EventProxyBidTriggered, AuctionID: auctionID, BidderID: bidderID, Amount: resulting, OccurredAt: at}
}

func AuctionSold(auctionID, bidderID string, amount int64, at time.Time) Event {
	return Event{Type: EventAuctionSold, AuctionID: auctionID, BidderID: bidderID, Amount: amount, OccurredAt: at}
}
