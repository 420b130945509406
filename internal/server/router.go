package server

import (
	"net/http"

	"pigeon-bidding/internal/metrics"
	"pigeon-bidding/services/bidding/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application. limiter may be nil.
func SetupRouter(service handler.BiddingServiceInterface, events handler.EventSubscriber, limiter *RateLimiter) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	router.Use(metrics.Instrument)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	biddingHandler := handler.NewBiddingHandler(service, events)

	api := router.Group("")
	if limiter != nil {
		api.Use(limiter.Middleware)
	}

	bids := api.Group("/bids")
	{
		bids.POST("", biddingHandler.RecordBidHandler)
	}

	auctions := api.Group("/auctions")
	{
		auctions.POST("", biddingHandler.CreateAuctionHandler)
		auctions.POST("/:auction_id/submit", biddingHandler.SubmitAuctionHandler)
		auctions.POST("/:auction_id/approve", biddingHandler.ApproveAuctionHandler)
		auctions.POST("/:auction_id/cancel", biddingHandler.CancelAuctionHandler)
		auctions.GET("/:auction_id/state", biddingHandler.GetAuctionStateHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/winning", biddingHandler.GetWinningBidHandler)
		auctions.GET("/:auction_id/events", biddingHandler.StreamEventsHandler)
	}

	bidders := api.Group("/bidders")
	{
		bidders.GET("/:bidder_id/auctions", biddingHandler.GetAuctionsByBidderHandler)
	}

	return router
}
