package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	bidding "pigeon-bidding/internal/biddingService"
	"pigeon-bidding/internal/models"
	"pigeon-bidding/internal/notify"
	"pigeon-bidding/internal/repository"
	"pigeon-bidding/internal/server"

	"github.com/gin-gonic/gin"
)

// SetupTestRouter initializes the router with an empty in-memory repository for integration testing.
func SetupTestRouter() *gin.Engine {
	return SetupTestRouterWithAuctions()
}

// SetupTestRouterWithAuctions initializes the router and seeds the repo with open auctions.
func SetupTestRouterWithAuctions(auctions ...models.Auction) *gin.Engine {
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryRepo()

	for _, a := range auctions {
		repo.AddAuction(a)
	}

	stream := notify.NewStream()
	service := bidding.NewBiddingService(repo, bidding.WithNotifier(stream))
	return server.SetupRouter(service, stream, nil)
}

// openAuction builds an active auction ending in an hour, outside any snipe window
func openAuction(auctionID string, startingPrice, increment int64) models.Auction {
	now := time.Now().UTC()
	return models.Auction{
		AuctionID:       auctionID,
		SellerID:        "seller1",
		Title:           auctionID + " title",
		StartingPrice:   startingPrice,
		CurrentPrice:    startingPrice,
		MinBidIncrement: increment,
		EndTime:         now.Add(time.Hour),
		OriginalEndTime: now.Add(time.Hour),
		SnipeWindow:     5 * time.Minute,
		SnipeExtension:  5 * time.Minute,
		Status:          models.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		if err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}

		if w.Code == 201 {
			resp = resp["data"].(map[string]any)
		}
	}

	return resp, w
}
