package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bidding "pigeon-bidding/internal/biddingService"
	"pigeon-bidding/internal/config"
	"pigeon-bidding/internal/metrics"
	"pigeon-bidding/internal/models"
	"pigeon-bidding/internal/notify"
	"pigeon-bidding/internal/repository"
	"pigeon-bidding/internal/server"
	"pigeon-bidding/internal/validator"
	"pigeon-bidding/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.Fatal("failed to load config", map[string]any{"error": err.Error()})
	}
	if err := utils.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		utils.Fatal("invalid log settings", map[string]any{"error": err.Error()})
	}
	metrics.Init()

	repo, closeRepo := openRepository(cfg)
	defer closeRepo()

	stream := notify.NewStream()
	biddingSvc := bidding.NewBiddingService(repo,
		bidding.WithLockTimeout(cfg.Bidding.LockTimeout),
		bidding.WithSnipeDefaults(cfg.Bidding.SnipeWindow, cfg.Bidding.SnipeExtension),
		bidding.WithEligibility(denyList(cfg.Bidding.IneligibleBidders)),
		bidding.WithNotifier(notify.Multi{notify.LogNotifier{}, stream}),
	)
	stopSweeper := biddingSvc.StartSweeper(cfg.Bidding.SweepInterval)
	defer stopSweeper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var limiter *server.RateLimiter
	if cfg.RateLimit.PerSecond > 0 {
		limiter = server.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
		go limiter.RunJanitor(ctx, time.Minute)
	}

	router := server.SetupRouter(biddingSvc, stream, limiter)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	utils.Info("starting auction server", map[string]any{"addr": srv.Addr, "store": cfg.Store.Driver})

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Fatal("failed to start server", map[string]any{"error": err.Error()})
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	utils.Info("shutting down", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("graceful shutdown failed", map[string]any{"error": err.Error()})
	}
	utils.Info("stopped", nil)
}

func openRepository(cfg config.Config) (repository.AuctionDB, func()) {
	if cfg.Store.Driver == "postgres" {
		repo, err := repository.OpenPostgres(cfg.Store.DSN, cfg.Bidding.LockTimeout)
		if err != nil {
			utils.Fatal("failed to open postgres", map[string]any{"error": err.Error()})
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := repo.Migrate(ctx); err != nil {
			utils.Fatal("failed to migrate schema", map[string]any{"error": err.Error()})
		}
		return repo, func() { _ = repo.Close() }
	}

	repo := repository.NewMemoryRepo()
	prepopulateAuctions(repo, time.Now().UTC(), cfg.Bidding.SnipeWindow, cfg.Bidding.SnipeExtension)
	return repo, func() {}
}

// prepopulateAuctions adds sample open auctions to the in-memory repo
func prepopulateAuctions(repo *repository.MemoryRepo, now time.Time, window, extension time.Duration) {
	auctions := []models.Auction{
		{AuctionID: "auction1", SellerID: "loft-janssen", Title: "Janssen racing cock 2023", StartingPrice: 10000, ReservePrice: 25000, MinBidIncrement: 1000, EndTime: now.Add(24 * time.Hour)},
		{AuctionID: "auction2", SellerID: "loft-vandenabeele", Title: "Breeding pair, Sion line", StartingPrice: 20000, BuyNowPrice: 80000, MinBidIncrement: 2000, EndTime: now.Add(48 * time.Hour)},
		{AuctionID: "auction3", SellerID: "loft-janssen", Title: "Young bird, 2024 ring", StartingPrice: 5000, MinBidIncrement: 500, EndTime: now.Add(2 * time.Hour)},
	}

	for _, a := range auctions {
		a.CurrentPrice = a.StartingPrice
		a.OriginalEndTime = a.EndTime
		a.SnipeWindow = window
		a.SnipeExtension = extension
		a.Status = models.StatusActive
		a.CreatedAt = now
		a.UpdatedAt = now
		repo.AddAuction(a)
	}
}

func denyList(ids []string) validator.EligibilityChecker {
	if len(ids) == 0 {
		return validator.AllowAll
	}
	denied := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		denied[id] = struct{}{}
	}
	return validator.EligibilityFunc(func(_ context.Context, bidderID string) (bool, error) {
		_, blocked := denied[bidderID]
		return !blocked, nil
	})
}
