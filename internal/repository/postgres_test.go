package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"pigeon-bidding/internal/biddingerrors"
	"pigeon-bidding/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

var auctionColumnNames = []string{
	"id", "seller_id", "title", "starting_price", "current_price", "reserve_price", "buy_now_price",
	"min_bid_increment", "end_time", "original_end_time", "snipe_window_ms", "snipe_extension_ms",
	"status", "top_bidder_id", "bid_count", "version", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepo(db, 2*time.Second), mock
}

func auctionRow(a models.Auction) *sqlmock.Rows {
	return sqlmock.NewRows(auctionColumnNames).AddRow(
		a.AuctionID, a.SellerID, a.Title, a.StartingPrice, a.CurrentPrice, a.ReservePrice, a.BuyNowPrice,
		a.MinBidIncrement, a.EndTime, a.OriginalEndTime, a.SnipeWindow.Milliseconds(), a.SnipeExtension.Milliseconds(),
		string(a.Status), a.TopBidderID, int64(a.BidCount), a.Version, a.CreatedAt, a.UpdatedAt,
	)
}

func TestPostgresRepo_CreateAuction(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	a := newAuction("auction1", 100, baseTime.Add(time.Hour))

	mock.ExpectExec("insert into auctions").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.CreateAuction(context.Background(), a))

	mock.ExpectExec("insert into auctions").WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.CreateAuction(context.Background(), a), biddingerrors.ErrAuctionExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_GetAuction(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	a := newAuction("auction1", 100, baseTime.Add(time.Hour))
	a.SnipeWindow = 5 * time.Minute
	a.SnipeExtension = 3 * time.Minute
	a.Version = 4

	mock.ExpectQuery("select .* from auctions where id=").WithArgs("auction1").WillReturnRows(auctionRow(a))
	mock.ExpectQuery("from proxy_ceilings where auction_id=").WithArgs("auction1").WillReturnRows(
		sqlmock.NewRows([]string{"bidder_id", "amount", "registered_at", "sequence"}).
			AddRow("bidder1", int64(300), baseTime, int64(2)),
	)

	got, err := repo.GetAuction(context.Background(), "auction1")
	require.NoError(t, err)
	require.Equal(t, int64(4), got.Version)
	require.Equal(t, 5*time.Minute, got.SnipeWindow)
	require.Equal(t, 3*time.Minute, got.SnipeExtension)
	require.Equal(t, models.StatusActive, got.Status)
	require.Equal(t, int64(300), got.Ceilings["bidder1"].Amount)

	mock.ExpectQuery("select .* from auctions where id=").WithArgs("missing").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetAuction(context.Background(), "missing")
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_GetBidsByAuction(t *testing.T) {
	t.Parallel()

	bidColumns := []string{"id", "auction_id", "bidder_id", "amount", "kind", "sequence", "created_at"}

	t.Run("ledger_rows", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("from bids where auction_id=").WithArgs("auction1").WillReturnRows(
			sqlmock.NewRows(bidColumns).
				AddRow("bid1", "auction1", "A", int64(110), "manual", int64(1), baseTime).
				AddRow("bid2", "auction1", "B", int64(120), "auto", int64(2), baseTime),
		)

		bids, err := repo.GetBidsByAuction(context.Background(), "auction1")
		require.NoError(t, err)
		require.Len(t, bids, 2)
		require.Equal(t, models.BidKindAuto, bids[1].Kind)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no_bids", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("from bids where auction_id=").WithArgs("auction2").WillReturnRows(sqlmock.NewRows(bidColumns))
		mock.ExpectQuery("select 1 from auctions").WithArgs("auction2").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

		_, err := repo.GetBidsByAuction(context.Background(), "auction2")
		require.ErrorIs(t, err, biddingerrors.ErrNoBids)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown_auction", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("from bids where auction_id=").WithArgs("ghost").WillReturnRows(sqlmock.NewRows(bidColumns))
		mock.ExpectQuery("select 1 from auctions").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetBidsByAuction(context.Background(), "ghost")
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepo_CommitBid(t *testing.T) {
	t.Parallel()

	a := newAuction("auction1", 100, baseTime.Add(time.Hour))
	a.Version = 3

	commitWithCeiling := func() models.BidCommit {
		c := newCommit(a, "bid1", "bidder1", 110)
		c.Bids = append(c.Bids, models.Bid{BidID: "bid2", AuctionID: "auction1", BidderID: "bidder2", Amount: 120, Kind: models.BidKindAuto, Sequence: 2, CreatedAt: baseTime})
		c.Ceiling = &models.ProxyCeiling{BidderID: "bidder1", Amount: 115, RegisteredAt: baseTime, Sequence: 1}
		return c
	}

	t.Run("single_transaction", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec("set local lock_timeout = '2000ms'").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("select version from auctions where id=.* for update").WithArgs("auction1").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))
		mock.ExpectExec("update auctions").WithArgs("auction1", int64(110), sqlmock.AnyArg(), "active", "bidder1", 1, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("insert into bids").WithArgs("bid1", "auction1", "bidder1", int64(110), "manual", int64(1), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("insert into bids").WithArgs("bid2", "auction1", "bidder2", int64(120), "auto", int64(2), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("insert into proxy_ceilings").WithArgs("auction1", "bidder1", int64(115), sqlmock.AnyArg(), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.CommitBid(context.Background(), commitWithCeiling()))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("version_moved_on", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec("set local lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("select version from auctions").WithArgs("auction1").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(4)))
		mock.ExpectRollback()

		err := repo.CommitBid(context.Background(), commitWithCeiling())
		require.ErrorIs(t, err, biddingerrors.ErrVersionConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row_lock_timeout", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec("set local lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("select version from auctions").WithArgs("auction1").
			WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})
		mock.ExpectRollback()

		err := repo.CommitBid(context.Background(), commitWithCeiling())
		require.ErrorIs(t, err, biddingerrors.ErrLockTimeout)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ledger_insert_fails", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec("set local lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("select version from auctions").WithArgs("auction1").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))
		mock.ExpectExec("update auctions").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("insert into bids").WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := repo.CommitBid(context.Background(), commitWithCeiling())
		require.ErrorIs(t, err, biddingerrors.ErrPersistence)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepo_UpdateStatus(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectExec("update auctions set status=").WithArgs("auction1", int64(2), "closed", baseTime).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(ctx, "auction1", 2, models.StatusClosed, baseTime))

	mock.ExpectExec("update auctions set status=").WithArgs("auction1", int64(2), "closed", baseTime).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select 1 from auctions").WithArgs("auction1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	require.ErrorIs(t, repo.UpdateStatus(ctx, "auction1", 2, models.StatusClosed, baseTime), biddingerrors.ErrVersionConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_GetAuctionsByBidderAndListExpired(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectQuery("from bids where bidder_id=").WithArgs("bidder1").WillReturnRows(auctionRow(newAuction("auction1", 100, baseTime)))
	auctions, err := repo.GetAuctionsByBidder(ctx, "bidder1")
	require.NoError(t, err)
	require.Len(t, auctions, 1)
	require.Nil(t, auctions[0].Ceilings)

	mock.ExpectQuery("from bids where bidder_id=").WithArgs("nobody").WillReturnRows(sqlmock.NewRows(auctionColumnNames))
	_, err = repo.GetAuctionsByBidder(ctx, "nobody")
	require.ErrorIs(t, err, biddingerrors.ErrBidderNoBids)

	mock.ExpectQuery("select id from auctions where status=").WithArgs("active", baseTime).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("auction1").AddRow("auction2"))
	ids, err := repo.ListExpired(ctx, baseTime)
	require.NoError(t, err)
	require.Equal(t, []string{"auction1", "auction2"}, ids)

	require.NoError(t, mock.ExpectationsWereMet())
}
