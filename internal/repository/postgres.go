package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pigeon-bidding/internal/biddingerrors"
	"pigeon-bidding/internal/models"
)

// lock_not_available, raised when lock_timeout expires
const pgLockNotAvailable = "55P03"

// PostgresRepo stores auctions, the bid ledger and proxy ceilings in PostgreSQL.
// CommitBid takes a row lock on the auction so several nodes can share one database.
type PostgresRepo struct {
	db          *sql.DB
	lockTimeout time.Duration
}

var _ AuctionDB = (*PostgresRepo)(nil)

// OpenPostgres opens a pgx-backed pool for dsn
func OpenPostgres(dsn string, lockTimeout time.Duration) (*PostgresRepo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return NewPostgresRepo(db, lockTimeout), nil
}

// NewPostgresRepo wraps an existing pool
func NewPostgresRepo(db *sql.DB, lockTimeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, lockTimeout: lockTimeout}
}

func (s *PostgresRepo) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable
func (s *PostgresRepo) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const schema = `
create table if not exists auctions (
	id                 text primary key,
	seller_id          text not null,
	title              text not null default '',
	starting_price     bigint not null,
	current_price      bigint not null,
	reserve_price      bigint not null default 0,
	buy_now_price      bigint not null default 0,
	min_bid_increment  bigint not null,
	end_time           timestamptz not null,
	original_end_time  timestamptz not null,
	snipe_window_ms    bigint not null,
	snipe_extension_ms bigint not null,
	status             text not null,
	top_bidder_id      text not null default '',
	bid_count          integer not null default 0,
	version            bigint not null default 0,
	created_at         timestamptz not null,
	updated_at         timestamptz not null
);

create index if not exists idx_auctions_status_end on auctions(status, end_time);

create table if not exists bids (
	id         text primary key,
	auction_id text not null references auctions(id),
	bidder_id  text not null,
	amount     bigint not null,
	kind       text not null,
	sequence   bigint not null,
	created_at timestamptz not null,
	unique (auction_id, sequence)
);

create index if not exists idx_bids_bidder on bids(bidder_id);

create table if not exists proxy_ceilings (
	auction_id    text not null references auctions(id),
	bidder_id     text not null,
	amount        bigint not null,
	registered_at timestamptz not null,
	sequence      bigint not null,
	primary key (auction_id, bidder_id)
);
`

// Migrate creates the tables when they are missing
func (s *PostgresRepo) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

const auctionColumns = `id, seller_id, title, starting_price, current_price, reserve_price, buy_now_price,
	min_bid_increment, end_time, original_end_time, snipe_window_ms, snipe_extension_ms,
	status, top_bidder_id, bid_count, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (models.Auction, error) {
	var (
		a                  models.Auction
		status             string
		windowMS, extendMS int64
	)
	err := row.Scan(&a.AuctionID, &a.SellerID, &a.Title, &a.StartingPrice, &a.CurrentPrice, &a.ReservePrice,
		&a.BuyNowPrice, &a.MinBidIncrement, &a.EndTime, &a.OriginalEndTime, &windowMS, &extendMS,
		&status, &a.TopBidderID, &a.BidCount, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return models.Auction{}, err
	}
	a.Status = models.AuctionStatus(status)
	a.SnipeWindow = time.Duration(windowMS) * time.Millisecond
	a.SnipeExtension = time.Duration(extendMS) * time.Millisecond
	return a, nil
}

func (s *PostgresRepo) CreateAuction(ctx context.Context, a models.Auction) error {
	res, err := s.db.ExecContext(ctx, `
		insert into auctions(`+auctionColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		on conflict (id) do nothing
	`, a.AuctionID, a.SellerID, a.Title, a.StartingPrice, a.CurrentPrice, a.ReservePrice, a.BuyNowPrice,
		a.MinBidIncrement, a.EndTime, a.OriginalEndTime, a.SnipeWindow.Milliseconds(), a.SnipeExtension.Milliseconds(),
		string(a.Status), a.TopBidderID, a.BidCount, a.Version, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return persistenceErr("create auction "+a.AuctionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("create auction %s: %w", a.AuctionID, biddingerrors.ErrAuctionExists)
	}
	return nil
}

func (s *PostgresRepo) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	a, err := scanAuction(s.db.QueryRowContext(ctx, `select `+auctionColumns+` from auctions where id=$1`, auctionID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return models.Auction{}, persistenceErr("get auction "+auctionID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		select bidder_id, amount, registered_at, sequence
		from proxy_ceilings where auction_id=$1
	`, auctionID)
	if err != nil {
		return models.Auction{}, persistenceErr("get ceilings "+auctionID, err)
	}
	defer rows.Close()

	a.Ceilings = map[string]models.ProxyCeiling{}
	for rows.Next() {
		var c models.ProxyCeiling
		if err := rows.Scan(&c.BidderID, &c.Amount, &c.RegisteredAt, &c.Sequence); err != nil {
			return models.Auction{}, persistenceErr("scan ceiling", err)
		}
		a.Ceilings[c.BidderID] = c
	}
	if err := rows.Err(); err != nil {
		return models.Auction{}, persistenceErr("iterate ceilings", err)
	}
	return a, nil
}

func (s *PostgresRepo) GetBidsByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, auction_id, bidder_id, amount, kind, sequence, created_at
		from bids where auction_id=$1
		order by sequence asc
	`, auctionID)
	if err != nil {
		return nil, persistenceErr("get bids "+auctionID, err)
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		var (
			b    models.Bid
			kind string
		)
		if err := rows.Scan(&b.BidID, &b.AuctionID, &b.BidderID, &b.Amount, &kind, &b.Sequence, &b.CreatedAt); err != nil {
			return nil, persistenceErr("scan bid", err)
		}
		b.Kind = models.BidKind(kind)
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate bids", err)
	}
	if len(bids) == 0 {
		if err := s.exists(ctx, auctionID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return bids, nil
}

func (s *PostgresRepo) exists(ctx context.Context, auctionID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `select 1 from auctions where id=$1`, auctionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return persistenceErr("lookup auction "+auctionID, err)
	}
	return nil
}

// CommitBid writes the auction row, ledger rows and ceiling in one transaction
// holding the auction row lock
func (s *PostgresRepo) CommitBid(ctx context.Context, commit models.BidCommit) error {
	a := commit.Auction
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistenceErr("begin commit "+a.AuctionID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.lockTimeout > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("set local lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
			return persistenceErr("set lock timeout", err)
		}
	}

	var version int64
	err = tx.QueryRowContext(ctx, `select version from auctions where id=$1 for update`, a.AuctionID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("commit bid for auction %s: %w", a.AuctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return persistenceErr("lock auction "+a.AuctionID, err)
	}
	if version != commit.ExpectedVersion {
		return fmt.Errorf("commit bid for auction %s: %w - expected version %d, found %d",
			a.AuctionID, biddingerrors.ErrVersionConflict, commit.ExpectedVersion, version)
	}

	if _, err := tx.ExecContext(ctx, `
		update auctions
		set current_price=$2, end_time=$3, status=$4, top_bidder_id=$5, bid_count=$6,
		    updated_at=$7, version=version+1
		where id=$1
	`, a.AuctionID, a.CurrentPrice, a.EndTime, string(a.Status), a.TopBidderID, a.BidCount, a.UpdatedAt); err != nil {
		return persistenceErr("update auction "+a.AuctionID, err)
	}

	for _, b := range commit.Bids {
		if _, err := tx.ExecContext(ctx, `
			insert into bids(id, auction_id, bidder_id, amount, kind, sequence, created_at)
			values ($1,$2,$3,$4,$5,$6,$7)
		`, b.BidID, b.AuctionID, b.BidderID, b.Amount, string(b.Kind), b.Sequence, b.CreatedAt); err != nil {
			return persistenceErr("insert bid "+b.BidID, err)
		}
	}

	if c := commit.Ceiling; c != nil {
		if _, err := tx.ExecContext(ctx, `
			insert into proxy_ceilings(auction_id, bidder_id, amount, registered_at, sequence)
			values ($1,$2,$3,$4,$5)
			on conflict (auction_id, bidder_id) do update
			set amount=excluded.amount, registered_at=excluded.registered_at, sequence=excluded.sequence
		`, a.AuctionID, c.BidderID, c.Amount, c.RegisteredAt, c.Sequence); err != nil {
			return persistenceErr("upsert ceiling", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistenceErr("commit "+a.AuctionID, err)
	}
	return nil
}

func (s *PostgresRepo) UpdateStatus(ctx context.Context, auctionID string, expectedVersion int64, status models.AuctionStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update auctions set status=$3, updated_at=$4, version=version+1
		where id=$1 and version=$2
	`, auctionID, expectedVersion, string(status), at)
	if err != nil {
		return persistenceErr("update status "+auctionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistenceErr("update status "+auctionID, err)
	}
	if n == 0 {
		if err := s.exists(ctx, auctionID); err != nil {
			return err
		}
		return fmt.Errorf("update status of auction %s: %w", auctionID, biddingerrors.ErrVersionConflict)
	}
	return nil
}

func (s *PostgresRepo) GetAuctionsByBidder(ctx context.Context, bidderID string) ([]models.Auction, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+auctionColumns+` from auctions
		where id in (select distinct auction_id from bids where bidder_id=$1)
		order by created_at asc
	`, bidderID)
	if err != nil {
		return nil, persistenceErr("get auctions for bidder "+bidderID, err)
	}
	defer rows.Close()

	var out []models.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, persistenceErr("scan auction", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate auctions", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("get auctions for bidder %s: %w", bidderID, biddingerrors.ErrBidderNoBids)
	}
	return out, nil
}

func (s *PostgresRepo) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id from auctions where status=$1 and end_time <= $2 order by id
	`, string(models.StatusActive), now)
	if err != nil {
		return nil, persistenceErr("list expired", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, persistenceErr("scan expired", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// persistenceErr classifies driver errors: lock timeouts are retryable by the
// caller, everything else is a store failure
func persistenceErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return fmt.Errorf("%s: %w: %v", op, biddingerrors.ErrLockTimeout, err)
	}
	return fmt.Errorf("%s: %w: %v", op, biddingerrors.ErrPersistence, err)
}
