package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/fundrate/funding-arb/pkg/types"
)

// Postgres is the relational journal sink.
type Postgres struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds journal storage configuration.
type PostgresConfig struct {
	ConnectionString string
	// DriverName overrides the SQL driver, for tests.
	DriverName string
	Logger     *zap.Logger
}

// NewPostgres opens and pings the journal database and creates the
// journal tables when missing, so a fresh database is writable before
// the first trade settles.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	driver := cfg.DriverName
	if driver == "" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{db: db, logger: cfg.Logger}
	err = p.EnsureSchema(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	cfg.Logger.Info("journal-storage-connected")

	return p, nil
}

// NewPostgresWithDB wraps an existing connection, for tests.
func NewPostgresWithDB(db *sql.DB, logger *zap.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		exchange VARCHAR(50),
		ex_order_id VARCHAR(255),
		side VARCHAR(4),
		contract_quantity DECIMAL(26,16),
		leverage INTEGER,
		avg_order_price DECIMAL(26,16),
		fee_amount DECIMAL(26,16),
		usdt_amount DECIMAL(26,16),
		trade_time TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS position (
		id BIGSERIAL PRIMARY KEY,
		position_side VARCHAR(5),
		entry_order_id BIGINT REFERENCES orders(id),
		close_order_id BIGINT REFERENCES orders(id),
		funding_rate DECIMAL(26,16),
		funding_fee DECIMAL(26,16)
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id BIGSERIAL PRIMARY KEY,
		ticker VARCHAR(100),
		position_id_1 BIGINT REFERENCES position(id),
		position_id_2 BIGINT REFERENCES position(id),
		pnl DECIMAL(10,5),
		entry_time TIMESTAMP,
		close_time TIMESTAMP
	)`,
}

// EnsureSchema creates the journal tables when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		_, err := p.db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("create journal schema: %w", err)
		}
	}
	return nil
}

const (
	insertOrderQuery = `INSERT INTO orders (exchange, ex_order_id, side, contract_quantity, leverage, avg_order_price, fee_amount, usdt_amount, trade_time) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`

	insertPositionQuery = `INSERT INTO position (position_side, entry_order_id, close_order_id, funding_rate, funding_fee) VALUES ($1, $2, $3, $4, $5) RETURNING id`

	insertTradeQuery = `INSERT INTO trades (ticker, position_id_1, position_id_2, pnl, entry_time, close_time) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
)

// InsertTrade writes the whole record in one transaction: four orders,
// then two positions referencing them, then the trade row. Any failure
// rolls everything back.
func (p *Postgres) InsertTrade(ctx context.Context, rec TradeRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal transaction: %w", err)
	}

	var orderIDs [4]int64
	for i, leg := range rec.Legs {
		openID, err := insertOrder(ctx, tx, rec.Leverage.String(), leg.Venue, leg.Open)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert open order for %s: %w", leg.Venue, err)
		}
		closeID, err := insertOrder(ctx, tx, rec.Leverage.String(), leg.Venue, leg.Close)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert close order for %s: %w", leg.Venue, err)
		}
		orderIDs[i*2] = openID
		orderIDs[i*2+1] = closeID
	}

	var positionIDs [2]int64
	for i, leg := range rec.Legs {
		var id int64
		err = tx.QueryRowContext(ctx, insertPositionQuery,
			string(leg.Side),
			orderIDs[i*2],
			orderIDs[i*2+1],
			leg.FundingRate.String(),
			leg.FundingFee.String(),
		).Scan(&id)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert position for %s: %w", leg.Venue, err)
		}
		positionIDs[i] = id
	}

	var tradeID int64
	err = tx.QueryRowContext(ctx, insertTradeQuery,
		rec.Ticker,
		positionIDs[0],
		positionIDs[1],
		rec.PnL.String(),
		rec.EntryTime,
		rec.CloseTime,
	).Scan(&tradeID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert trade: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit journal transaction: %w", err)
	}

	p.logger.Info("trade-journaled",
		zap.Int64("trade-id", tradeID),
		zap.String("ticker", rec.Ticker),
		zap.String("pnl", rec.PnL.String()),
	)
	TradesJournaledTotal.Inc()

	return nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, leverage, venue string, info types.OrderInfo) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, insertOrderQuery,
		venue,
		info.OrderID,
		string(info.Side),
		info.Qty.String(),
		leverage,
		info.AvgPrice.String(),
		info.Fee.String(),
		info.QuoteQty.String(),
		info.OrderTime,
	).Scan(&id)
	return id, err
}

// Close releases the database connection.
func (p *Postgres) Close() error {
	p.logger.Info("closing-journal-storage")
	return p.db.Close()
}
