package storage

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/quantfold/polymarket-bot/pkg/types"
)

// PostgresStore implements Store using PostgreSQL with JSONB documents.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL store and verifies the
// connection.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// newPostgresStoreWithDB wires an existing connection, used by tests.
func newPostgresStoreWithDB(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// UpsertMarket stores or refreshes a market snapshot.
func (p *PostgresStore) UpsertMarket(ctx context.Context, snap *types.MarketSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal market: %w", err)
	}

	query := `
		INSERT INTO markets (market_id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (market_id) DO UPDATE SET data = $2, updated_at = NOW()
	`

	_, err = p.db.ExecContext(ctx, query, snap.MarketID, data)
	if err != nil {
		return fmt.Errorf("upsert market: %w", err)
	}

	return nil
}

// CreatePosition inserts a new position record.
func (p *PostgresStore) CreatePosition(ctx context.Context, pos *types.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}

	query := `
		INSERT INTO positions (position_id, status, opened_at, data)
		VALUES ($1, $2, $3, $4)
	`

	_, err = p.db.ExecContext(ctx, query, pos.PositionID, string(pos.Status), pos.OpenedAt, data)
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}

	p.logger.Debug("position-created",
		zap.String("position-id", pos.PositionID),
		zap.String("status", string(pos.Status)))

	return nil
}

// UpdatePosition replaces an existing position record.
func (p *PostgresStore) UpdatePosition(ctx context.Context, pos *types.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}

	query := `UPDATE positions SET status = $2, data = $3 WHERE position_id = $1`

	result, err := p.db.ExecContext(ctx, query, pos.PositionID, string(pos.Status), data)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("position %s not found", pos.PositionID)
	}

	return nil
}

// GetPosition fetches a position by ID.
func (p *PostgresStore) GetPosition(ctx context.Context, positionID string) (*types.Position, error) {
	query := `SELECT data FROM positions WHERE position_id = $1`

	var data []byte
	err := p.db.QueryRowContext(ctx, query, positionID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}

	var pos types.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, fmt.Errorf("unmarshal position: %w", err)
	}

	return &pos, nil
}

// OpenPositions returns all open positions, most recently opened first.
func (p *PostgresStore) OpenPositions(ctx context.Context) ([]*types.Position, error) {
	query := `SELECT data FROM positions WHERE status = 'open' ORDER BY opened_at DESC`

	return p.queryPositions(ctx, query)
}

// RecentPositions returns the most recently opened positions.
func (p *PostgresStore) RecentPositions(ctx context.Context, limit int) ([]*types.Position, error) {
	query := `SELECT data FROM positions ORDER BY opened_at DESC LIMIT $1`

	return p.queryPositions(ctx, query, limit)
}

func (p *PostgresStore) queryPositions(ctx context.Context, query string, args ...interface{}) ([]*types.Position, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []*types.Position
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}

		var pos types.Position
		if err := json.Unmarshal(data, &pos); err != nil {
			return nil, fmt.Errorf("unmarshal position: %w", err)
		}
		positions = append(positions, &pos)
	}

	return positions, rows.Err()
}

// CountOpenPositions returns the number of open positions.
func (p *PostgresStore) CountOpenPositions(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM positions WHERE status = 'open'`

	var count int
	err := p.db.QueryRowContext(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open positions: %w", err)
	}

	return count, nil
}

// TotalOpenExposure returns the sum of actual_total_cost across open
// positions.
func (p *PostgresStore) TotalOpenExposure(ctx context.Context) (float64, error) {
	query := `
		SELECT COALESCE(SUM((data->>'actual_total_cost')::double precision), 0)
		FROM positions WHERE status = 'open'
	`

	var total float64
	err := p.db.QueryRowContext(ctx, query).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total open exposure: %w", err)
	}

	return total, nil
}

// DailyPnL fetches the rollup for an ISO date, zero-valued when absent.
func (p *PostgresStore) DailyPnL(ctx context.Context, date string) (*types.DailyPnL, error) {
	query := `SELECT data FROM pnl_daily WHERE date = $1`

	var data []byte
	err := p.db.QueryRowContext(ctx, query, date).Scan(&data)
	if err == sql.ErrNoRows {
		return &types.DailyPnL{Date: date, StrategyPnL: make(map[string]float64)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily pnl: %w", err)
	}

	var pnl types.DailyPnL
	if err := json.Unmarshal(data, &pnl); err != nil {
		return nil, fmt.Errorf("unmarshal daily pnl: %w", err)
	}
	if pnl.StrategyPnL == nil {
		pnl.StrategyPnL = make(map[string]float64)
	}

	return &pnl, nil
}

// UpsertDailyPnL stores or replaces the rollup for its date.
func (p *PostgresStore) UpsertDailyPnL(ctx context.Context, pnl *types.DailyPnL) error {
	data, err := json.Marshal(pnl)
	if err != nil {
		return fmt.Errorf("marshal daily pnl: %w", err)
	}

	query := `
		INSERT INTO pnl_daily (date, data)
		VALUES ($1, $2)
		ON CONFLICT (date) DO UPDATE SET data = $2
	`

	_, err = p.db.ExecContext(ctx, query, pnl.Date, data)
	if err != nil {
		return fmt.Errorf("upsert daily pnl: %w", err)
	}

	return nil
}

// LogEvent appends to the event log.
func (p *PostgresStore) LogEvent(ctx context.Context, level, eventType string, details map[string]interface{}) error {
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal event details: %w", err)
	}

	query := `
		INSERT INTO events_log (ts, level, event_type, details)
		VALUES (NOW(), $1, $2, $3)
	`

	_, err = p.db.ExecContext(ctx, query, level, eventType, data)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-store")
	return p.db.Close()
}
