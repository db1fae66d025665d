package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"mintgate/internal/sale/models"
	"mintgate/pkg/platform/sentinel"
	"mintgate/pkg/platform/tx"
)

// Schema creates the tables the PostgreSQL store uses. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS sale_state (
	sale_id      TEXT PRIMARY KEY,
	phase        SMALLINT NOT NULL DEFAULT 0,
	total_issued BIGINT   NOT NULL DEFAULT 0 CHECK (total_issued >= 0),
	early_issued BIGINT   NOT NULL DEFAULT 0 CHECK (early_issued >= 0)
);

CREATE TABLE IF NOT EXISTS sale_address_claims (
	sale_id       TEXT   NOT NULL REFERENCES sale_state (sale_id),
	address       TEXT   NOT NULL,
	early_claimed BIGINT NOT NULL DEFAULT 0 CHECK (early_claimed >= 0),
	open_claimed  BIGINT NOT NULL DEFAULT 0 CHECK (open_claimed >= 0),
	PRIMARY KEY (sale_id, address)
);
`

// PostgresStateStore persists sale state in PostgreSQL. Each sale is keyed by
// its ID so one database can host several sales.
type PostgresStateStore struct {
	db     *sql.DB
	saleID string
}

// NewPostgres constructs a PostgreSQL-backed state store for one sale.
func NewPostgres(db *sql.DB, saleID string) *PostgresStateStore {
	return &PostgresStateStore{db: db, saleID: saleID}
}

// Migrate applies Schema.
func (s *PostgresStateStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate sale state schema: %w", err)
	}
	return nil
}

func (s *PostgresStateStore) Load(ctx context.Context) (*models.State, error) {
	state := models.NewState()
	var phase int16
	var total, early int64
	err := s.db.QueryRowContext(ctx,
		`SELECT phase, total_issued, early_issued FROM sale_state WHERE sale_id = $1`,
		s.saleID,
	).Scan(&phase, &total, &early)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load sale state: %w", err)
	}
	state.Phase = models.Phase(phase)
	state.TotalIssued = uint64(total)
	state.EarlyIssued = uint64(early)

	rows, err := s.db.QueryContext(ctx,
		`SELECT address, early_claimed, open_claimed FROM sale_address_claims WHERE sale_id = $1`,
		s.saleID,
	)
	if err != nil {
		return nil, fmt.Errorf("load address claims: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr string
		var earlyClaimed, openClaimed int64
		if err := rows.Scan(&addr, &earlyClaimed, &openClaimed); err != nil {
			return nil, fmt.Errorf("scan address claims: %w", err)
		}
		state.Addresses[common.HexToAddress(addr)] = models.AddressClaims{
			Early: uint64(earlyClaimed),
			Open:  uint64(openClaimed),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address claims: %w", err)
	}
	return state, nil
}

// ApplyClaim locks the sale row, checks the delta against the persisted phase
// and counters, and moves the totals and the address row in one transaction.
// A rejected claim rolls back, so it never creates the sale row either.
func (s *PostgresStateStore) ApplyClaim(ctx context.Context, delta models.ClaimDelta) (models.ClaimResult, error) {
	if err := claimable(delta); err != nil {
		return models.ClaimResult{}, err
	}
	// Check bounds every counter by limits that fit in BIGINT.
	var earlyDelta, openDelta int64
	if delta.Phase == models.PhaseEarly {
		earlyDelta = int64(delta.Quantity)
	} else {
		openDelta = int64(delta.Quantity)
	}

	var result models.ClaimResult
	err := tx.Run(ctx, s.db, func(sqlTx *sql.Tx) error {
		if err := s.ensureRow(ctx, sqlTx); err != nil {
			return err
		}
		current, err := s.lockForClaim(ctx, sqlTx, delta.Address)
		if err != nil {
			return err
		}
		if err := current.Check(delta); err != nil {
			return err
		}

		if _, err := sqlTx.ExecContext(ctx, `
			UPDATE sale_state
			SET total_issued = total_issued + $2,
			    early_issued = early_issued + $3
			WHERE sale_id = $1
		`, s.saleID, int64(delta.Quantity), earlyDelta); err != nil {
			return fmt.Errorf("update sale totals: %w", err)
		}
		if _, err := sqlTx.ExecContext(ctx, `
			INSERT INTO sale_address_claims (sale_id, address, early_claimed, open_claimed)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (sale_id, address) DO UPDATE SET
				early_claimed = sale_address_claims.early_claimed + EXCLUDED.early_claimed,
				open_claimed  = sale_address_claims.open_claimed + EXCLUDED.open_claimed
		`, s.saleID, delta.Address.Hex(), earlyDelta, openDelta); err != nil {
			return fmt.Errorf("upsert address claims: %w", err)
		}

		current.Apply(delta)
		result = current.Result(delta.Address)
		return nil
	})
	if err != nil {
		return models.ClaimResult{}, err
	}
	return result, nil
}

// lockForClaim reads the sale row FOR UPDATE plus addr's counters. The row
// lock serializes every claim and phase change on this sale until commit.
func (s *PostgresStateStore) lockForClaim(ctx context.Context, sqlTx *sql.Tx, addr common.Address) (*models.State, error) {
	current := models.NewState()
	var phase int16
	var total, early int64
	if err := sqlTx.QueryRowContext(ctx,
		`SELECT phase, total_issued, early_issued FROM sale_state WHERE sale_id = $1 FOR UPDATE`,
		s.saleID,
	).Scan(&phase, &total, &early); err != nil {
		return nil, fmt.Errorf("lock sale state: %w", err)
	}
	current.Phase = models.Phase(phase)
	current.TotalIssued = uint64(total)
	current.EarlyIssued = uint64(early)

	var earlyClaimed, openClaimed int64
	err := sqlTx.QueryRowContext(ctx,
		`SELECT early_claimed, open_claimed FROM sale_address_claims WHERE sale_id = $1 AND address = $2`,
		s.saleID, addr.Hex(),
	).Scan(&earlyClaimed, &openClaimed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("read address claims: %w", err)
	default:
		current.Addresses[addr] = models.AddressClaims{
			Early: uint64(earlyClaimed),
			Open:  uint64(openClaimed),
		}
	}
	return current, nil
}

func (s *PostgresStateStore) SetPhase(ctx context.Context, phase models.Phase) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sale_state (sale_id, phase) VALUES ($1, $2)
		ON CONFLICT (sale_id) DO UPDATE SET phase = EXCLUDED.phase
	`, s.saleID, int16(phase))
	if err != nil {
		return fmt.Errorf("set sale phase: %w", err)
	}
	return nil
}

func (s *PostgresStateStore) ensureRow(ctx context.Context, sqlTx *sql.Tx) error {
	if _, err := sqlTx.ExecContext(ctx,
		`INSERT INTO sale_state (sale_id) VALUES ($1) ON CONFLICT (sale_id) DO NOTHING`,
		s.saleID,
	); err != nil {
		return fmt.Errorf("ensure sale state row: %w", err)
	}
	return nil
}
