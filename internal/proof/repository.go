package proof

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pkgdb "github.com/ahwlsqja/chainauth/pkg/db"
)

// Record is one archived login proof
type Record struct {
	ExternalID   string
	ChallengeID  string
	Identity     string
	Address      string
	BindingHash  string
	Status       Status
	TxHash       string
	BlockNumber  uint64
	ErrorMessage string
	VerifiedAt   time.Time
}

// Repository archives login proofs
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByBindingHash(ctx context.Context, bindingHash string) (*Record, error)
	MarkRecorded(ctx context.Context, externalID, txHash string, blockNumber uint64) error
	MarkFailed(ctx context.Context, externalID, reason string) error
}

const schema = `CREATE TABLE IF NOT EXISTS login_proofs (
	id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
	external_id    CHAR(36)     NOT NULL,
	challenge_id   CHAR(36)     NOT NULL,
	identity       VARCHAR(255) NOT NULL,
	wallet_address CHAR(42)     NOT NULL,
	binding_hash   CHAR(64)     NOT NULL,
	status         VARCHAR(16)  NOT NULL,
	tx_hash        CHAR(66)     NULL,
	block_number   BIGINT UNSIGNED NULL,
	error_message  VARCHAR(255) NULL,
	verified_at    DATETIME(3)  NOT NULL,
	created_at     DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	updated_at     DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
	UNIQUE KEY uk_login_proofs_external_id (external_id),
	UNIQUE KEY uk_login_proofs_binding_hash (binding_hash),
	KEY idx_login_proofs_identity (identity)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const (
	insertProof = `INSERT INTO login_proofs
	(external_id, challenge_id, identity, wallet_address, binding_hash, status, verified_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectByBindingHash = `SELECT external_id, challenge_id, identity, wallet_address, binding_hash, status,
	COALESCE(tx_hash, ''), COALESCE(block_number, 0), COALESCE(error_message, ''), verified_at
	FROM login_proofs WHERE binding_hash = ?`

	selectStatusForUpdate = `SELECT status FROM login_proofs WHERE external_id = ? FOR UPDATE`

	updateRecorded = `UPDATE login_proofs SET status = ?, tx_hash = ?, block_number = ?, error_message = NULL
	WHERE external_id = ?`

	updateFailed = `UPDATE login_proofs SET status = ?, error_message = ? WHERE external_id = ? AND status <> ?`

	maxErrorMessageLen = 255
)

// MySQLRepository implements Repository on MySQL
type MySQLRepository struct {
	txRunner *pkgdb.TxRunner
}

var _ Repository = (*MySQLRepository)(nil)

// NewMySQLRepository creates a proof archive on the given connection pool
func NewMySQLRepository(txRunner *pkgdb.TxRunner) *MySQLRepository {
	return &MySQLRepository{txRunner: txRunner}
}

// EnsureSchema creates the login_proofs table if it does not exist
func (r *MySQLRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.txRunner.DB().ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create login_proofs table: %w", err)
	}
	return nil
}

func (r *MySQLRepository) Create(ctx context.Context, rec *Record) error {
	_, err := r.txRunner.DB().ExecContext(ctx, insertProof,
		rec.ExternalID, rec.ChallengeID, rec.Identity, rec.Address, rec.BindingHash,
		string(rec.Status), rec.VerifiedAt.UTC(),
	)
	if err != nil {
		if pkgdb.IsDuplicateKey(err) {
			return ErrDuplicateProof
		}
		return fmt.Errorf("failed to insert proof: %w", err)
	}
	return nil
}

func (r *MySQLRepository) GetByBindingHash(ctx context.Context, bindingHash string) (*Record, error) {
	var (
		rec    Record
		status string
	)
	err := r.txRunner.DB().QueryRowContext(ctx, selectByBindingHash, bindingHash).Scan(
		&rec.ExternalID, &rec.ChallengeID, &rec.Identity, &rec.Address, &rec.BindingHash, &status,
		&rec.TxHash, &rec.BlockNumber, &rec.ErrorMessage, &rec.VerifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProofNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proof: %w", err)
	}
	rec.Status = Status(status)
	return &rec, nil
}

// MarkRecorded stores the mined transaction under a row lock.
// A row already recorded is left untouched.
func (r *MySQLRepository) MarkRecorded(ctx context.Context, externalID, txHash string, blockNumber uint64) error {
	return r.txRunner.WithTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, selectStatusForUpdate, externalID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProofNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock proof: %w", err)
		}
		if Status(status) == StatusRecorded {
			return nil
		}

		if _, err := tx.ExecContext(ctx, updateRecorded, string(StatusRecorded), txHash, blockNumber, externalID); err != nil {
			return fmt.Errorf("failed to mark proof recorded: %w", err)
		}
		return nil
	})
}

func (r *MySQLRepository) MarkFailed(ctx context.Context, externalID, reason string) error {
	if len(reason) > maxErrorMessageLen {
		reason = reason[:maxErrorMessageLen]
	}
	_, err := r.txRunner.DB().ExecContext(ctx, updateFailed,
		string(StatusFailed), reason, externalID, string(StatusRecorded),
	)
	if err != nil {
		return fmt.Errorf("failed to mark proof failed: %w", err)
	}
	return nil
}
