package proof

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ahwlsqja/chainauth/pkg/ledger"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLedger struct {
	mu    sync.Mutex
	calls [][32]byte
	err   error
	failN int
}

func (l *fakeLedger) RecordProof(_ context.Context, hash [32]byte) (ledger.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, hash)
	if l.failN > 0 {
		l.failN--
		return ledger.Receipt{}, errors.New("rpc unavailable")
	}
	if l.err != nil {
		return ledger.Receipt{}, l.err
	}
	return ledger.Receipt{TxHash: "0xtx", BlockNumber: 42}, nil
}

func (l *fakeLedger) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func testRequest() Request {
	return Request{
		ChallengeID: "challenge-1",
		Identity:    "u1",
		Address:     "0x970E8128AB834E8EAC17Ab8E3812F010678CF791",
		BindingHash: testBindingHash,
		VerifiedAt:  time.UnixMilli(1700000000000),
	}
}

func TestService_LedgerOnly(t *testing.T) {
	writer := &fakeLedger{}
	svc := NewService(writer, nil, nil, zap.NewNop())

	status, err := svc.Record(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusRecorded, status)

	require.Equal(t, 1, writer.Calls())
	want, err := ledger.ToBytes32(testBindingHash)
	require.NoError(t, err)
	assert.Equal(t, want, writer.calls[0])
}

func TestService_InvalidBindingHash(t *testing.T) {
	writer := &fakeLedger{}
	svc := NewService(writer, nil, nil, zap.NewNop())

	req := testRequest()
	req.BindingHash = "not-hex"
	status, err := svc.Record(context.Background(), req)
	assert.ErrorIs(t, err, ledger.ErrInvalidHash)
	assert.Equal(t, StatusFailed, status)
	assert.Zero(t, writer.Calls())
}

func TestService_ArchiveAndPublish(t *testing.T) {
	repo, mock := newMockRepository(t)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(context.Background(), TopicProofRecorded)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO login_proofs")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE login_proofs SET status = ?, tx_hash = ?")).
		WithArgs("recorded", "0xtx", uint64(42), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	svc := NewService(&fakeLedger{}, repo, NewWatermillPublisher(pubSub, ""), zap.NewNop())
	status, err := svc.Record(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusRecorded, status)
	assert.NoError(t, mock.ExpectationsWereMet())

	select {
	case msg := <-messages:
		msg.Ack()
		var event RecordedEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "u1", event.Identity)
		assert.Equal(t, "0xtx", event.TxHash)
		assert.Equal(t, uint64(42), event.BlockNumber)
		assert.Equal(t, event.ProofID, msg.Metadata.Get("proof_id"))
	case <-time.After(time.Second):
		t.Fatal("no proof event published")
	}
}

func TestService_LedgerFailureMarksArchive(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO login_proofs")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE login_proofs SET status = ?, error_message = ?")).
		WithArgs("failed", "reverted", sqlmock.AnyArg(), "recorded").
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewService(&fakeLedger{err: errors.New("reverted")}, repo, nil, zap.NewNop())
	status, err := svc.Record(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_RetryReusesRecordedArchive(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO login_proofs")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	rows := sqlmock.NewRows([]string{
		"external_id", "challenge_id", "identity", "wallet_address", "binding_hash", "status",
		"tx_hash", "block_number", "error_message", "verified_at",
	}).AddRow("proof-1", "challenge-1", "u1", "0xabc", testBindingHash, "recorded", "0xtx", 42, "", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE binding_hash = ?")).WillReturnRows(rows)

	writer := &fakeLedger{}
	svc := NewService(writer, repo, nil, zap.NewNop())
	status, err := svc.Record(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusRecorded, status)
	assert.Zero(t, writer.Calls(), "recorded proofs must not be written twice")
}

func TestNopRecorder(t *testing.T) {
	status, err := NopRecorder{}.Record(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, status)
}
