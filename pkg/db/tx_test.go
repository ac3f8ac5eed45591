package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*TxRunner, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewTxRunner(conn), mock
}

func TestWithTx_Commit(t *testing.T) {
	runner, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE t").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := runner.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE t SET x = 1")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_Rollback(t *testing.T) {
	runner, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := runner.WithTx(context.Background(), func(*sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxResult(t *testing.T) {
	runner, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status").WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectCommit()

	status, err := WithTxResult(context.Background(), runner, func(tx *sql.Tx) (string, error) {
		var s string
		err := tx.QueryRow("SELECT status FROM t").Scan(&s)
		return s, err
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, IsDuplicateKey(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, IsDuplicateKey(&mysql.MySQLError{Number: 1146}))
	assert.False(t, IsDuplicateKey(errors.New("other")))
}

func TestConfig_DSN(t *testing.T) {
	dsn := Config{Host: "db", Port: 3306, User: "app", Password: "secret", Name: "chainauth", ConnMaxLifetime: time.Minute}.DSN()
	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "chainauth", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, time.UTC, parsed.Loc)
}
