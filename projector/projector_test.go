// +build unit

package projector

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdalrahmanBashir/EventSourcedBank/domain"
	"github.com/AbdalrahmanBashir/EventSourcedBank/eventstore"
	"github.com/AbdalrahmanBashir/EventSourcedBank/internal/test"
	"github.com/AbdalrahmanBashir/EventSourcedBank/mocks"
	"github.com/AbdalrahmanBashir/EventSourcedBank/money"
	pgread "github.com/AbdalrahmanBashir/EventSourcedBank/projection/postgres"
)

func TestProjector_RunOnce_EmptyBatch(t *testing.T) {
	test.RunWithMockDB(t, "returns zero applied without beginning a transaction", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		dbMock.ExpectQuery(`SELECT position FROM projector_checkpoints WHERE projector_name = \$1`).
			WithArgs("test_projector").
			WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(int64(0)))

		store := mocks.NewEventStore(ctrl)
		store.EXPECT().LoadSince(gomock.Any(), int64(0), batchSize).Return(nil, nil)

		p := New("test_projector", store, pgread.NewStore(db), nil, nil)

		applied, err := p.runOnce(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 0, applied)
	})
}

func TestProjector_RunOnce_AppliesBatchAndAdvancesCheckpoint(t *testing.T) {
	test.RunWithMockDB(t, "applies a deposit and writes the checkpoint", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		accountID := uuid.New()
		occurredOn := time.Now().UTC()

		event := eventstore.Event{
			ID:             uuid.New(),
			StreamID:       accountID,
			Version:        1,
			Type:           domain.MoneyDepositedType,
			Payload:        domain.MoneyDeposited{Amount: money.New(decimal.NewFromInt(50), "USD")},
			OccurredOn:     occurredOn,
			GlobalPosition: 7,
		}

		dbMock.ExpectQuery(`SELECT position FROM projector_checkpoints WHERE projector_name = \$1`).
			WithArgs("test_projector").
			WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(int64(6)))

		store := mocks.NewEventStore(ctrl)
		store.EXPECT().LoadSince(gomock.Any(), int64(6), batchSize).Return([]eventstore.Event{event}, nil)
		store.EXPECT().LatestPosition(gomock.Any()).Return(int64(9), nil)

		dbMock.ExpectBegin()
		dbMock.ExpectExec(`UPDATE account_balance`).
			WithArgs(accountID, decimal.NewFromInt(50), 1, occurredOn).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectQuery(`SELECT balance_amount FROM account_balance WHERE account_id = \$1`).
			WithArgs(accountID).
			WillReturnRows(sqlmock.NewRows([]string{"balance_amount"}).AddRow("150"))
		dbMock.ExpectExec(`INSERT INTO account_entries`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()
		dbMock.ExpectExec(`UPDATE projector_checkpoints SET position = \$2 WHERE projector_name = \$1`).
			WithArgs("test_projector", int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		p := New("test_projector", store, pgread.NewStore(db), nil, nil)

		applied, err := p.runOnce(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, applied)
	})
}

func TestProjector_RunOnce_RollsBackOnUnknownEvent(t *testing.T) {
	test.RunWithMockDB(t, "rolls back and does not advance the checkpoint", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		event := eventstore.Event{
			ID:             uuid.New(),
			StreamID:       uuid.New(),
			Version:        0,
			Type:           "SomethingUnknown",
			Payload:        struct{}{},
			GlobalPosition: 1,
		}

		dbMock.ExpectQuery(`SELECT position FROM projector_checkpoints WHERE projector_name = \$1`).
			WithArgs("test_projector").
			WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(int64(0)))

		store := mocks.NewEventStore(ctrl)
		store.EXPECT().LoadSince(gomock.Any(), int64(0), batchSize).Return([]eventstore.Event{event}, nil)

		dbMock.ExpectBegin()
		dbMock.ExpectRollback()

		p := New("test_projector", store, pgread.NewStore(db), nil, nil)

		_, err := p.runOnce(context.Background())

		require.Error(t, err)
		var unknown *domain.UnknownEventError
		assert.ErrorAs(t, err, &unknown)
	})
}

func TestProjector_Run_HonorsContextCancellation(t *testing.T) {
	test.RunWithMockDB(t, "returns an error wrapping context.Canceled when ctx is already cancelled", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		dbMock.ExpectExec(`INSERT INTO projector_checkpoints`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		store := mocks.NewEventStore(ctrl)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := New("test_projector", store, pgread.NewStore(db), nil, nil)

		err := p.Run(ctx)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestProjector_RunOnce_PropagatesAStorageErrorFromLoadSince(t *testing.T) {
	test.RunWithMockDB(t, "returns the error without beginning a transaction", func(t *testing.T, db *sql.DB, dbMock sqlmock.Sqlmock) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		expected := errors.New("connection reset")

		dbMock.ExpectQuery(`SELECT position FROM projector_checkpoints WHERE projector_name = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(int64(0)))

		store := mocks.NewEventStore(ctrl)
		store.EXPECT().LoadSince(gomock.Any(), int64(0), batchSize).Return(nil, expected)

		p := New("test_projector", store, pgread.NewStore(db), nil, nil)

		_, err := p.runOnce(context.Background())

		assert.ErrorIs(t, err, expected)
	})
}

// fakeRecorder captures the last value passed to SetCheckpointLag so tests
// can assert on it without pulling in a real Prometheus registry.
type fakeRecorder struct {
	lag       int64
	lagCalled bool
}

func (f *fakeRecorder) ObserveBatch(int, time.Duration) {}
func (f *fakeRecorder) ObserveEmptyBatch()               {}
func (f *fakeRecorder) ObserveError()                    {}
func (f *fakeRecorder) SetCheckpointLag(lag int64) {
	f.lag = lag
	f.lagCalled = true
}

func TestProjector_RecordCheckpointLag(t *testing.T) {
	t.Run("reports the gap between the latest position and the checkpoint", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := mocks.NewEventStore(ctrl)
		store.EXPECT().LatestPosition(gomock.Any()).Return(int64(42), nil)

		recorder := &fakeRecorder{}
		p := New("test_projector", store, nil, nil, recorder)

		p.recordCheckpointLag(context.Background(), 40)

		assert.True(t, recorder.lagCalled)
		assert.Equal(t, int64(2), recorder.lag)
	})

	t.Run("skips the gauge update when reading the latest position fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := mocks.NewEventStore(ctrl)
		store.EXPECT().LatestPosition(gomock.Any()).Return(int64(0), errors.New("connection reset"))

		recorder := &fakeRecorder{}
		p := New("test_projector", store, nil, nil, recorder)

		p.recordCheckpointLag(context.Background(), 40)

		assert.False(t, recorder.lagCalled)
	})
}

func TestSleepOrDone(t *testing.T) {
	t.Run("returns true after the duration elapses", func(t *testing.T) {
		assert.True(t, sleepOrDone(context.Background(), time.Millisecond))
	})

	t.Run("returns false when ctx is already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.False(t, sleepOrDone(ctx, time.Second))
	})
}
