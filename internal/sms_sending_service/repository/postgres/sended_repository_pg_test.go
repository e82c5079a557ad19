package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raspisms/golang_services/internal/core_domain"
	"github.com/raspisms/golang_services/internal/sms_sending_service/domain"
)

var sendedRowColumns = []string{"id", "user_id", "phone_id", "destination", "text", "flash", "uid", "status", "error", "at", "updated_at"}

func TestPgSendedRepository_Create(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	repo := NewPgSendedRepository(mockPool)

	s := &core_domain.Sended{UserID: "u1", PhoneID: "p1", Destination: "+33600000000", Text: "hi", UID: "ticket-1"}
	mockPool.ExpectExec(`INSERT INTO sended`).
		WithArgs(pgxmock.AnyArg(), "u1", "p1", "+33600000000", "hi", false, "ticket-1", core_domain.SendedStatusUnknown, "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), s))
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, core_domain.SendedStatusUnknown, s.Status)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgSendedRepository_ListForUser(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	repo := NewPgSendedRepository(mockPool)

	now := time.Now().UTC()
	rows := mockPool.NewRows(sendedRowColumns).
		AddRow("s1", "u1", "p1", "+336", "one", false, "t1", core_domain.SendedStatusDelivered, "", now, now).
		AddRow("s2", "u1", "p1", "+337", "two", true, "t2", core_domain.SendedStatusUnknown, "", now, now)
	mockPool.ExpectQuery(`SELECT .* FROM sended WHERE user_id = \$1 ORDER BY at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("u1", 25, 50).
		WillReturnRows(rows)

	messages, err := repo.ListForUser(context.Background(), "u1", 25, 50)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, core_domain.SendedStatusDelivered, messages[0].Status)
	assert.True(t, messages[1].Flash)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgSendedRepository_UpdateStatusByUID(t *testing.T) {
	t.Run("Updated", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgSendedRepository(mockPool)

		now := time.Now().UTC()
		rows := mockPool.NewRows(sendedRowColumns).
			AddRow("s1", "u1", "p1", "+336", "one", false, "t1", core_domain.SendedStatusFailed, "", now, now)
		mockPool.ExpectQuery(`UPDATE sended SET status = \$3, updated_at = \$4\s+WHERE phone_id = \$1 AND uid = \$2`).
			WithArgs("p1", "t1", core_domain.SendedStatusFailed, pgxmock.AnyArg()).
			WillReturnRows(rows)

		s, err := repo.UpdateStatusByUID(context.Background(), "p1", "t1", core_domain.SendedStatusFailed)
		require.NoError(t, err)
		assert.Equal(t, "s1", s.ID)
		assert.Equal(t, core_domain.SendedStatusFailed, s.Status)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnknownUID", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgSendedRepository(mockPool)

		mockPool.ExpectQuery(`UPDATE sended`).WithArgs("p1", "nope", core_domain.SendedStatusDelivered, pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)
		_, err = repo.UpdateStatusByUID(context.Background(), "p1", "nope", core_domain.SendedStatusDelivered)
		assert.ErrorIs(t, err, domain.ErrSendedNotFound)
	})
}
