package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"citbif/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return New(db), mock
}

func TestFindAccountByIDNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	acc, err := st.FindAccountByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, acc)
}

func TestFindAccountByIDFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username", "role"}).
			AddRow("acc-1", "ada@example.com", "ada", "individual"))

	acc, err := st.FindAccountByID(context.Background(), "acc-1")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "ada@example.com", acc.Email)
	assert.Equal(t, models.RoleIndividual, acc.Role)
}

func TestFindAccountByIDError(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "accounts"`).WillReturnError(errors.New("connection refused"))

	acc, err := st.FindAccountByID(context.Background(), "acc-1")
	assert.Error(t, err)
	assert.Nil(t, acc)
}

func TestFindAdminProfileByAccountIDNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "admin_profiles" WHERE account_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	p, err := st.FindAdminProfileByAccountID(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCreateSession(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO "sessions"`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.CreateSession(context.Background(), &models.Session{
		ID:        "11111111-1111-1111-1111-111111111111",
		AccountID: "22222222-2222-2222-2222-222222222222",
		TokenID:   "tok-1",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	assert.NoError(t, err)
}

func TestCreateSessionError(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO "sessions"`).WillReturnError(errors.New("disk full"))

	err := st.CreateSession(context.Background(), &models.Session{ID: "s", AccountID: "a", TokenID: "t"})
	assert.ErrorContains(t, err, "create session")
}

func TestFindActiveSession(t *testing.T) {
	st, mock := newMockStore(t)
	exp := time.Now().Add(time.Hour)
	mock.ExpectQuery(`SELECT \* FROM "sessions" WHERE token_id = \$1 AND expires_at > \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "token_id", "expires_at"}).
			AddRow("s-1", "acc-1", "tok-1", exp))

	sess, err := st.FindActiveSession(context.Background(), "tok-1", time.Now())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "acc-1", sess.AccountID)
}

func TestFindActiveSessionMissing(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	sess, err := st.FindActiveSession(context.Background(), "tok-1", time.Now())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestDeleteSessionIdempotent(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM "sessions" WHERE token_id = \$1`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "sessions" WHERE token_id = \$1`).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := st.DeleteSession(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.DeleteSession(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteAccountSessions(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM "sessions" WHERE account_id = \$1`).WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := st.DeleteAccountSessions(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestDeleteExpiredSessions(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM "sessions" WHERE expires_at <= \$1`).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := st.DeleteExpiredSessions(context.Background(), time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestListActivity(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "activity_records" WHERE account_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT \* FROM "activity_records" WHERE account_id = \$1 ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "type"}).
			AddRow("01J0000000000000000000000B", "acc-1", "login").
			AddRow("01J0000000000000000000000A", "acc-1", "token_verified"))

	recs, total, err := st.ListActivity(context.Background(), ActivityFilter{AccountID: "acc-1", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, recs, 2)
	assert.Equal(t, "login", recs[0].Type)
}

func TestUpdateAdminProfileWritesOnlyListedColumns(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "admin_profiles" WHERE account_id = \$1 ORDER BY "admin_profiles"."id" LIMIT \$2 FOR UPDATE`).
		WithArgs("acc-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "level", "perm_manage_settings", "failed_login_attempts", "is_locked"}).
			AddRow("p-1", "acc-1", "admin", true, models.MaxFailedLogins-1, false))
	mock.ExpectExec(`UPDATE "admin_profiles" SET "is_locked"=\$1,"locked_until"=\$2,"failed_login_attempts"=\$3,"updated_at"=\$4 WHERE "id" = \$5`).
		WithArgs(true, sqlmock.AnyArg(), models.MaxFailedLogins, sqlmock.AnyArg(), "p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := st.UpdateAdminProfile(context.Background(), "acc-1",
		func(p *models.AdminProfile) { p.RegisterFailedLogin(now) }, LockColumns...)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.IsLocked)
	assert.Equal(t, models.MaxFailedLogins, p.FailedLoginAttempts)
	require.NotNil(t, p.LockedUntil)
	assert.Equal(t, now.Add(models.LockDuration), *p.LockedUntil)
}

func TestUpdateAdminProfileMissing(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "admin_profiles" WHERE account_id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	called := false
	p, err := st.UpdateAdminProfile(context.Background(), "acc-1",
		func(*models.AdminProfile) { called = true }, LockColumns...)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.False(t, called)
}

func TestUpdateAdminProfileRequiresColumns(t *testing.T) {
	st, _ := newMockStore(t)
	_, err := st.UpdateAdminProfile(context.Background(), "acc-1", func(*models.AdminProfile) {})
	assert.Error(t, err)
}

func TestAppendAdminActivityPrunes(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "admin_activities"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "admin_activities" WHERE admin_profile_id = \$1 AND id NOT IN \(SELECT "id" FROM "admin_activities" WHERE admin_profile_id = \$2 ORDER BY created_at DESC LIMIT \$3\)`).
		WithArgs("p-1", "p-1", models.RecentActivityLimit).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.AppendAdminActivity(context.Background(), &models.AdminActivity{
		ID:             "33333333-3333-3333-3333-333333333333",
		AdminProfileID: "p-1",
		Action:         "login",
		CreatedAt:      time.Now(),
	})
	assert.NoError(t, err)
}

func TestAppendAdminActivityRollsBackOnPruneFailure(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "admin_activities"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "admin_activities"`).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := st.AppendAdminActivity(context.Background(), &models.AdminActivity{ID: "a", AdminProfileID: "p-1", Action: "login"})
	assert.ErrorContains(t, err, "prune admin activity")
}
