package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tixsync/internal/clock"
	"github.com/smallbiznis/tixsync/internal/migration"
	showdomain "github.com/smallbiznis/tixsync/internal/showdirectory/domain"
	showrepository "github.com/smallbiznis/tixsync/internal/showdirectory/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (showdomain.Service, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.ApplyEmbedded(db))

	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		Repo:  showrepository.Provide(),
	})
	return svc, clk
}

func strPtr(s string) *string { return &s }

func TestUpsertInsertsAndUpdates(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	show, err := svc.Upsert(ctx, 7, showdomain.UpsertRequest{
		ID:   "show-1",
		Name: " Espen Lind ",
		Date: "2025-03-12",
		Time: strPtr("20:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Espen Lind", show.Name)
	require.NotNil(t, show.Time)
	assert.Equal(t, "20:00", *show.Time)

	clk.Advance(time.Hour)
	show, err = svc.Upsert(ctx, 7, showdomain.UpsertRequest{
		ID:        "show-1",
		Name:      "Espen Lind - Ekstraforestilling",
		Date:      "2025-03-13",
		AppShowID: strPtr("app-9"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Espen Lind - Ekstraforestilling", show.Name)
	assert.Equal(t, "2025-03-13", show.Date)
	assert.Nil(t, show.Time)
	require.NotNil(t, show.AppShowID)
	assert.Equal(t, "app-9", *show.AppShowID)
}

func TestUpsertValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		orgID snowflake.ID
		req   showdomain.UpsertRequest
		want  error
	}{
		{"missing org", 0, showdomain.UpsertRequest{ID: "a", Name: "x", Date: "2025-03-12"}, showdomain.ErrInvalidOrganization},
		{"missing id", 7, showdomain.UpsertRequest{Name: "x", Date: "2025-03-12"}, showdomain.ErrInvalidID},
		{"missing name", 7, showdomain.UpsertRequest{ID: "a", Date: "2025-03-12"}, showdomain.ErrInvalidName},
		{"bad date", 7, showdomain.UpsertRequest{ID: "a", Name: "x", Date: "12.03.2025"}, showdomain.ErrInvalidDate},
		{"bad time", 7, showdomain.UpsertRequest{ID: "a", Name: "x", Date: "2025-03-12", Time: strPtr("25:00")}, showdomain.ErrInvalidTime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upsert(ctx, tc.orgID, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestListByDateRangeIsInclusiveAndScopedToOrg(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, req := range []showdomain.UpsertRequest{
		{ID: "before", Name: "A", Date: "2025-03-04"},
		{ID: "first", Name: "B", Date: "2025-03-05", Time: strPtr("19:00")},
		{ID: "last", Name: "C", Date: "2025-03-19"},
		{ID: "after", Name: "D", Date: "2025-03-20"},
	} {
		_, err := svc.Upsert(ctx, 7, req)
		require.NoError(t, err)
	}
	_, err := svc.Upsert(ctx, 8, showdomain.UpsertRequest{ID: "other", Name: "E", Date: "2025-03-10"})
	require.NoError(t, err)

	shows, err := svc.ListByDateRange(ctx, 7, "2025-03-19", "2025-03-05")
	require.NoError(t, err)

	ids := make([]string, 0, len(shows))
	for _, s := range shows {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"first", "last"}, ids)
}

func TestFindByIDMissingReturnsNil(t *testing.T) {
	svc, _ := newTestService(t)

	show, err := svc.FindByID(context.Background(), 7, "nope")
	require.NoError(t, err)
	assert.Nil(t, show)

	_, err = svc.FindByID(context.Background(), 7, "  ")
	assert.ErrorIs(t, err, showdomain.ErrInvalidID)
}
