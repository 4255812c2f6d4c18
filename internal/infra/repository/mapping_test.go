package repository

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/totegamma/chatrelay/internal/domain"
	"github.com/totegamma/chatrelay/internal/infra/database"
)

func TestToMappingRowsKeepsLastDuplicate(t *testing.T) {
	rows := toMappingRows([]domain.MappingRule{
		{Domain: "a.com", ChannelID: "C1"},
		{Domain: "b.org", ChannelID: "C2"},
		{Domain: "a.com", ChannelID: "C3"},
	})

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Domain != "a.com" || rows[0].ChannelID != "C3" || rows[0].Position != 0 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Domain != "b.org" || rows[1].Position != 1 {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
}

func newMockMappingRepository(t *testing.T) (*MappingRepository, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open gorm: %v", err)
	}
	return NewMappingRepository(db), mock
}

func TestMappingRepositoryReplace(t *testing.T) {
	repo, mock := newMockMappingRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "chat_channels" WHERE 1 = 1`)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "chat_channels"`)).
		WithArgs("a.com", "C3", 0, "b.org", "C2", 1).
		WillReturnRows(sqlmock.NewRows([]string{"cdate"}).AddRow(time.Now()).AddRow(time.Now()))
	mock.ExpectCommit()

	err := repo.Replace(context.Background(), []domain.MappingRule{
		{Domain: "a.com", ChannelID: "C1"},
		{Domain: "b.org", ChannelID: "C2"},
		{Domain: "a.com", ChannelID: "C3"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMappingRepositoryReplaceEmpty(t *testing.T) {
	repo, mock := newMockMappingRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "chat_channels" WHERE 1 = 1`)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	if err := repo.Replace(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMappingRepositoryReplaceRollsBack(t *testing.T) {
	repo, mock := newMockMappingRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "chat_channels" WHERE 1 = 1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "chat_channels"`)).
		WillReturnError(fmt.Errorf("duplicate key"))
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), []domain.MappingRule{{Domain: "a.com", ChannelID: "C1"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMappingRepositoryList(t *testing.T) {
	repo, mock := newMockMappingRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "chat_channels" ORDER BY position asc`)).
		WillReturnRows(sqlmock.NewRows([]string{"domain", "channel_id", "position", "cdate"}).
			AddRow("b.org", "C2", 0, time.Now()).
			AddRow("a.com", "C1", 1, time.Now()))

	rules, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 2 || rules[0].Domain != "b.org" || rules[1].ChannelID != "C1" {
		t.Fatalf("unexpected rules: %+v", rules)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Runs against a real server when CHATRELAY_TEST_POSTGRES_DSN is set.
func TestMappingRepositoryPostgres(t *testing.T) {
	dsn := os.Getenv("CHATRELAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHATRELAY_TEST_POSTGRES_DSN not set")
	}

	db, err := database.NewPostgres(dsn)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := database.MigratePostgres(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	repo := NewMappingRepository(db)
	ctx := context.Background()
	t.Cleanup(func() { repo.Replace(ctx, nil) })

	if err := repo.Replace(ctx, []domain.MappingRule{
		{Domain: "a.com", ChannelID: "C1"},
		{Domain: "b.org", ChannelID: "C2"},
	}); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	if err := repo.Replace(ctx, []domain.MappingRule{
		{Domain: "c.net", ChannelID: "C3"},
		{Domain: "a.com", ChannelID: "C4"},
	}); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	rules, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rules) != 2 || rules[0] != (domain.MappingRule{Domain: "c.net", ChannelID: "C3"}) || rules[1] != (domain.MappingRule{Domain: "a.com", ChannelID: "C4"}) {
		t.Fatalf("unexpected rules after replace: %+v", rules)
	}

	if err := repo.Replace(ctx, nil); err != nil {
		t.Fatalf("empty replace: %v", err)
	}
	rules, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("expected no rules, got %+v", rules)
	}
}
