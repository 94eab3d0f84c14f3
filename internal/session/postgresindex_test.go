package session

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockPostgresIndex(t *testing.T) (*PostgresIndex, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sessions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare("INSERT INTO sessions")
	mock.ExpectPrepare("SELECT (.+) FROM sessions WHERE work_dir")
	mock.ExpectPrepare("SELECT (.+) FROM sessions WHERE id")
	mock.ExpectPrepare("DELETE FROM sessions")

	idx, err := newPostgresIndexFromDB(db)
	if err != nil {
		t.Fatalf("newPostgresIndexFromDB: %v", err)
	}
	return idx, mock
}

func TestPostgresIndexUpsert(t *testing.T) {
	idx, mock := newMockPostgresIndex(t)
	defer idx.Close()

	now := time.Now()
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("s1", "/work", "/work/ctx.jsonl", "title", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := idx.Upsert(context.Background(), Summary{ID: "s1", WorkDir: "/work", ContextFile: "/work/ctx.jsonl", Title: "title", UpdatedAt: now})
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresIndexGetReturnsNotFound(t *testing.T) {
	idx, mock := newMockPostgresIndex(t)
	defer idx.Close()

	rows := sqlmock.NewRows([]string{"id", "work_dir", "context_file", "title", "updated_at"})
	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE id").WithArgs("ghost").WillReturnRows(rows)

	_, err := idx.Get(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected an error for a missing id")
	}
}

func TestPostgresIndexList(t *testing.T) {
	idx, mock := newMockPostgresIndex(t)
	defer idx.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "work_dir", "context_file", "title", "updated_at"}).
		AddRow("s1", "/work", "/work/ctx.jsonl", "title", now)
	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE work_dir").WithArgs("/work").WillReturnRows(rows)

	out, err := idx.List(context.Background(), "/work")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != "s1" {
		t.Fatalf("got %+v", out)
	}
}

func TestPostgresIndexDelete(t *testing.T) {
	idx, mock := newMockPostgresIndex(t)
	defer idx.Close()

	mock.ExpectExec("DELETE FROM sessions").WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := idx.Delete(context.Background(), "s1"); err != nil {
		t.Fatal(err)
	}
}
