package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRunner(t *testing.T, migrations, seeds string) (*Runner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewRunner(db, migrations, seeds), mock
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func expectBookkeepingTables(mock sqlmock.Sqlmock) {
	mock.ExpectExec(`create table if not exists schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create table if not exists schema_seeds`).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestUpSkipsAppliedMigrations(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "0001_first.up.sql", "create table a (id int);")
	writeScript(t, dir, "0002_second.up.sql", "create table b (id int);")
	writeScript(t, dir, "0001_first.down.sql", "drop table a;")

	r, mock := newMockRunner(t, dir, "")

	expectBookkeepingTables(mock)
	mock.ExpectQuery(`select name from schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_first.up.sql"))

	// Only the pending script runs.
	mock.ExpectBegin()
	mock.ExpectExec(`create table b`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`insert into schema_migrations`).
		WithArgs("0002_second.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := r.Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
}

func TestUpRunsEachStatementInOneTransaction(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "0001_pair.up.sql", "create table a (id int);\ncreate index a_id on a (id);")

	r, mock := newMockRunner(t, dir, "")

	expectBookkeepingTables(mock)
	mock.ExpectQuery(`select name from schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec(`create table a`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create index a_id`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`insert into schema_migrations`).
		WithArgs("0001_pair.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := r.Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
}

func TestDownRollsBackLastMigration(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "0001_first.up.sql", "create table a (id int);")
	writeScript(t, dir, "0001_first.down.sql", "drop table a;")

	r, mock := newMockRunner(t, dir, "")

	expectBookkeepingTables(mock)
	mock.ExpectQuery(`select name from schema_migrations order by applied_at`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_first.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(`drop table a`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`delete from schema_migrations where name = \$1`).
		WithArgs("0001_first.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := r.Down(context.Background()); err != nil {
		t.Fatalf("Down: %v", err)
	}
}

func TestDownWithoutHistoryFails(t *testing.T) {
	r, mock := newMockRunner(t, t.TempDir(), "")

	expectBookkeepingTables(mock)
	mock.ExpectQuery(`select name from schema_migrations order by applied_at`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	if err := r.Down(context.Background()); err == nil {
		t.Fatalf("expected an error with no applied migrations")
	}
}

func TestDownMissingCounterpartFails(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "0001_first.up.sql", "create table a (id int);")

	r, mock := newMockRunner(t, dir, "")

	expectBookkeepingTables(mock)
	mock.ExpectQuery(`select name from schema_migrations order by applied_at`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_first.up.sql"))

	err := r.Down(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing down migration") {
		t.Fatalf("expected a missing down migration error, got %v", err)
	}
}

func TestSeedRecordsScripts(t *testing.T) {
	seeds := t.TempDir()
	writeScript(t, seeds, "0001_perms.sql", "insert into permissions (code) values ('user:read');")

	r, mock := newMockRunner(t, "", seeds)

	expectBookkeepingTables(mock)
	mock.ExpectQuery(`select name from schema_seeds`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec(`insert into permissions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`insert into schema_seeds`).
		WithArgs("0001_perms.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := r.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
}

func TestStatusReturnsHistoryInOrder(t *testing.T) {
	r, mock := newMockRunner(t, t.TempDir(), "")

	expectBookkeepingTables(mock)
	mock.ExpectQuery(`select name from schema_migrations order by applied_at`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow("0001_first.up.sql").
			AddRow("0002_second.up.sql"))

	names, err := r.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(names) != 2 || names[0] != "0001_first.up.sql" {
		t.Fatalf("unexpected history: %v", names)
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("select 1; select 'a;b'; select 2")
	if len(got) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(got), got)
	}
	if !strings.Contains(got[1], "'a;b'") {
		t.Fatalf("semicolon inside a string literal must not split: %q", got[1])
	}
}
