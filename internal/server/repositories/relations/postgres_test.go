package relations

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/transmute/internal/common"
)

const insertRelation = `(?s)^\s*INSERT\s+INTO\s+conversion_relations\b.*VALUES\s*\(\$1, \$2, \$3\)\s+ON\s+CONFLICT\s+DO\s+NOTHING\s*$`

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertRelation).
		WithArgs("orig-1", "conv-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), "orig-1", "conv-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_ConflictIsInvalidRelation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertRelation).
		WithArgs("orig-1", "conv-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), "orig-1", "conv-2")
	if !errors.Is(err, common.ErrInvalidRelation) {
		t.Fatalf("want ErrInvalidRelation, got %v", err)
	}
}

func TestCreate_ForeignKeyIsInvalidRelation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertRelation).
		WithArgs("ghost", "conv-1", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation, Message: "violates foreign key constraint"})

	if err := repo.Create(context.Background(), "ghost", "conv-1"); !errors.Is(err, common.ErrInvalidRelation) {
		t.Fatalf("want ErrInvalidRelation, got %v", err)
	}
}

func TestCreate_RejectsBadIDsWithoutQuery(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	for _, ids := range [][2]string{{"", "c"}, {"o", " "}, {"same", "same"}} {
		if err := repo.Create(context.Background(), ids[0], ids[1]); !errors.Is(err, common.ErrInvalidRelation) {
			t.Fatalf("%v: want ErrInvalidRelation, got %v", ids, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no query expected: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertRelation).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), "o", "c")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if errors.Is(err, common.ErrInvalidRelation) {
		t.Fatal("plain db errors must not look like invariant violations")
	}
}

func TestCreate_RowsAffectedErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertRelation).WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))

	err := repo.Create(context.Background(), "o", "c")
	if err == nil || !regexp.MustCompile(`rows affected error: .*rows-err`).MatchString(err.Error()) {
		t.Fatalf("expected rows affected error, got %v", err)
	}
}

func TestGetConvertedID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `SELECT converted_file_id FROM conversion_relations WHERE original_file_id=\$1`
	mock.ExpectQuery(q).WithArgs("orig-1").WillReturnRows(sqlmock.NewRows([]string{"converted_file_id"}).AddRow("conv-1"))
	mock.ExpectQuery(q).WithArgs("orig-2").WillReturnRows(sqlmock.NewRows([]string{"converted_file_id"}))
	mock.ExpectQuery(q).WithArgs("orig-3").WillReturnError(errors.New("db err"))

	got, err := repo.GetConvertedID(context.Background(), "orig-1")
	if err != nil || got != "conv-1" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := repo.GetConvertedID(context.Background(), "orig-2"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
	if _, err := repo.GetConvertedID(context.Background(), "orig-3"); err == nil || errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want wrapped db error, got %v", err)
	}
}

func TestGetOriginalID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT original_file_id FROM conversion_relations WHERE converted_file_id=\$1`).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"original_file_id"}).AddRow("orig-1"))

	got, err := repo.GetOriginalID(context.Background(), "conv-1")
	if err != nil || got != "orig-1" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestDeleteByOriginal(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `DELETE FROM conversion_relations WHERE original_file_id=\$1`
	mock.ExpectExec(q).WithArgs("orig-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("orig-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs("orig-1").WillReturnError(errors.New("db err"))

	if err := repo.DeleteByOriginal(context.Background(), "orig-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.DeleteByOriginal(context.Background(), "orig-1"); err != nil {
		t.Fatalf("second delete must be a no-op, got %v", err)
	}
	err := repo.DeleteByOriginal(context.Background(), "orig-1")
	if err == nil || !regexp.MustCompile(`failed to delete relation: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT original_file_id, converted_file_id, created_at FROM conversion_relations ORDER BY`).
		WillReturnRows(sqlmock.NewRows([]string{"original_file_id", "converted_file_id", "created_at"}).
			AddRow("o1", "c1", now).
			AddRow("o2", "c2", now))

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[1].ConvertedFileID != "c2" {
		t.Fatalf("unexpected rows: %+v", got)
	}
}
