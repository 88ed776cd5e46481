package users

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/keybud/internal/common"
	"github.com/dmitrijs2005/keybud/internal/server/models"
	"github.com/google/go-cmp/cmp"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var userColumns = []string{"id", "google_id", "email", "username", "created_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(google_id,\s*email,\s*username\)\s*VALUES\s*\(NULLIF\(\$1,\s*''\),\s*\$2,\s*\$3\)\s*RETURNING\s+id,\s*created_at\s*$`

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(q).
		WithArgs("g-1", "alice@example.com", "userg-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now))

	got, err := repo.Create(context.Background(), &models.User{GoogleID: "g-1", Email: "alice@example.com", UserName: "userg-1"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	want := &models.User{ID: 42, GoogleID: "g-1", Email: "alice@example.com", UserName: "userg-1", CreatedAt: now}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("user mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "a@b"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestLookups(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	want := &models.User{ID: 7, GoogleID: "g", Email: "e@x", UserName: "u", CreatedAt: now}

	tests := []struct {
		name  string
		query string
		args  []any
		call  func(r *PostgresRepository) (*models.User, error)
	}{
		{
			name:  "by id",
			query: `(?s)^SELECT\s+id,\s*COALESCE\(google_id,\s*''\),\s*email,\s*username,\s*created_at\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`,
			args:  []any{int64(7)},
			call:  func(r *PostgresRepository) (*models.User, error) { return r.GetByID(context.Background(), 7) },
		},
		{
			name:  "by email",
			query: `(?s)^SELECT\s+.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`,
			args:  []any{"e@x"},
			call:  func(r *PostgresRepository) (*models.User, error) { return r.GetByEmail(context.Background(), "e@x") },
		},
		{
			name:  "by google id or email",
			query: `(?s)^SELECT\s+.*FROM\s+users\s+WHERE\s+google_id\s*=\s*\$1\s+OR\s+email\s*=\s*\$2\s+ORDER\s+BY\s+id\s+LIMIT\s+1\s*$`,
			args:  []any{"g", "e@x"},
			call: func(r *PostgresRepository) (*models.User, error) {
				return r.FindByGoogleIDOrEmail(context.Background(), "g", "e@x")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			args := make([]driver.Value, 0, len(tt.args))
			for _, a := range tt.args {
				args = append(args, a)
			}
			mock.ExpectQuery(tt.query).WithArgs(args...).
				WillReturnRows(sqlmock.NewRows(userColumns).AddRow(int64(7), "g", "e@x", "u", now))

			got, err := tt.call(repo)
			if err != nil {
				t.Fatalf("lookup error: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("user mismatch (-want +got):\n%s", diff)
			}
		})

		t.Run(tt.name+" not found", func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectQuery(tt.query).WillReturnError(sql.ErrNoRows)

			_, err := tt.call(repo)
			if !errors.Is(err, common.ErrorNotFound) {
				t.Fatalf("expected ErrorNotFound, got %v", err)
			}
		})
	}
}
