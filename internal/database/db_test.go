package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// newMockDB returns a DB backed by sqlmock; expectations are verified on cleanup.
func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled sqlmock expectations: %v", err)
		}
		_ = sqlDB.Close()
	})

	return &DB{DB: sqlDB}, mock
}
