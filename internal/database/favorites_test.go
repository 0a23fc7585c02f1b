package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func TestFavoriteRepository_Add(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	tests := []struct {
		name        string
		result      int64
		execErr     error
		wantCreated bool
		wantErr     error
	}{
		{name: "created", result: 1, wantCreated: true},
		{name: "already favorited", result: 0, wantCreated: false},
		{name: "restaurant deleted concurrently", execErr: &pq.Error{Code: pqForeignKeyViolation}, wantErr: models.ErrNotFound},
		{name: "storage failure", execErr: errors.New("timeout"), wantErr: models.ErrStorage},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db, mock := newMockDB(t)

			exp := mock.ExpectExec(`INSERT INTO favorites .* ON CONFLICT \(user_id, restaurant_id\) DO NOTHING`).
				WithArgs(userID, int64(7), sqlmock.AnyArg())
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, tt.result))
			}

			created, err := NewFavoriteRepository(db).Add(context.Background(), userID, 7)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Add() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Add() error = %v", err)
			}
			if created != tt.wantCreated {
				t.Errorf("Add() = %v, want %v", created, tt.wantCreated)
			}
		})
	}
}

func TestFavoriteRepository_Remove(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	db, mock := newMockDB(t)
	repo := NewFavoriteRepository(db)

	mock.ExpectExec("DELETE FROM favorites").
		WithArgs(userID, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM favorites").
		WithArgs(userID, int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Remove(context.Background(), userID, 7); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := repo.Remove(context.Background(), userID, 8); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Remove() of non-favorite error = %v, want ErrNotFound", err)
	}
}

func TestFavoriteRepository_Exists(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(userID, int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewFavoriteRepository(db).Exists(context.Background(), userID, 3)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !ok {
		t.Error("Exists() = false, want true")
	}
}

func TestFavoriteRepository_ListByUser(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	columns := append(append([]string{}, restaurantRowColumns...), "favorite_id", "favorited_at")
	mock.ExpectQuery("ORDER BY f.created_at DESC").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(2), "p2", "Second", "", 0.0, 0.0, 0.0, int64(0), nil, []byte("{}"), nil, now, now, int64(20), now).
			AddRow(int64(1), "p1", "First", "", 0.0, 0.0, 0.0, int64(0), nil, []byte("{}"), nil, now, now, int64(10), now.Add(-time.Hour)))

	favorites, err := NewFavoriteRepository(db).ListByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(favorites) != 2 {
		t.Fatalf("ListByUser() returned %d rows, want 2", len(favorites))
	}
	if favorites[0].PlaceID != "p2" || favorites[0].FavoriteID != 20 {
		t.Errorf("first favorite = %+v, want p2/20", favorites[0])
	}
	for _, f := range favorites {
		if !f.IsFavorite {
			t.Errorf("favorite %s has IsFavorite=false", f.PlaceID)
		}
	}
}

func TestFavoriteRepository_ListByUser_Empty(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	db, mock := newMockDB(t)
	columns := append(append([]string{}, restaurantRowColumns...), "favorite_id", "favorited_at")
	mock.ExpectQuery("FROM favorites").WithArgs(userID).WillReturnRows(sqlmock.NewRows(columns))

	favorites, err := NewFavoriteRepository(db).ListByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if favorites == nil || len(favorites) != 0 {
		t.Errorf("ListByUser() = %v, want empty non-nil slice", favorites)
	}
}
