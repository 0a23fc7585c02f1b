package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/benvon/restaurant-finder/internal/models"
)

var restaurantRowColumns = []string{
	"id", "place_id", "name", "address", "lat", "lng", "rating", "user_ratings_total",
	"photo_reference", "cuisines", "price_level", "created_at", "updated_at",
}

func TestRestaurantRepository_InsertIfAbsent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		rowsAffected int64
		execErr      error
		wantInserted bool
		wantErr      error
	}{
		{name: "new place inserted", rowsAffected: 1, wantInserted: true},
		{name: "existing place left untouched", rowsAffected: 0, wantInserted: false},
		{name: "storage failure", execErr: errors.New("connection refused"), wantErr: models.ErrStorage},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db, mock := newMockDB(t)

			exp := mock.ExpectExec(`INSERT INTO restaurants .* ON CONFLICT \(place_id\) DO NOTHING`).
				WithArgs("place-1", "Noodle Bar", "1 Main St", 25.03, 121.56, 4.5, 120,
					nil, sqlmock.AnyArg(), nil, sqlmock.AnyArg(), sqlmock.AnyArg())
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))
			}

			inserted, err := NewRestaurantRepository(db).InsertIfAbsent(context.Background(), &models.Restaurant{
				PlaceID:          "place-1",
				Name:             "Noodle Bar",
				Address:          "1 Main St",
				Lat:              25.03,
				Lng:              121.56,
				Rating:           4.5,
				UserRatingsTotal: 120,
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("InsertIfAbsent() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("InsertIfAbsent() error = %v", err)
			}
			if inserted != tt.wantInserted {
				t.Errorf("InsertIfAbsent() = %v, want %v", inserted, tt.wantInserted)
			}
		})
	}
}

func TestRestaurantRepository_GetByPlaceID(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .* FROM restaurants WHERE place_id = \\$1").
		WithArgs("place-1").
		WillReturnRows(sqlmock.NewRows(restaurantRowColumns).
			AddRow(int64(42), "place-1", "Noodle Bar", "1 Main St", 25.03, 121.56, 4.5, int64(120),
				"photo-ref", []byte("{restaurant,food}"), int64(2), now, now))

	rest, err := NewRestaurantRepository(db).GetByPlaceID(context.Background(), "place-1")
	if err != nil {
		t.Fatalf("GetByPlaceID() error = %v", err)
	}
	if rest.ID != 42 {
		t.Errorf("ID = %d, want 42", rest.ID)
	}
	if rest.PhotoReference == nil || *rest.PhotoReference != "photo-ref" {
		t.Errorf("PhotoReference = %v, want photo-ref", rest.PhotoReference)
	}
	if len(rest.Cuisines) != 2 || rest.Cuisines[1] != "food" {
		t.Errorf("Cuisines = %v, want [restaurant food]", rest.Cuisines)
	}
	if rest.PriceLevel == nil || *rest.PriceLevel != 2 {
		t.Errorf("PriceLevel = %v, want 2", rest.PriceLevel)
	}
}

func TestRestaurantRepository_GetByID_NotFound(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .* FROM restaurants WHERE id = \\$1").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(restaurantRowColumns))

	_, err := NewRestaurantRepository(db).GetByID(context.Background(), 9)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestRestaurantRepository_Refresh(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewRestaurantRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("UPDATE restaurants SET").
		WithArgs(int64(42), "New Name", "2 Main St", 1.0, 2.0, 4.0, 10, nil, sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectQuery("UPDATE restaurants SET").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

	rest := &models.Restaurant{ID: 42, Name: "New Name", Address: "2 Main St", Lat: 1, Lng: 2, Rating: 4, UserRatingsTotal: 10}
	if err := repo.Refresh(context.Background(), rest); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !rest.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", rest.UpdatedAt, now)
	}

	if err := repo.Refresh(context.Background(), &models.Restaurant{ID: 43}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Refresh() on missing row error = %v, want ErrNotFound", err)
	}
}

func TestRestaurantRepository_ClaimRefresh(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		want    bool
		wantErr error
	}{
		{
			name: "first claim",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE restaurants SET refresh_requested_at").
					WithArgs(int64(7), sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
			},
			want: true,
		},
		{
			name: "already claimed",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE restaurants SET refresh_requested_at").
					WithArgs(int64(7), sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			want: false,
		},
		{
			name: "storage failure",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("UPDATE restaurants SET refresh_requested_at").
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: models.ErrStorage,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, mock := newMockDB(t)
			tt.setup(mock)

			got, err := NewRestaurantRepository(db).ClaimRefresh(context.Background(), 7, time.Hour)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ClaimRefresh() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ClaimRefresh() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ClaimRefresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRestaurantRepository_Ping(t *testing.T) {
	t.Parallel()

	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer func() { _ = sqlDB.Close() }()

	mock.ExpectPing().WillReturnError(errors.New("down"))

	err = NewRestaurantRepository(&DB{DB: sqlDB}).Ping(context.Background())
	if !errors.Is(err, models.ErrStorage) {
		t.Fatalf("Ping() error = %v, want ErrStorage", err)
	}
}
