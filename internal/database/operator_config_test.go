package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/benvon/restaurant-finder/internal/models"
)

func TestAllowedOriginsSlice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "https://a.example.com", []string{"https://a.example.com"}},
		{"comma", "https://a.com, https://b.com", []string{"https://a.com", "https://b.com"}},
		{"dedup", "x, x, y", []string{"x", "y"}},
		{"trailing slash", "http://localhost:5173/", []string{"http://localhost:5173"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := AllowedOriginsSlice(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("AllowedOriginsSlice(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("AllowedOriginsSlice(%q)[%d] = %q, want %q", tt.raw, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCorsConfigRepository_GetMissing(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM cors_config").
		WithArgs(defaultConfigKey).
		WillReturnRows(sqlmock.NewRows([]string{"config_key"}))

	c, err := NewCorsConfigRepository(db).Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if c != nil {
		t.Errorf("Get() = %+v, want nil", c)
	}
}

func TestRatelimitConfigRepository_Set(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewRatelimitConfigRepository(db)

	mock.ExpectExec("INSERT INTO ratelimit_config").
		WithArgs(defaultConfigKey, "10-S", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Set(context.Background(), &models.RatelimitConfig{Rate: " 10-S "}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set(context.Background(), &models.RatelimitConfig{Rate: "  "}); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("Set() with empty rate error = %v, want ErrInvalidArgument", err)
	}
}
