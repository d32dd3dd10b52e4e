package quality

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetbite/pipeline/constants"
	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/entity"
	"github.com/streetbite/pipeline/internal/repository"
)

func completeTruck() entity.FoodTruckSchema {
	return entity.FoodTruckSchema{
		Name:        "Taco Bus",
		Description: "best tacos in town",
		CurrentLocation: entity.LocationData{
			Lat: 30.27, Lng: -97.74, Address: "123 Main St", Timestamp: time.Now().UTC(),
		},
		OperatingHours: entity.OperatingHours{
			Monday:    entity.DailyHours{Open: "11:00", Close: "21:00"},
			Tuesday:   entity.DailyHours{Closed: true},
			Wednesday: entity.DailyHours{Closed: true},
			Thursday:  entity.DailyHours{Closed: true},
			Friday:    entity.DailyHours{Closed: true},
			Saturday:  entity.DailyHours{Closed: true},
			Sunday:    entity.DailyHours{Closed: true},
		},
		Menu: []entity.MenuCategory{
			{Name: "Tacos", Items: []entity.MenuItem{{Name: "Al Pastor"}}},
		},
		ContactInfo:   entity.ContactInfo{Phone: "512-555-0101"},
		Verification:  constants.VerificationPending,
		LastScrapedAt: time.Now().UTC(),
	}
}

func TestCalculateQualityScoreCompleteRecord(t *testing.T) {
	assert.InDelta(t, 1.0, CalculateQualityScore(completeTruck()), 1e-9)
}

func TestCalculateQualityScoreZeroGPSDropsExactlyGPSWeight(t *testing.T) {
	truck := completeTruck()
	truck.CurrentLocation.Lat = 0
	truck.CurrentLocation.Lng = 0
	got := CalculateQualityScore(truck)
	assert.InDelta(t, 1.0-constants.ScoreWeightGPS, got, 1e-9)
}

func TestCalculateQualityScoreIdempotent(t *testing.T) {
	truck := entity.FoodTruckSchema{Name: "Taco Bus"}
	first := CalculateQualityScore(truck)
	second := CalculateQualityScore(truck)
	assert.Equal(t, first, second)

	// adding a missing field strictly increases the score
	truck.Description = "best tacos in town"
	assert.Greater(t, CalculateQualityScore(truck), first)
}

func TestCalculateQualityScoreEmptyMenuCategoriesDoNotCount(t *testing.T) {
	truck := entity.FoodTruckSchema{
		Name: "Taco Bus",
		Menu: []entity.MenuCategory{{Name: "Tacos"}},
	}
	assert.InDelta(t, constants.ScoreWeightName, CalculateQualityScore(truck), 1e-9)
}

func newQualityTestRepo(t *testing.T) repository.TruckRepository {
	t.Helper()
	logger := slog.Default()
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, logger)
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(context.Background(), db, logger))
	t.Cleanup(func() { repository.Close(db, logger) })
	return repository.NewTruckRepository(db, logger)
}

func TestUpdateTruckQualityScorePersists(t *testing.T) {
	trucks := newQualityTestRepo(t)
	ctx := context.Background()

	truck := &entity.FoodTruck{FoodTruckSchema: completeTruck()}
	truck.DataQualityScore = constants.DefaultQualityScore
	require.NoError(t, trucks.CreateTruck(ctx, truck))

	scorer := NewScorer(trucks, slog.Default())
	score, err := scorer.UpdateTruckQualityScore(ctx, truck.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	stored, err := trucks.GetTruckByID(ctx, truck.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, stored.DataQualityScore, 1e-9)
}

func TestUpdateTruckQualityScoreNotFound(t *testing.T) {
	scorer := NewScorer(newQualityTestRepo(t), slog.Default())
	_, err := scorer.UpdateTruckQualityScore(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRescoreAll(t *testing.T) {
	trucks := newQualityTestRepo(t)
	ctx := context.Background()

	stale := &entity.FoodTruck{FoodTruckSchema: completeTruck()}
	stale.DataQualityScore = constants.DefaultQualityScore
	require.NoError(t, trucks.CreateTruck(ctx, stale))

	sparse := &entity.FoodTruck{FoodTruckSchema: entity.FoodTruckSchema{
		Name: "Mystery Wagon", LastScrapedAt: time.Now().UTC(),
	}}
	sparse.DataQualityScore = CalculateQualityScore(sparse.FoodTruckSchema)
	require.NoError(t, trucks.CreateTruck(ctx, sparse))

	scorer := NewScorer(trucks, slog.Default())
	changed, err := scorer.RescoreAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
}
