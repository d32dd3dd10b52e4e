package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetbite/pipeline/constants"
	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/entity"
)

func sampleTruck(name string, lat, lng float64) *entity.FoodTruck {
	return &entity.FoodTruck{
		FoodTruckSchema: entity.FoodTruckSchema{
			Name: name,
			CurrentLocation: entity.LocationData{
				Lat: lat, Lng: lng, Address: "123 Main St", Timestamp: time.Now().UTC(),
			},
			DataQualityScore: constants.DefaultQualityScore,
			Verification:     constants.VerificationPending,
			SourceURLs:       []string{"https://" + name + ".example"},
			LastScrapedAt:    time.Now().UTC(),
		},
	}
}

func TestTruckRoundTrip(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()

	truck := sampleTruck("tacobus", 30.27, -97.74)
	truck.Menu = []entity.MenuCategory{{Name: "Tacos", Items: []entity.MenuItem{{Name: "Al Pastor"}}}}
	require.NoError(t, repos.trucks.CreateTruck(ctx, truck))
	require.NotEqual(t, uuid.Nil, truck.ID)

	got, err := repos.trucks.GetTruckByID(ctx, truck.ID)
	require.NoError(t, err)
	assert.Equal(t, "tacobus", got.Name)
	assert.Equal(t, 30.27, got.CurrentLocation.Lat)
	require.Len(t, got.Menu, 1)
	assert.Equal(t, "Al Pastor", got.Menu[0].Items[0].Name)

	got.Description = "best tacos in town"
	require.NoError(t, repos.trucks.UpdateTruck(ctx, got))
	again, err := repos.trucks.GetTruckByID(ctx, truck.ID)
	require.NoError(t, err)
	assert.Equal(t, "best tacos in town", again.Description)
}

func TestGetTrucksByLocationBucket(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()

	near1 := sampleTruck("tacobus", 30.271, -97.741)
	near2 := sampleTruck("tacotruck", 30.272, -97.742)
	far := sampleTruck("pizzawagon", 41.88, -87.63)
	for _, tr := range []*entity.FoodTruck{near1, near2, far} {
		require.NoError(t, repos.trucks.CreateTruck(ctx, tr))
	}

	got, err := repos.trucks.GetTrucksByLocation(ctx, near1.CurrentLocation.BucketKey())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestExistsBySourceURL(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, repos.trucks.CreateTruck(ctx, sampleTruck("tacobus", 0, 0)))

	exists, err := repos.trucks.ExistsBySourceURL(ctx, "https://tacobus.example")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repos.trucks.ExistsBySourceURL(ctx, "https://other.example")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExistsBySourceURLEscapesWildcards(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()

	truck := sampleTruck("tacobus", 0, 0)
	truck.SourceURLs = []string{"https://example.com/myXtruck"}
	require.NoError(t, repos.trucks.CreateTruck(ctx, truck))

	// LIKE wildcards in the queried URL must match literally
	exists, err := repos.trucks.ExistsBySourceURL(ctx, "https://example.com/my_truck")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repos.trucks.ExistsBySourceURL(ctx, "https://example.com/my%")
	require.NoError(t, err)
	assert.False(t, exists)

	other := sampleTruck("pizzawagon", 0, 0)
	other.SourceURLs = []string{"https://example.com/my_truck"}
	require.NoError(t, repos.trucks.CreateTruck(ctx, other))

	exists, err = repos.trucks.ExistsBySourceURL(ctx, "https://example.com/my_truck")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetStaleTrucks(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()

	stale := sampleTruck("tacobus", 0, 0)
	stale.LastScrapedAt = time.Now().UTC().AddDate(0, 0, -10)
	fresh := sampleTruck("pizzawagon", 0, 0)
	require.NoError(t, repos.trucks.CreateTruck(ctx, stale))
	require.NoError(t, repos.trucks.CreateTruck(ctx, fresh))

	cutoff := time.Now().UTC().AddDate(0, 0, -constants.StalenessThresholdDays)
	got, err := repos.trucks.GetStaleTrucks(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)
}

func TestUpdateQualityScore(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()

	truck := sampleTruck("tacobus", 0, 0)
	require.NoError(t, repos.trucks.CreateTruck(ctx, truck))
	require.NoError(t, repos.trucks.UpdateQualityScore(ctx, truck.ID, 0.85))

	got, err := repos.trucks.GetTruckByID(ctx, truck.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.85, got.DataQualityScore)

	err = repos.trucks.UpdateQualityScore(ctx, uuid.New(), 0.5)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteTruck(t *testing.T) {
	repos := newTestDB(t)
	ctx := context.Background()

	truck := sampleTruck("tacobus", 0, 0)
	require.NoError(t, repos.trucks.CreateTruck(ctx, truck))
	require.NoError(t, repos.trucks.DeleteTruck(ctx, truck.ID))

	_, err := repos.trucks.GetTruckByID(ctx, truck.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repos.trucks.DeleteTruck(ctx, truck.ID), common.ErrNotFound)
}
