package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetbite/pipeline/constants"
	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/llm"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestValidateExtractedName(t *testing.T) {
	_, err := ValidateExtractedName(llm.ExtractedFoodTruckDetails{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = ValidateExtractedName(llm.ExtractedFoodTruckDetails{Name: strPtr("   ")})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = ValidateExtractedName(llm.ExtractedFoodTruckDetails{Name: strPtr("Unknown Food Truck")})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	name, err := ValidateExtractedName(llm.ExtractedFoodTruckDetails{Name: strPtr("  Taco Bus ")})
	require.NoError(t, err)
	assert.Equal(t, "Taco Bus", name)
}

func TestMapDefaultsWhenEverythingMissing(t *testing.T) {
	got := MapExtractedDetails(llm.ExtractedFoodTruckDetails{}, "Taco Bus", "https://tacobus.example", false)

	assert.Equal(t, "Taco Bus", got.Name)
	assert.Equal(t, 0.0, got.CurrentLocation.Lat)
	assert.Equal(t, 0.0, got.CurrentLocation.Lng)
	assert.False(t, got.OperatingHours.AnyOpen())
	assert.Empty(t, got.Menu)
	assert.Equal(t, constants.DefaultQualityScore, got.DataQualityScore)
	assert.Equal(t, constants.VerificationPending, got.Verification)
	assert.Equal(t, []string{"https://tacobus.example"}, got.SourceURLs)
	assert.False(t, got.LastScrapedAt.IsZero())
}

func TestMapJoinsAddressParts(t *testing.T) {
	got := MapExtractedDetails(llm.ExtractedFoodTruckDetails{
		CurrentLocation: &llm.ExtractedLocation{
			Address: strPtr("123 Main St"),
			City:    strPtr("Austin"),
			State:   strPtr("TX"),
			ZipCode: strPtr("78701"),
			Lat:     floatPtr(30.27),
			Lng:     floatPtr(-97.74),
		},
	}, "Taco Bus", "", false)

	assert.Equal(t, "123 Main St, Austin, TX, 78701", got.CurrentLocation.Address)
	assert.Equal(t, 30.27, got.CurrentLocation.Lat)
	assert.Empty(t, got.SourceURLs)
}

func TestMapFallsBackToRawLocationText(t *testing.T) {
	got := MapExtractedDetails(llm.ExtractedFoodTruckDetails{
		CurrentLocation: &llm.ExtractedLocation{
			RawText: strPtr("corner of 5th and Lamar"),
		},
	}, "Taco Bus", "", false)

	assert.Equal(t, "corner of 5th and Lamar", got.CurrentLocation.Address)
}

func TestMapMenuPriceParsing(t *testing.T) {
	got := MapExtractedDetails(llm.ExtractedFoodTruckDetails{
		Menu: []llm.ExtractedMenuCategory{
			{
				Category: strPtr("Tacos"),
				Items: []llm.ExtractedMenuItem{
					{Name: strPtr("Al Pastor"), Price: 3.50},
					{Name: strPtr("Barbacoa"), Price: "$4.25"},
					{Name: strPtr("Mystery"), Price: "market price"},
				},
			},
			{
				// heading under "name" instead of "category"
				Name:  strPtr("Drinks"),
				Items: []llm.ExtractedMenuItem{{Name: strPtr("Horchata"), Price: "2"}},
			},
			{Items: []llm.ExtractedMenuItem{{}}},
		},
	}, "Taco Bus", "", false)

	require.Len(t, got.Menu, 3)
	assert.Equal(t, "Tacos", got.Menu[0].Name)
	require.NotNil(t, got.Menu[0].Items[0].Price)
	assert.Equal(t, 3.50, *got.Menu[0].Items[0].Price)
	require.NotNil(t, got.Menu[0].Items[1].Price)
	assert.Equal(t, 4.25, *got.Menu[0].Items[1].Price)
	assert.Nil(t, got.Menu[0].Items[2].Price)

	assert.Equal(t, "Drinks", got.Menu[1].Name)
	assert.Equal(t, "Uncategorized", got.Menu[2].Name)
	assert.Equal(t, "Unknown Item", got.Menu[2].Items[0].Name)
}

func TestMapHoursPartialWeek(t *testing.T) {
	closed := true
	got := MapExtractedDetails(llm.ExtractedFoodTruckDetails{
		OperatingHours: &llm.ExtractedOperatingHours{
			Monday:  &llm.ExtractedDailyHours{Open: strPtr("11:00"), Close: strPtr("21:00")},
			Tuesday: &llm.ExtractedDailyHours{Closed: &closed},
			// missing close makes the window unusable
			Friday: &llm.ExtractedDailyHours{Open: strPtr("11:00")},
		},
	}, "Taco Bus", "", false)

	assert.Equal(t, "11:00", got.OperatingHours.Monday.Open)
	assert.False(t, got.OperatingHours.Monday.Closed)
	assert.True(t, got.OperatingHours.Tuesday.Closed)
	assert.True(t, got.OperatingHours.Friday.Closed)
	assert.True(t, got.OperatingHours.Sunday.Closed)
}

func TestMapPriceRangeEnum(t *testing.T) {
	got := MapExtractedDetails(llm.ExtractedFoodTruckDetails{PriceRange: strPtr("$$")}, "Taco Bus", "", false)
	assert.Equal(t, "$$", got.PriceRange)

	got = MapExtractedDetails(llm.ExtractedFoodTruckDetails{PriceRange: strPtr("cheap")}, "Taco Bus", "", false)
	assert.Empty(t, got.PriceRange)
}

func TestMapDryRunFlagDoesNotChangeResult(t *testing.T) {
	in := llm.ExtractedFoodTruckDetails{Description: strPtr("best tacos in town")}
	wet := MapExtractedDetails(in, "Taco Bus", "https://tacobus.example", false)
	dry := MapExtractedDetails(in, "Taco Bus", "https://tacobus.example", true)

	assert.Equal(t, wet.Name, dry.Name)
	assert.Equal(t, wet.Description, dry.Description)
	assert.Equal(t, wet.SourceURLs, dry.SourceURLs)
}
