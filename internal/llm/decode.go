package llm

import (
	"encoding/json"

	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/jsonrepair"
)

// Typed decode entry points. Each one runs the same two layers: syntactic
// repair parsing (failure wraps common.ErrParse) and then a semantic shape
// check against the extraction kind's schema (failure wraps
// common.ErrSchemaMismatch). Callers can tell the two apart with errors.Is.

func decode[T any](text string, schemaMap map[string]any) (T, error) {
	var zero T

	var generic any
	if err := jsonrepair.Parse(text, &generic); err != nil {
		return zero, err
	}
	raw, err := json.Marshal(generic)
	if err != nil {
		return zero, common.NewAppError("SCHEMA_MISMATCH", "re-encode parsed value", common.ErrSchemaMismatch)
	}
	if err := ValidateJSONAgainstSchema(schemaMap, raw); err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, common.NewAppError("SCHEMA_MISMATCH", err.Error(), common.ErrSchemaMismatch)
	}
	return out, nil
}

// DecodeExtractedDetails parses the full-details extraction output.
func DecodeExtractedDetails(text string) (ExtractedFoodTruckDetails, error) {
	return decode[ExtractedFoodTruckDetails](text, BuildExtractedDetailsSchema())
}

// DecodeMenu parses the menu-only extraction output.
func DecodeMenu(text string) ([]ExtractedMenuCategory, error) {
	return decode[[]ExtractedMenuCategory](text, BuildMenuSchema())
}

// DecodeLocation parses the location-only extraction output.
func DecodeLocation(text string) (ExtractedLocation, error) {
	return decode[ExtractedLocation](text, BuildLocationSchema())
}

// DecodeHours parses the operating-hours extraction output.
func DecodeHours(text string) (ExtractedOperatingHours, error) {
	return decode[ExtractedOperatingHours](text, BuildHoursSchema())
}

// DecodeSentiment parses the review-sentiment output.
func DecodeSentiment(text string) (SentimentResult, error) {
	return decode[SentimentResult](text, BuildSentimentSchema())
}
