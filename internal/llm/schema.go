package llm

// BuildExtractedDetailsSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. It is the semantic shape contract for the full-details
// extraction: loose on optionals, strict on the types of whatever is present.
func BuildExtractedDetailsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":             map[string]any{"type": []string{"string", "null"}},
			"description":      map[string]any{"type": []string{"string", "null"}},
			"cuisine_type":     stringArrayProp(),
			"price_range":      map[string]any{"type": []string{"string", "null"}},
			"specialties":      stringArrayProp(),
			"current_location": locationProp(),
			"operating_hours":  hoursProp(),
			"menu":             menuProp(),
			"contact_info": map[string]any{
				"type": []string{"object", "null"},
				"properties": map[string]any{
					"phone":   map[string]any{"type": []string{"string", "null"}},
					"email":   map[string]any{"type": []string{"string", "null"}},
					"website": map[string]any{"type": []string{"string", "null"}},
				},
			},
			"social_media": map[string]any{
				"type": []string{"object", "null"},
				"properties": map[string]any{
					"instagram": map[string]any{"type": []string{"string", "null"}},
					"facebook":  map[string]any{"type": []string{"string", "null"}},
					"twitter":   map[string]any{"type": []string{"string", "null"}},
					"tiktok":    map[string]any{"type": []string{"string", "null"}},
					"yelp":      map[string]any{"type": []string{"string", "null"}},
				},
			},
			"source_url": map[string]any{"type": []string{"string", "null"}},
		},
	}
}

// BuildMenuSchema is the shape contract for the menu-only extraction.
func BuildMenuSchema() map[string]any {
	return menuProp()
}

// BuildLocationSchema is the shape contract for the location-only extraction.
func BuildLocationSchema() map[string]any {
	return locationProp()
}

// BuildHoursSchema is the shape contract for the hours-only extraction.
func BuildHoursSchema() map[string]any {
	return hoursProp()
}

// BuildSentimentSchema is the shape contract for the sentiment analysis output.
func BuildSentimentSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"score"},
		"properties": map[string]any{
			"score":      map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"aspects": map[string]any{
				"type":                 []string{"object", "null"},
				"additionalProperties": map[string]any{"type": "number"},
			},
			"summary":  map[string]any{"type": []string{"string", "null"}},
			"keywords": stringArrayProp(),
		},
	}
}

func stringArrayProp() map[string]any {
	return map[string]any{
		"type":  []string{"array", "null"},
		"items": map[string]any{"type": "string"},
	}
}

func locationProp() map[string]any {
	return map[string]any{
		"type": []string{"object", "null"},
		"properties": map[string]any{
			"address":  map[string]any{"type": []string{"string", "null"}},
			"city":     map[string]any{"type": []string{"string", "null"}},
			"state":    map[string]any{"type": []string{"string", "null"}},
			"zip_code": map[string]any{"type": []string{"string", "null"}},
			"lat":      map[string]any{"type": []string{"number", "null"}},
			"lng":      map[string]any{"type": []string{"number", "null"}},
			"raw_text": map[string]any{"type": []string{"string", "null"}},
		},
	}
}

func dailyHoursProp() map[string]any {
	return map[string]any{
		"type": []string{"object", "null"},
		"properties": map[string]any{
			"open":   map[string]any{"type": []string{"string", "null"}},
			"close":  map[string]any{"type": []string{"string", "null"}},
			"closed": map[string]any{"type": []string{"boolean", "null"}},
		},
	}
}

func hoursProp() map[string]any {
	days := map[string]any{}
	for _, d := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		days[d] = dailyHoursProp()
	}
	return map[string]any{
		"type":       []string{"object", "null"},
		"properties": days,
	}
}

func menuProp() map[string]any {
	return map[string]any{
		"type": []string{"array", "null"},
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{"type": []string{"string", "null"}},
				"name":     map[string]any{"type": []string{"string", "null"}},
				"items": map[string]any{
					"type": []string{"array", "null"},
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name":        map[string]any{"type": []string{"string", "null"}},
							"description": map[string]any{"type": []string{"string", "null"}},
							// price tolerated as number or "$12.99"; the mapper normalizes
							"price":        map[string]any{"type": []string{"number", "string", "null"}},
							"dietary_tags": stringArrayProp(),
						},
					},
				},
			},
		},
	}
}
