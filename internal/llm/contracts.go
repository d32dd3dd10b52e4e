package llm

import "context"

// ExtractedLocation is the untrusted location bag returned by the model.
type ExtractedLocation struct {
	Address *string  `json:"address"`
	City    *string  `json:"city"`
	State   *string  `json:"state"`
	ZipCode *string  `json:"zip_code"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	RawText *string  `json:"raw_text"`
}

// ExtractedDailyHours mirrors entity.DailyHours but keeps everything optional.
type ExtractedDailyHours struct {
	Open   *string `json:"open"`
	Close  *string `json:"close"`
	Closed *bool   `json:"closed"`
}

type ExtractedOperatingHours struct {
	Monday    *ExtractedDailyHours `json:"monday"`
	Tuesday   *ExtractedDailyHours `json:"tuesday"`
	Wednesday *ExtractedDailyHours `json:"wednesday"`
	Thursday  *ExtractedDailyHours `json:"thursday"`
	Friday    *ExtractedDailyHours `json:"friday"`
	Saturday  *ExtractedDailyHours `json:"saturday"`
	Sunday    *ExtractedDailyHours `json:"sunday"`
}

// ExtractedMenuItem tolerates prices as numbers or strings like "$12.99".
type ExtractedMenuItem struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       any      `json:"price"`
	DietaryTags []string `json:"dietary_tags"`
}

type ExtractedMenuCategory struct {
	// Models alternate between "category" and "name" for the heading.
	Category *string             `json:"category"`
	Name     *string             `json:"name"`
	Items    []ExtractedMenuItem `json:"items"`
}

type ExtractedContactInfo struct {
	Phone   *string `json:"phone"`
	Email   *string `json:"email"`
	Website *string `json:"website"`
}

type ExtractedSocialMedia struct {
	Instagram *string `json:"instagram"`
	Facebook  *string `json:"facebook"`
	Twitter   *string `json:"twitter"`
	TikTok    *string `json:"tiktok"`
	Yelp      *string `json:"yelp"`
}

// ExtractedFoodTruckDetails is the full details bag returned by the model for
// one page. Every field is untrusted input: the schema mapper validates types
// and fills defaults before anything reaches storage.
type ExtractedFoodTruckDetails struct {
	Name            *string                  `json:"name"`
	Description     *string                  `json:"description"`
	CuisineType     []string                 `json:"cuisine_type"`
	PriceRange      *string                  `json:"price_range"`
	Specialties     []string                 `json:"specialties"`
	CurrentLocation *ExtractedLocation       `json:"current_location"`
	OperatingHours  *ExtractedOperatingHours `json:"operating_hours"`
	Menu            []ExtractedMenuCategory  `json:"menu"`
	ContactInfo     *ExtractedContactInfo    `json:"contact_info"`
	SocialMedia     *ExtractedSocialMedia    `json:"social_media"`
	SourceURL       *string                  `json:"source_url"`
}

// SentimentResult is the typed output of the review-sentiment prompt.
type SentimentResult struct {
	Score      float64            `json:"score"`
	Confidence float64            `json:"confidence"`
	Aspects    map[string]float64 `json:"aspects"`
	Summary    string             `json:"summary"`
	Keywords   []string           `json:"keywords"`
}

// Completer is the LLM collaborator: prompt in, raw text out. Implementations
// report the token count they consumed so daily usage accounting stays accurate.
type Completer interface {
	Complete(ctx context.Context, prompt string) (text string, tokens int, err error)
}
