package mapper

import (
	"strconv"
	"strings"
	"time"

	"github.com/streetbite/pipeline/constants"
	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/entity"
	"github.com/streetbite/pipeline/internal/llm"
)

// ValidateExtractedName decides whether an extraction is worth keeping.
// Records with a missing, blank, or placeholder name are discarded so the
// store never accumulates "Unknown Food Truck" rows.
func ValidateExtractedName(extracted llm.ExtractedFoodTruckDetails) (string, error) {
	if extracted.Name == nil {
		return "", common.WrapError(common.ErrInvalidInput, "extraction has no truck name")
	}
	name := strings.TrimSpace(*extracted.Name)
	if name == "" || strings.EqualFold(name, "unknown food truck") {
		return "", common.WrapError(common.ErrInvalidInput, "extraction has placeholder truck name")
	}
	return name, nil
}

// MapExtractedDetails converts the untrusted extraction bag into a canonical
// truck record. Pure: no I/O, no persistence. Missing optionals get explicit
// defaults, mistyped values are dropped rather than propagated. isDryRun does
// not change the result; it is threaded through so the caller decides whether
// to persist.
func MapExtractedDetails(extracted llm.ExtractedFoodTruckDetails, name, sourceURL string, isDryRun bool) entity.FoodTruckSchema {
	_ = isDryRun

	var sourceURLs []string
	if sourceURL != "" {
		sourceURLs = []string{sourceURL}
	}

	return entity.FoodTruckSchema{
		Name:             name,
		Description:      derefString(extracted.Description),
		CurrentLocation:  mapLocation(extracted.CurrentLocation),
		OperatingHours:   mapOperatingHours(extracted.OperatingHours),
		Menu:             mapMenu(extracted.Menu),
		ContactInfo:      mapContactInfo(extracted.ContactInfo),
		SocialMedia:      mapSocialMedia(extracted.SocialMedia),
		CuisineType:      cleanStrings(extracted.CuisineType),
		PriceRange:       mapPriceRange(extracted.PriceRange),
		Specialties:      cleanStrings(extracted.Specialties),
		DataQualityScore: constants.DefaultQualityScore,
		Verification:     constants.VerificationPending,
		SourceURLs:       sourceURLs,
		LastScrapedAt:    time.Now().UTC(),
	}
}

// mapLocation joins the address parts into one line and defaults coordinates
// to (0,0) when absent. The quality scorer treats (0,0) as no GPS.
func mapLocation(loc *llm.ExtractedLocation) entity.LocationData {
	out := entity.LocationData{Timestamp: time.Now().UTC()}
	if loc == nil {
		return out
	}
	parts := make([]string, 0, 4)
	for _, p := range []*string{loc.Address, loc.City, loc.State, loc.ZipCode} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	out.Address = strings.Join(parts, ", ")
	if out.Address == "" && loc.RawText != nil {
		out.Address = strings.TrimSpace(*loc.RawText)
	}
	if loc.Lat != nil {
		out.Lat = *loc.Lat
	}
	if loc.Lng != nil {
		out.Lng = *loc.Lng
	}
	return out
}

// mapOperatingHours fills every absent day with an explicit closed marker.
func mapOperatingHours(hours *llm.ExtractedOperatingHours) entity.OperatingHours {
	if hours == nil {
		hours = &llm.ExtractedOperatingHours{}
	}
	return entity.OperatingHours{
		Monday:    mapDay(hours.Monday),
		Tuesday:   mapDay(hours.Tuesday),
		Wednesday: mapDay(hours.Wednesday),
		Thursday:  mapDay(hours.Thursday),
		Friday:    mapDay(hours.Friday),
		Saturday:  mapDay(hours.Saturday),
		Sunday:    mapDay(hours.Sunday),
	}
}

func mapDay(d *llm.ExtractedDailyHours) entity.DailyHours {
	if d == nil {
		return entity.DailyHours{Closed: true}
	}
	if d.Closed != nil && *d.Closed {
		return entity.DailyHours{Closed: true}
	}
	open := derefString(d.Open)
	close := derefString(d.Close)
	if open == "" || close == "" {
		return entity.DailyHours{Closed: true}
	}
	return entity.DailyHours{Open: open, Close: close}
}

func mapMenu(categories []llm.ExtractedMenuCategory) []entity.MenuCategory {
	out := make([]entity.MenuCategory, 0, len(categories))
	for _, cat := range categories {
		name := derefString(cat.Category)
		if name == "" {
			name = derefString(cat.Name)
		}
		if name == "" {
			name = "Uncategorized"
		}
		items := make([]entity.MenuItem, 0, len(cat.Items))
		for _, it := range cat.Items {
			itemName := derefString(it.Name)
			if itemName == "" {
				itemName = "Unknown Item"
			}
			items = append(items, entity.MenuItem{
				Name:        itemName,
				Description: derefString(it.Description),
				Price:       parsePrice(it.Price),
				DietaryTags: cleanStrings(it.DietaryTags),
			})
		}
		out = append(out, entity.MenuCategory{Name: name, Items: items})
	}
	return out
}

// parsePrice accepts numbers and strings like "$12.99". Anything else is
// dropped, not propagated.
func parsePrice(v any) *float64 {
	switch p := v.(type) {
	case float64:
		return &p
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' || r == '.' || r == '-' {
				return r
			}
			return -1
		}, p)
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func mapContactInfo(c *llm.ExtractedContactInfo) entity.ContactInfo {
	if c == nil {
		return entity.ContactInfo{}
	}
	return entity.ContactInfo{
		Phone:   derefString(c.Phone),
		Email:   derefString(c.Email),
		Website: derefString(c.Website),
	}
}

func mapSocialMedia(s *llm.ExtractedSocialMedia) entity.SocialMedia {
	if s == nil {
		return entity.SocialMedia{}
	}
	return entity.SocialMedia{
		Instagram: derefString(s.Instagram),
		Facebook:  derefString(s.Facebook),
		Twitter:   derefString(s.Twitter),
		TikTok:    derefString(s.TikTok),
		Yelp:      derefString(s.Yelp),
	}
}

// mapPriceRange only passes through the allowed tier symbols.
func mapPriceRange(p *string) string {
	if p == nil {
		return ""
	}
	switch strings.TrimSpace(*p) {
	case "$", "$$", "$$$", "$$$$":
		return strings.TrimSpace(*p)
	default:
		return ""
	}
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
