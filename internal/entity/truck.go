package entity

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/streetbite/pipeline/constants"
)

// LocationData is a point-in-time location snapshot on a truck record.
type LocationData struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Address   string    `json:"address,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BucketKey buckets the coordinates onto a coarse grid so nearby trucks share
// a dedup identity key. (0,0) means no GPS and gets its own bucket.
func (l LocationData) BucketKey() string {
	latBucket := math.Floor(l.Lat / constants.LocationBucketDegrees)
	lngBucket := math.Floor(l.Lng / constants.LocationBucketDegrees)
	return fmt.Sprintf("%.0f:%.0f", latBucket, lngBucket)
}

// HasGPS reports whether the snapshot carries real coordinates. (0,0) is the
// mapper's default for "none".
func (l LocationData) HasGPS() bool {
	return l.Lat != 0 || l.Lng != 0
}

// DailyHours is one day's open/close window. Closed=true means open/close are unset.
type DailyHours struct {
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
	Closed bool   `json:"closed"`
}

// OperatingHours holds one DailyHours per weekday.
type OperatingHours struct {
	Monday    DailyHours `json:"monday"`
	Tuesday   DailyHours `json:"tuesday"`
	Wednesday DailyHours `json:"wednesday"`
	Thursday  DailyHours `json:"thursday"`
	Friday    DailyHours `json:"friday"`
	Saturday  DailyHours `json:"saturday"`
	Sunday    DailyHours `json:"sunday"`
}

// AnyOpen reports whether at least one weekday has a non-closed window.
func (h OperatingHours) AnyOpen() bool {
	for _, d := range []DailyHours{h.Monday, h.Tuesday, h.Wednesday, h.Thursday, h.Friday, h.Saturday, h.Sunday} {
		if !d.Closed {
			return true
		}
	}
	return false
}

// MenuItem is one dish on a menu.
type MenuItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	DietaryTags []string `json:"dietary_tags,omitempty"`
}

// MenuCategory groups menu items under a heading, order preserved.
type MenuCategory struct {
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}

type ContactInfo struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

// HasAny reports whether at least one contact channel is set.
func (c ContactInfo) HasAny() bool {
	return c.Phone != "" || c.Email != "" || c.Website != ""
}

type SocialMedia struct {
	Instagram string `json:"instagram,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	TikTok    string `json:"tiktok,omitempty"`
	Yelp      string `json:"yelp,omitempty"`
}

// FoodTruckSchema is the canonical truck record as produced by the schema mapper,
// before the store assigns an identity.
type FoodTruckSchema struct {
	Name             string                       `json:"name"`
	Description      string                       `json:"description,omitempty"`
	CurrentLocation  LocationData                 `json:"current_location"`
	OperatingHours   OperatingHours               `json:"operating_hours"`
	Menu             []MenuCategory               `json:"menu"`
	ContactInfo      ContactInfo                  `json:"contact_info"`
	SocialMedia      SocialMedia                  `json:"social_media"`
	CuisineType      []string                     `json:"cuisine_type"`
	PriceRange       string                       `json:"price_range,omitempty"`
	Specialties      []string                     `json:"specialties,omitempty"`
	DataQualityScore float64                      `json:"data_quality_score"`
	Verification     constants.VerificationStatus `json:"verification_status"`
	SourceURLs       []string                     `json:"source_urls"`
	LastScrapedAt    time.Time                    `json:"last_scraped_at"`
}

// FoodTruck is a stored truck record.
type FoodTruck struct {
	FoodTruckSchema
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
