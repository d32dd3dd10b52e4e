package quality

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/streetbite/pipeline/constants"
	"github.com/streetbite/pipeline/internal/entity"
	"github.com/streetbite/pipeline/internal/repository"
)

// Action is the dedup outcome for one incoming record.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionMerged  Action = "merged"
)

// Match pairs an existing record with its similarity to the candidate.
type Match struct {
	Truck         *entity.FoodTruck
	Similarity    float64
	MatchedFields []string
}

var (
	truckSuffixRe  = regexp.MustCompile(`(?i)\s*\b(food\s+truck|food\s+trailer|mobile\s+kitchen|street\s+food|food\s+cart)\b\s*`)
	apostropheRe   = regexp.MustCompile("[‘’`´]")
	punctuationRe  = regexp.MustCompile(`[^\w\s&'-]`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	nonDigitRe     = regexp.MustCompile(`\D`)
	schemePrefixRe = regexp.MustCompile(`^https?://`)
)

// NormalizeTruckName lowercases, unifies unicode apostrophes, strips the
// generic vehicle suffixes, and collapses whitespace so "Taco  Bus Food Truck"
// and "taco bus" compare equal.
func NormalizeTruckName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = apostropheRe.ReplaceAllString(s, "'")
	s = truckSuffixRe.ReplaceAllString(s, " ")
	s = punctuationRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NameSimilarity is a [0,1] similarity over normalized names: exact matches
// score 1, substring containment scores high, everything else falls back to
// Levenshtein distance.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeTruckName(a), NormalizeTruckName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		minLen := float64(min(len(na), len(nb)))
		maxLen := float64(max(len(na), len(nb)))
		return 0.8 + 0.15*(minLen/maxLen)
	}
	dist := levenshtein(na, nb)
	maxLen := max(len(na), len(nb))
	return 1 - float64(dist)/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func locationSimilarity(a, b entity.LocationData) float64 {
	sum, factors := 0.0, 0
	if a.Address != "" && b.Address != "" {
		sum += NameSimilarity(a.Address, b.Address)
		factors++
	}
	if a.HasGPS() && b.HasGPS() {
		km := gpsDistanceKm(a.Lat, a.Lng, b.Lat, b.Lng)
		if km <= 0.1 {
			sum += 1
		} else {
			sum += math.Max(0, 1-km)
		}
		factors++
	}
	if factors == 0 {
		return 0
	}
	return sum / float64(factors)
}

func gpsDistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func contactSimilarity(a, b entity.ContactInfo) float64 {
	matches, total := 0, 0
	if a.Phone != "" && b.Phone != "" {
		if nonDigitRe.ReplaceAllString(a.Phone, "") == nonDigitRe.ReplaceAllString(b.Phone, "") {
			matches++
		}
		total++
	}
	if a.Website != "" && b.Website != "" {
		if normalizeURL(a.Website) == normalizeURL(b.Website) {
			matches++
		}
		total++
	}
	if a.Email != "" && b.Email != "" {
		if strings.EqualFold(a.Email, b.Email) {
			matches++
		}
		total++
	}
	if total == 0 {
		return 0
	}
	return float64(matches) / float64(total)
}

func normalizeURL(u string) string {
	return strings.TrimSuffix(schemePrefixRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(u)), ""), "/")
}

func menuSimilarity(a, b []entity.MenuCategory) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := categoryNameSet(a)
	setB := categoryNameSet(b)
	common := 0
	union := make(map[string]struct{}, len(setA)+len(setB))
	for name := range setA {
		union[name] = struct{}{}
		if _, ok := setB[name]; ok {
			common++
		}
	}
	for name := range setB {
		union[name] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(common) / float64(len(union))
}

func categoryNameSet(menu []entity.MenuCategory) map[string]struct{} {
	out := make(map[string]struct{}, len(menu))
	for _, cat := range menu {
		if n := strings.ToLower(strings.TrimSpace(cat.Name)); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

// Similarity computes the weighted overall similarity between a candidate and
// an existing record, naming the fields that individually matched.
func Similarity(candidate entity.FoodTruckSchema, existing *entity.FoodTruck) (float64, []string) {
	var matched []string

	name := NameSimilarity(candidate.Name, existing.Name)
	if name >= constants.DedupNameThreshold {
		matched = append(matched, "name")
	}
	location := locationSimilarity(candidate.CurrentLocation, existing.CurrentLocation)
	if location >= 0.7 {
		matched = append(matched, "location")
	}
	contact := contactSimilarity(candidate.ContactInfo, existing.ContactInfo)
	if contact >= 0.9 {
		matched = append(matched, "contact")
	}
	menu := menuSimilarity(candidate.Menu, existing.Menu)
	if menu > 0.7 {
		matched = append(matched, "menu")
	}

	overall := name*constants.DedupWeightName +
		location*constants.DedupWeightLocation +
		contact*constants.DedupWeightContact +
		menu*constants.DedupWeightMenu
	return overall, matched
}

// Deduper applies the duplicate policy against stored trucks.
type Deduper struct {
	trucks repository.TruckRepository
	logger *slog.Logger
}

func NewDeduper(trucks repository.TruckRepository, logger *slog.Logger) *Deduper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduper{trucks: trucks, logger: logger}
}

// FindDuplicates returns existing records in the candidate's proximity bucket
// whose overall similarity clears the duplicate threshold, best match first.
func (d *Deduper) FindDuplicates(ctx context.Context, candidate entity.FoodTruckSchema) ([]Match, error) {
	nearby, err := d.trucks.GetTrucksByLocation(ctx, candidate.CurrentLocation.BucketKey())
	if err != nil {
		return nil, err
	}
	var matches []Match
	for _, existing := range nearby {
		overall, fields := Similarity(candidate, existing)
		if overall >= constants.DedupOverallThreshold {
			matches = append(matches, Match{Truck: existing, Similarity: overall, MatchedFields: fields})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	return matches, nil
}

// CreateOrMerge persists the candidate: a new row when nothing similar exists,
// otherwise the best match absorbs the candidate through the merge policy.
func (d *Deduper) CreateOrMerge(ctx context.Context, candidate entity.FoodTruckSchema) (*entity.FoodTruck, Action, error) {
	matches, err := d.FindDuplicates(ctx, candidate)
	if err != nil {
		return nil, "", err
	}
	if len(matches) == 0 {
		truck := &entity.FoodTruck{FoodTruckSchema: candidate}
		if err := d.trucks.CreateTruck(ctx, truck); err != nil {
			return nil, "", err
		}
		return truck, ActionCreated, nil
	}

	best := matches[0]
	action := ActionUpdated
	if best.Similarity >= constants.DedupMergeThreshold {
		action = ActionMerged
	}
	d.logger.Info("dedup.match",
		"candidate", candidate.Name,
		"existing_id", best.Truck.ID,
		"similarity", best.Similarity,
		"matched_fields", strings.Join(best.MatchedFields, ","),
		"action", string(action),
	)

	merged := MergeTruck(best.Truck, candidate)
	if err := d.trucks.UpdateTruck(ctx, merged); err != nil {
		return nil, "", err
	}
	return merged, action, nil
}

// MergeTruck folds the candidate into an existing record. Scalar conflicts go
// to the side with the higher quality score; on a tie the candidate wins as
// the more recently scraped data. List fields are unioned and de-duplicated by
// normalized name or URL.
func MergeTruck(existing *entity.FoodTruck, candidate entity.FoodTruckSchema) *entity.FoodTruck {
	out := *existing
	candidateWins := candidate.DataQualityScore >= existing.DataQualityScore

	out.Name = pickString(candidateWins, candidate.Name, existing.Name)
	out.Description = pickString(candidateWins, candidate.Description, existing.Description)
	out.PriceRange = pickString(candidateWins, candidate.PriceRange, existing.PriceRange)

	if candidateWins && candidate.CurrentLocation.HasGPS() || !existing.CurrentLocation.HasGPS() {
		out.CurrentLocation = candidate.CurrentLocation
	}
	if candidateWins && candidate.OperatingHours.AnyOpen() || !existing.OperatingHours.AnyOpen() {
		out.OperatingHours = candidate.OperatingHours
	}

	out.ContactInfo = mergeContact(candidateWins, candidate.ContactInfo, existing.ContactInfo)
	out.SocialMedia = mergeSocial(candidateWins, candidate.SocialMedia, existing.SocialMedia)
	out.Menu = mergeMenus(existing.Menu, candidate.Menu)
	out.CuisineType = unionStrings(existing.CuisineType, candidate.CuisineType)
	out.Specialties = unionStrings(existing.Specialties, candidate.Specialties)
	out.SourceURLs = unionStrings(existing.SourceURLs, candidate.SourceURLs)

	if candidate.DataQualityScore > out.DataQualityScore {
		out.DataQualityScore = candidate.DataQualityScore
	}
	if candidate.LastScrapedAt.After(out.LastScrapedAt) {
		out.LastScrapedAt = candidate.LastScrapedAt
	}
	out.UpdatedAt = time.Now().UTC()
	return &out
}

func pickString(candidateWins bool, candidate, existing string) string {
	if candidateWins {
		if candidate != "" {
			return candidate
		}
		return existing
	}
	if existing != "" {
		return existing
	}
	return candidate
}

func mergeContact(candidateWins bool, candidate, existing entity.ContactInfo) entity.ContactInfo {
	return entity.ContactInfo{
		Phone:   pickString(candidateWins, candidate.Phone, existing.Phone),
		Email:   pickString(candidateWins, candidate.Email, existing.Email),
		Website: pickString(candidateWins, candidate.Website, existing.Website),
	}
}

func mergeSocial(candidateWins bool, candidate, existing entity.SocialMedia) entity.SocialMedia {
	return entity.SocialMedia{
		Instagram: pickString(candidateWins, candidate.Instagram, existing.Instagram),
		Facebook:  pickString(candidateWins, candidate.Facebook, existing.Facebook),
		Twitter:   pickString(candidateWins, candidate.Twitter, existing.Twitter),
		TikTok:    pickString(candidateWins, candidate.TikTok, existing.TikTok),
		Yelp:      pickString(candidateWins, candidate.Yelp, existing.Yelp),
	}
}

// mergeMenus unions categories by normalized name, then items inside each
// category by normalized item name. Existing entries keep their position.
func mergeMenus(existing, incoming []entity.MenuCategory) []entity.MenuCategory {
	out := make([]entity.MenuCategory, len(existing))
	copy(out, existing)
	index := make(map[string]int, len(out))
	for i, cat := range out {
		index[strings.ToLower(strings.TrimSpace(cat.Name))] = i
	}
	for _, cat := range incoming {
		key := strings.ToLower(strings.TrimSpace(cat.Name))
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, cat)
			continue
		}
		seen := make(map[string]struct{}, len(out[i].Items))
		for _, item := range out[i].Items {
			seen[strings.ToLower(strings.TrimSpace(item.Name))] = struct{}{}
		}
		for _, item := range cat.Items {
			if _, dup := seen[strings.ToLower(strings.TrimSpace(item.Name))]; !dup {
				out[i].Items = append(out[i].Items, item)
			}
		}
	}
	return out
}

func unionStrings(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
