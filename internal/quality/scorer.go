package quality

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/streetbite/pipeline/constants"
	"github.com/streetbite/pipeline/internal/entity"
	"github.com/streetbite/pipeline/internal/repository"
)

// CalculateQualityScore computes the [0,1] completeness score for a truck
// record. Deterministic: no randomness, no I/O, so scoring the same record
// twice always yields the same value.
func CalculateQualityScore(truck entity.FoodTruckSchema) float64 {
	score := 0.0
	if truck.Name != "" {
		score += constants.ScoreWeightName
	}
	if truck.Description != "" {
		score += constants.ScoreWeightDescription
	}
	if truck.CurrentLocation.HasGPS() {
		score += constants.ScoreWeightGPS
	}
	if menuHasItems(truck.Menu) {
		score += constants.ScoreWeightMenu
	}
	if truck.ContactInfo.HasAny() {
		score += constants.ScoreWeightContact
	}
	if truck.OperatingHours.AnyOpen() {
		score += constants.ScoreWeightHours
	}
	return score
}

func menuHasItems(menu []entity.MenuCategory) bool {
	for _, cat := range menu {
		if len(cat.Items) > 0 {
			return true
		}
	}
	return false
}

// Scorer recomputes and persists quality scores for stored records.
type Scorer struct {
	trucks repository.TruckRepository
	logger *slog.Logger
}

func NewScorer(trucks repository.TruckRepository, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{trucks: trucks, logger: logger}
}

// UpdateTruckQualityScore recomputes the score for a stored record and writes
// it back. A missing record surfaces the repository's not-found error.
func (s *Scorer) UpdateTruckQualityScore(ctx context.Context, id uuid.UUID) (float64, error) {
	truck, err := s.trucks.GetTruckByID(ctx, id)
	if err != nil {
		return 0, err
	}
	score := CalculateQualityScore(truck.FoodTruckSchema)
	if err := s.trucks.UpdateQualityScore(ctx, id, score); err != nil {
		return 0, err
	}
	s.logger.Info("quality.rescored", "truck_id", id, "score", score)
	return score, nil
}

// RescoreAll recomputes scores for every stored truck and reports how many
// records changed.
func (s *Scorer) RescoreAll(ctx context.Context) (int, error) {
	trucks, err := s.trucks.GetAllTrucks(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, truck := range trucks {
		score := CalculateQualityScore(truck.FoodTruckSchema)
		if score == truck.DataQualityScore {
			continue
		}
		if err := s.trucks.UpdateQualityScore(ctx, truck.ID, score); err != nil {
			return changed, err
		}
		changed++
	}
	s.logger.Info("quality.rescore_all", "total", len(trucks), "changed", changed)
	return changed, nil
}
