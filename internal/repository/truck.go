package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/entity"
)

type TruckRepository interface {
	CreateTruck(ctx context.Context, truck *entity.FoodTruck) error
	UpdateTruck(ctx context.Context, truck *entity.FoodTruck) error
	GetTruckByID(ctx context.Context, id uuid.UUID) (*entity.FoodTruck, error)
	GetAllTrucks(ctx context.Context) ([]*entity.FoodTruck, error)
	// GetTrucksByLocation returns trucks whose coordinates fall in the same
	// proximity bucket.
	GetTrucksByLocation(ctx context.Context, bucketKey string) ([]*entity.FoodTruck, error)
	GetStaleTrucks(ctx context.Context, olderThan time.Time) ([]*entity.FoodTruck, error)
	ExistsBySourceURL(ctx context.Context, url string) (bool, error)
	UpdateQualityScore(ctx context.Context, id uuid.UUID, score float64) error
	DeleteTruck(ctx context.Context, id uuid.UUID) error
}

type truckRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTruckRepository(db *sql.DB, logger *slog.Logger) TruckRepository {
	return &truckRepository{db: db, logger: logger}
}

func (r *truckRepository) CreateTruck(ctx context.Context, truck *entity.FoodTruck) error {
	if truck.ID == uuid.Nil {
		truck.ID = uuid.New()
	}
	now := time.Now().UTC()
	truck.CreatedAt = now
	truck.UpdatedAt = now

	doc, err := json.Marshal(truck.FoodTruckSchema)
	if err != nil {
		return common.WrapError(common.ErrPersistence, err.Error())
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO food_trucks (id, name, data, quality_score, location_bucket, last_scraped_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		truck.ID.String(), truck.Name, string(doc), truck.DataQualityScore,
		truck.CurrentLocation.BucketKey(), formatTime(truck.LastScrapedAt),
		formatTime(truck.CreatedAt), formatTime(truck.UpdatedAt))
	if err != nil {
		r.logger.Error("truck.create_failed", "truck_id", truck.ID, "error", err)
		return common.WrapError(common.ErrPersistence, err.Error())
	}
	r.logger.Info("truck.created", "truck_id", truck.ID, "name", truck.Name)
	return nil
}

func (r *truckRepository) UpdateTruck(ctx context.Context, truck *entity.FoodTruck) error {
	truck.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(truck.FoodTruckSchema)
	if err != nil {
		return common.WrapError(common.ErrPersistence, err.Error())
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE food_trucks SET name = $1, data = $2, quality_score = $3, location_bucket = $4,
		        last_scraped_at = $5, updated_at = $6
		 WHERE id = $7`,
		truck.Name, string(doc), truck.DataQualityScore, truck.CurrentLocation.BucketKey(),
		formatTime(truck.LastScrapedAt), formatTime(truck.UpdatedAt), truck.ID.String())
	if err != nil {
		return common.WrapError(common.ErrPersistence, err.Error())
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapError(common.ErrNotFound, "truck "+truck.ID.String())
	}
	r.logger.Info("truck.updated", "truck_id", truck.ID, "name", truck.Name)
	return nil
}

const truckColumns = `id, data, created_at, updated_at`

func (r *truckRepository) GetTruckByID(ctx context.Context, id uuid.UUID) (*entity.FoodTruck, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+truckColumns+` FROM food_trucks WHERE id = $1`, id.String())
	truck, err := scanTruck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "truck "+id.String())
	}
	if err != nil {
		return nil, common.WrapError(common.ErrPersistence, err.Error())
	}
	return truck, nil
}

func (r *truckRepository) GetAllTrucks(ctx context.Context) ([]*entity.FoodTruck, error) {
	return r.queryTrucks(ctx, `SELECT `+truckColumns+` FROM food_trucks ORDER BY name`)
}

func (r *truckRepository) GetTrucksByLocation(ctx context.Context, bucketKey string) ([]*entity.FoodTruck, error) {
	return r.queryTrucks(ctx,
		`SELECT `+truckColumns+` FROM food_trucks WHERE location_bucket = $1`, bucketKey)
}

func (r *truckRepository) GetStaleTrucks(ctx context.Context, olderThan time.Time) ([]*entity.FoodTruck, error) {
	return r.queryTrucks(ctx,
		`SELECT `+truckColumns+` FROM food_trucks WHERE last_scraped_at < $1`, formatTime(olderThan))
}

// likeEscaper neutralizes LIKE wildcards inside the matched URL.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *truckRepository) ExistsBySourceURL(ctx context.Context, url string) (bool, error) {
	encoded, err := json.Marshal(url)
	if err != nil {
		return false, common.WrapError(common.ErrPersistence, err.Error())
	}
	// source_urls live inside the JSON document; match the encoded form.
	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM food_trucks WHERE data LIKE $1 ESCAPE '\'`,
		"%"+likeEscaper.Replace(string(encoded))+"%")
	var n int
	if err := row.Scan(&n); err != nil {
		return false, common.WrapError(common.ErrPersistence, err.Error())
	}
	return n > 0, nil
}

func (r *truckRepository) UpdateQualityScore(ctx context.Context, id uuid.UUID, score float64) error {
	truck, err := r.GetTruckByID(ctx, id)
	if err != nil {
		return err
	}
	truck.DataQualityScore = score
	return r.UpdateTruck(ctx, truck)
}

func (r *truckRepository) DeleteTruck(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM food_trucks WHERE id = $1`, id.String())
	if err != nil {
		return common.WrapError(common.ErrPersistence, err.Error())
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapError(common.ErrNotFound, "truck "+id.String())
	}
	r.logger.Info("truck.deleted", "truck_id", id)
	return nil
}

func (r *truckRepository) queryTrucks(ctx context.Context, query string, args ...any) ([]*entity.FoodTruck, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(common.ErrPersistence, err.Error())
	}
	defer func() { _ = rows.Close() }()

	var trucks []*entity.FoodTruck
	for rows.Next() {
		truck, err := scanTruck(rows)
		if err != nil {
			return nil, common.WrapError(common.ErrPersistence, err.Error())
		}
		trucks = append(trucks, truck)
	}
	return trucks, rows.Err()
}

func scanTruck(row rowScanner) (*entity.FoodTruck, error) {
	var (
		truck     entity.FoodTruck
		idStr     string
		doc       string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&idStr, &doc, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	truck.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(doc), &truck.FoodTruckSchema); err != nil {
		return nil, err
	}
	truck.CreatedAt = parseTime(createdAt)
	truck.UpdatedAt = parseTime(updatedAt)
	return &truck, nil
}
