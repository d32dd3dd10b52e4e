package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streetbite/pipeline/constants"
	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/entity"
)

type UsageRepository interface {
	// AddUsage increments today's counters for a service. The increment runs
	// as a single upsert so concurrent jobs never lose updates.
	AddUsage(ctx context.Context, service string, requests, tokens int) error
	GetTodayUsage(ctx context.Context, service string) (*entity.APIUsage, error)
}

type usageRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewUsageRepository(db *sql.DB, logger *slog.Logger) UsageRepository {
	return &usageRepository{db: db, logger: logger}
}

func usageDate() string {
	return time.Now().UTC().Format("2006-01-02")
}

func (r *usageRepository) AddUsage(ctx context.Context, service string, requests, tokens int) error {
	// Valid in postgres and sqlite (3.24+).
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_usage (service_name, usage_date, requests_count, tokens_used)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (service_name, usage_date)
		 DO UPDATE SET requests_count = api_usage.requests_count + excluded.requests_count,
		               tokens_used    = api_usage.tokens_used + excluded.tokens_used`,
		service, usageDate(), requests, tokens)
	if err != nil {
		r.logger.Error("usage.record_failed", "service", service, "error", err)
		return common.WrapError(common.ErrPersistence, err.Error())
	}
	return nil
}

func (r *usageRepository) GetTodayUsage(ctx context.Context, service string) (*entity.APIUsage, error) {
	usage := &entity.APIUsage{ServiceName: service, UsageDate: usageDate()}
	row := r.db.QueryRowContext(ctx,
		`SELECT requests_count, tokens_used FROM api_usage
		 WHERE service_name = $1 AND usage_date = $2`,
		service, usage.UsageDate)
	err := row.Scan(&usage.RequestsCount, &usage.TokensUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return usage, nil
	}
	if err != nil {
		return nil, common.WrapError(common.ErrPersistence, err.Error())
	}
	return usage, nil
}

// UsageGate enforces the daily request and token budgets in front of a usage
// repository. It satisfies the LLM client's tracker contract.
type UsageGate struct {
	repo    UsageRepository
	service string
	logger  *slog.Logger
}

func NewUsageGate(repo UsageRepository, service string, logger *slog.Logger) *UsageGate {
	return &UsageGate{repo: repo, service: service, logger: logger}
}

func (g *UsageGate) CheckBudget(ctx context.Context, estimatedTokens int) error {
	usage, err := g.repo.GetTodayUsage(ctx, g.service)
	if err != nil {
		return err
	}
	if usage.RequestsCount+1 > constants.DailyRequestLimit {
		return common.WrapError(common.ErrUsageExceeded,
			fmt.Sprintf("%d/%d requests used today", usage.RequestsCount, constants.DailyRequestLimit))
	}
	if usage.TokensUsed+estimatedTokens > constants.DailyTokenLimit {
		return common.WrapError(common.ErrUsageExceeded,
			fmt.Sprintf("%d/%d tokens used today, %d more requested",
				usage.TokensUsed, constants.DailyTokenLimit, estimatedTokens))
	}
	return nil
}

func (g *UsageGate) RecordUsage(ctx context.Context, tokens int) error {
	return g.repo.AddUsage(ctx, g.service, 1, tokens)
}
