package discovery

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetbite/pipeline/constants"
	"github.com/streetbite/pipeline/internal/common"
	"github.com/streetbite/pipeline/internal/entity"
	"github.com/streetbite/pipeline/internal/fetch"
	"github.com/streetbite/pipeline/internal/repository"
)

type stubFetcher struct {
	pages   map[string]string
	fetches []time.Time
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (*fetch.Result, error) {
	s.fetches = append(s.fetches, time.Now())
	body, ok := s.pages[url]
	if !ok {
		return nil, common.WrapError(common.ErrFetch, "no page for "+url)
	}
	return &fetch.Result{URL: url, HTML: body, Markdown: body, Status: 200}, nil
}

func newDiscoveryDeps(t *testing.T) (repository.JobRepository, repository.TruckRepository) {
	t.Helper()
	logger := slog.Default()
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, logger)
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(context.Background(), db, logger))
	t.Cleanup(func() { repository.Close(db, logger) })
	return repository.NewJobRepository(db, logger), repository.NewTruckRepository(db, logger)
}

func TestExtractLinks(t *testing.T) {
	doc := `<html><body>
		<a href="/trucks/taco-bus">Taco Bus</a>
		<a class="ext" href="https://pizzawagon.example/">Pizza Wagon</a>
		<a>no href</a>
		<img src="x.png">
	</body></html>`
	got := ExtractLinks(doc)
	assert.Equal(t, []string{"/trucks/taco-bus", "https://pizzawagon.example/"}, got)
}

func TestFilterCandidateURLs(t *testing.T) {
	links := []string{
		"/trucks/taco-bus",
		"https://pizzawagon.example/#menu",
		"mailto:hi@tacobus.example",
		"/trucks/taco-bus",
		"https://directory.example/",
	}
	got := FilterCandidateURLs(links, "https://directory.example/")
	assert.Equal(t, []string{
		"https://directory.example/trucks/taco-bus",
		"https://pizzawagon.example/",
	}, got)
}

func TestRunQueuesOnlyUnknownURLs(t *testing.T) {
	jobs, trucks := newDiscoveryDeps(t)
	ctx := context.Background()

	// one candidate already has an active job, one is a stored truck
	require.NoError(t, jobs.CreateJob(ctx, &entity.ScrapingJob{
		TargetURL: "https://directory.example/trucks/known-job",
		JobType:   "website_scrape",
	}))
	require.NoError(t, trucks.CreateTruck(ctx, &entity.FoodTruck{
		FoodTruckSchema: entity.FoodTruckSchema{
			Name:          "Pizza Wagon",
			SourceURLs:    []string{"https://directory.example/trucks/known-truck"},
			LastScrapedAt: time.Now().UTC(),
		},
	}))

	fetcher := &stubFetcher{pages: map[string]string{
		"https://directory.example/": `<html><body>
			<a href="/trucks/taco-bus">a</a>
			<a href="/trucks/known-job">b</a>
			<a href="/trucks/known-truck">c</a>
		</body></html>`,
	}}
	engine := NewEngine(common.DiscoveryConfig{
		SeedURLs: []string{"https://directory.example/"},
		MaxURLs:  50,
	}, fetcher, jobs, trucks, slog.Default())

	queued, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	pending, err := jobs.GetJobsByStatus(ctx, constants.JobStatusPending, 10)
	require.NoError(t, err)
	urls := make([]string, 0, len(pending))
	for _, j := range pending {
		urls = append(urls, j.TargetURL)
	}
	assert.Contains(t, urls, "https://directory.example/trucks/taco-bus")
	assert.NotContains(t, urls, "https://directory.example/trucks/known-truck")
}

func TestRunPacesSeedFetches(t *testing.T) {
	jobs, trucks := newDiscoveryDeps(t)

	fetcher := &stubFetcher{pages: map[string]string{
		"https://directory-a.example/": `<a href="/trucks/one">a</a>`,
		"https://directory-b.example/": `<a href="/trucks/two">b</a>`,
	}}
	engine := NewEngine(common.DiscoveryConfig{
		SeedURLs:   []string{"https://directory-a.example/", "https://directory-b.example/"},
		MaxURLs:    50,
		FetchDelay: 50 * time.Millisecond,
	}, fetcher, jobs, trucks, slog.Default())

	queued, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	require.Len(t, fetcher.fetches, 2)
	gap := fetcher.fetches[1].Sub(fetcher.fetches[0])
	assert.GreaterOrEqual(t, gap, 50*time.Millisecond, "seed fetches must be spaced by the delay")
}

func TestSweepStaleTrucks(t *testing.T) {
	jobs, trucks := newDiscoveryDeps(t)
	ctx := context.Background()

	stale := &entity.FoodTruck{FoodTruckSchema: entity.FoodTruckSchema{
		Name:          "Taco Bus",
		SourceURLs:    []string{"https://tacobus.example"},
		LastScrapedAt: time.Now().UTC().AddDate(0, 0, -constants.StalenessThresholdDays-1),
	}}
	fresh := &entity.FoodTruck{FoodTruckSchema: entity.FoodTruckSchema{
		Name:          "Pizza Wagon",
		SourceURLs:    []string{"https://pizzawagon.example"},
		LastScrapedAt: time.Now().UTC(),
	}}
	require.NoError(t, trucks.CreateTruck(ctx, stale))
	require.NoError(t, trucks.CreateTruck(ctx, fresh))

	engine := NewEngine(common.DiscoveryConfig{}, &stubFetcher{}, jobs, trucks, slog.Default())

	queued, err := engine.SweepStaleTrucks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	// a second sweep sees the active job and queues nothing
	queued, err = engine.SweepStaleTrucks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, queued)

	pending, err := jobs.GetJobsByStatus(ctx, constants.JobStatusPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "https://tacobus.example", pending[0].TargetURL)
	assert.Equal(t, "staleness_refresh", pending[0].JobType)
	require.NotNil(t, pending[0].TruckID)
	assert.Equal(t, stale.ID, *pending[0].TruckID)
}
