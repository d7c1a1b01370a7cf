package service

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairfund-scanner/internal/chain"
	"github.com/fairfund-scanner/internal/projection"
	"github.com/fairfund-scanner/internal/retry"
	"github.com/fairfund-scanner/internal/storage"
	"github.com/fairfund-scanner/internal/token"
	"github.com/fairfund-scanner/internal/types"
)

const (
	daiToken   = "0x6b175474e89094c44da98b954eedeac495271d0f"
	backerAddr = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
	testNow    = int64(1_700_000_000)
)

type fakeEscrow struct {
	mu            sync.Mutex
	projects      []chain.RawProject
	contributions map[string]chain.Contribution

	countCalls   int
	listCalls    int
	projectCalls int
	contribCalls int

	listErr          error
	listFailuresLeft int
	contribErr       error

	started chan struct{} // closed on first GetProjects entry, when set
	release chan struct{} // GetProjects blocks on this, when set

	projectStarted chan struct{} // closed on first GetProject entry, when set
	projectRelease chan struct{} // GetProject blocks on this, when set
}

func contribKey(projectID uint64, backer common.Address) string {
	return strings.ToLower(backer.Hex()) + ":" + big.NewInt(int64(projectID)).String()
}

func (f *fakeEscrow) ProjectCount(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	return big.NewInt(int64(len(f.projects))), nil
}

func (f *fakeEscrow) GetProject(ctx context.Context, projectID *big.Int) (chain.RawProject, error) {
	f.mu.Lock()
	f.projectCalls++
	started, release := f.projectStarted, f.projectRelease
	if started != nil {
		f.projectStarted = nil
		close(started)
	}
	id := projectID.Uint64()
	if id >= uint64(len(f.projects)) {
		f.mu.Unlock()
		return chain.RawProject{}, errors.New("execution reverted")
	}
	record := f.projects[id]
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	return record, nil
}

func (f *fakeEscrow) GetProjects(ctx context.Context, offset, limit *big.Int) ([]chain.RawProject, error) {
	f.mu.Lock()
	f.listCalls++
	started, release := f.started, f.release
	if started != nil {
		f.started = nil
		close(started)
	}
	if f.listFailuresLeft > 0 {
		f.listFailuresLeft--
		f.mu.Unlock()
		return nil, errors.New("rpc timeout")
	}
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}
	start := offset.Uint64()
	end := start + limit.Uint64()
	if end > uint64(len(f.projects)) {
		end = uint64(len(f.projects))
	}
	page := append([]chain.RawProject(nil), f.projects[start:end]...)
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	return page, nil
}

func (f *fakeEscrow) GetContribution(ctx context.Context, projectID *big.Int, backer common.Address) (chain.Contribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contribCalls++
	if f.contribErr != nil {
		return chain.Contribution{}, f.contribErr
	}
	if c, ok := f.contributions[contribKey(projectID.Uint64(), backer)]; ok {
		return c, nil
	}
	return chain.Contribution{Amount: new(big.Int), Refunded: new(big.Int)}, nil
}

type staticGateway struct{}

func (staticGateway) Symbol(ctx context.Context, tokenAddress string) (string, error) {
	return "DAI", nil
}

func (staticGateway) Decimals(ctx context.Context, tokenAddress string) (uint8, error) {
	return 18, nil
}

func dai(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func project(title string, goal, raised int64) chain.RawProject {
	return chain.RawProject{
		Creator:       common.HexToAddress(backerAddr),
		TokenAddress:  common.HexToAddress(daiToken),
		Title:         title,
		Goal:          dai(goal),
		Deadline:      big.NewInt(testNow + 86400),
		TotalRaised:   dai(raised),
		TotalRefunded: big.NewInt(0),
	}
}

func newService(t *testing.T, escrow *fakeEscrow, retryCfg *retry.Config) *ProjectService {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := storage.NewProjectionCache(storage.NewRedisCacheFromClient(client), 15*time.Second)

	resolver := token.NewResolver(staticGateway{}, token.NewMetadataStore())
	formatter := token.DefaultFormatter()
	builder := projection.NewBuilder(resolver, formatter, func() time.Time {
		return time.Unix(testNow, 0)
	})

	return NewProjectService(escrow, builder, resolver, formatter, cache, retryCfg)
}

func TestListProjectsBuildsAndCaches(t *testing.T) {
	escrow := &fakeEscrow{projects: []chain.RawProject{
		project("First", 100, 10),
		project("Second", 200, 200),
	}}
	svc := newService(t, escrow, nil)

	first, err := svc.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Newest first.
	assert.Equal(t, "Second", first[0].Title)
	assert.EqualValues(t, 1, first[0].ID)
	assert.Equal(t, types.StatusFunded, first[0].Status)
	assert.Equal(t, "First", first[1].Title)
	assert.Equal(t, types.StatusActive, first[1].Status)

	// Second read comes from cache.
	second, err := svc.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, escrow.listCalls)
}

func TestListProjectsPaginatesLongListings(t *testing.T) {
	projects := make([]chain.RawProject, 0, listPageSize+3)
	for i := 0; i < listPageSize+3; i++ {
		projects = append(projects, project("P", 100, 0))
	}
	escrow := &fakeEscrow{projects: projects}
	svc := newService(t, escrow, nil)

	summaries, err := svc.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Len(t, summaries, listPageSize+3)
	assert.Equal(t, 2, escrow.listCalls)
}

func TestListProjectsDeduplicatesColdCacheReads(t *testing.T) {
	escrow := &fakeEscrow{
		projects: []chain.RawProject{project("Only", 100, 0)},
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	started := escrow.started
	svc := newService(t, escrow, nil)

	var wg sync.WaitGroup
	results := make([][]projection.ProjectSummary, 5)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = svc.ListProjects(context.Background())
	}()

	// Wait until the first request holds the chain walk, then pile on.
	<-started
	for i := 1; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.ListProjects(context.Background())
		}(i)
	}

	time.Sleep(20 * time.Millisecond) // let the waiters join the in-flight call
	close(escrow.release)
	wg.Wait()

	assert.Equal(t, 1, escrow.listCalls)
	for _, r := range results {
		require.Len(t, r, 1)
		assert.Equal(t, "Only", r[0].Title)
	}
}

func TestListProjectsRetriesTransientFailures(t *testing.T) {
	escrow := &fakeEscrow{
		projects:         []chain.RawProject{project("Flaky", 100, 0)},
		listFailuresLeft: 2,
	}
	svc := newService(t, escrow, &retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	})

	summaries, err := svc.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Equal(t, 3, escrow.listCalls)
}

func TestGetProjectDetailAndNotFound(t *testing.T) {
	escrow := &fakeEscrow{projects: []chain.RawProject{project("Well", 50000, 18750)}}
	svc := newService(t, escrow, nil)

	detail, err := svc.GetProject(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "Well", detail.Title)
	assert.Equal(t, "50.000 DAI", detail.Goal.Formatted)
	assert.Equal(t, "0 DAI", detail.Refunded.Formatted)

	// Cached on second read.
	_, err = svc.GetProject(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, escrow.projectCalls)

	_, err = svc.GetProject(context.Background(), 7)
	var serviceErr *types.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, types.ErrCodeProjectNotFound, serviceErr.Code)
}

func TestGetContribution(t *testing.T) {
	escrow := &fakeEscrow{
		projects: []chain.RawProject{project("Well", 50000, 18750)},
		contributions: map[string]chain.Contribution{
			contribKey(0, common.HexToAddress(backerAddr)): {Amount: dai(250), Refunded: big.NewInt(0)},
		},
	}
	svc := newService(t, escrow, nil)

	view, err := svc.GetContribution(context.Background(), 0, backerAddr)
	require.NoError(t, err)
	assert.Equal(t, "250 DAI", view.Amount.Formatted)
	assert.Equal(t, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", view.Backer)
}

func TestGetProjectDeduplicatesColdCacheReads(t *testing.T) {
	escrow := &fakeEscrow{
		projects:       []chain.RawProject{project("Only", 100, 0)},
		projectStarted: make(chan struct{}),
		projectRelease: make(chan struct{}),
	}
	started := escrow.projectStarted
	svc := newService(t, escrow, nil)

	var wg sync.WaitGroup
	results := make([]projection.ProjectDetail, 4)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = svc.GetProject(context.Background(), 0)
	}()

	// Wait until the first request holds the chain read, then pile on.
	<-started
	for i := 1; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.GetProject(context.Background(), 0)
		}(i)
	}

	time.Sleep(20 * time.Millisecond) // let the waiters join the in-flight call
	close(escrow.projectRelease)
	wg.Wait()

	assert.Equal(t, 1, escrow.projectCalls)
	for _, r := range results {
		assert.Equal(t, "Only", r.Title)
	}
}

func TestGetContributionServesCachedView(t *testing.T) {
	escrow := &fakeEscrow{
		projects: []chain.RawProject{project("Well", 50000, 18750)},
		contributions: map[string]chain.Contribution{
			contribKey(0, common.HexToAddress(backerAddr)): {Amount: dai(250), Refunded: big.NewInt(0)},
		},
	}
	svc := newService(t, escrow, nil)

	first, err := svc.GetContribution(context.Background(), 0, backerAddr)
	require.NoError(t, err)
	require.Equal(t, 1, escrow.contribCalls)
	projectReads := escrow.projectCalls

	// Second identical read is served from cache, no chain traffic.
	second, err := svc.GetContribution(context.Background(), 0, backerAddr)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, escrow.contribCalls)
	assert.Equal(t, projectReads, escrow.projectCalls)
}

func TestGetContributionDegradesToZeroRecord(t *testing.T) {
	escrow := &fakeEscrow{
		projects:   []chain.RawProject{project("Well", 50000, 18750)},
		contribErr: errors.New("rpc unreachable"),
	}
	svc := newService(t, escrow, nil)

	view, err := svc.GetContribution(context.Background(), 0, backerAddr)
	require.NoError(t, err, "contribution read failures are not user-facing")
	assert.Equal(t, "0 DAI", view.Amount.Formatted)
	assert.Equal(t, "0.0", view.Amount.Units)
}

func TestGetContributionRejectsBadAddress(t *testing.T) {
	svc := newService(t, &fakeEscrow{}, nil)

	_, err := svc.GetContribution(context.Background(), 0, "not-an-address")
	var serviceErr *types.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, types.ErrCodeInvalidInput, serviceErr.Code)
}

func TestContributionHistorySkipsZeroPositions(t *testing.T) {
	escrow := &fakeEscrow{
		projects: []chain.RawProject{
			project("First", 100, 10),
			project("Second", 200, 200),
			project("Third", 300, 30),
		},
		contributions: map[string]chain.Contribution{
			contribKey(0, common.HexToAddress(backerAddr)): {Amount: dai(5), Refunded: big.NewInt(0)},
			contribKey(2, common.HexToAddress(backerAddr)): {Amount: dai(12), Refunded: dai(12)},
		},
	}
	svc := newService(t, escrow, nil)

	entries, err := svc.ContributionHistory(context.Background(), backerAddr)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Listing order (newest first), zero positions dropped.
	assert.Equal(t, "Third", entries[0].Title)
	assert.Equal(t, "12 DAI", entries[0].Amount.Formatted)
	assert.Equal(t, "First", entries[1].Title)
	assert.Equal(t, "5 DAI", entries[1].Amount.Formatted)
}
