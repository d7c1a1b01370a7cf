// Package service implements the campaign read path: cache first, then chain
// reads projected into display models.
package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fairfund-scanner/internal/chain"
	"github.com/fairfund-scanner/internal/logging"
	"github.com/fairfund-scanner/internal/projection"
	"github.com/fairfund-scanner/internal/retry"
	"github.com/fairfund-scanner/internal/storage"
	"github.com/fairfund-scanner/internal/token"
	"github.com/fairfund-scanner/internal/types"
)

// listPageSize bounds one getProjects call when walking the full listing
const listPageSize = 50

// EscrowReader covers the escrow contract reads the service needs
type EscrowReader interface {
	ProjectCount(ctx context.Context) (*big.Int, error)
	GetProject(ctx context.Context, projectID *big.Int) (chain.RawProject, error)
	GetProjects(ctx context.Context, offset, limit *big.Int) ([]chain.RawProject, error)
	GetContribution(ctx context.Context, projectID *big.Int, backer common.Address) (chain.Contribution, error)
}

// MetadataResolver resolves ERC20 display metadata
type MetadataResolver interface {
	Resolve(ctx context.Context, tokenAddress string) token.Metadata
}

// ContributionView is a backer's formatted position in one project
type ContributionView struct {
	ProjectID uint64       `json:"projectId"`
	Backer    string       `json:"backer"`
	Amount    token.Amount `json:"amount"`
	Refunded  token.Amount `json:"refunded"`
}

// HistoryEntry is one row of a backer's activity dashboard
type HistoryEntry struct {
	ProjectID uint64              `json:"projectId"`
	Title     string              `json:"title"`
	Status    types.ProjectStatus `json:"status"`
	Amount    token.Amount        `json:"amount"`
	Refunded  token.Amount        `json:"refunded"`
}

// inflightCall lets concurrent identical rebuilds share one chain read
type inflightCall struct {
	done  chan struct{}
	value interface{}
	err   error
}

// ProjectService serves campaign projections. Reads consult the cache first;
// misses rebuild from chain through the builder, de-duplicating concurrent
// rebuilds per cache key so a cold cache triggers one chain read, not one
// per request.
type ProjectService struct {
	escrow    EscrowReader
	builder   *projection.Builder
	resolver  MetadataResolver
	formatter *token.Formatter
	cache     *storage.ProjectionCache
	retryCfg  *retry.Config

	inflightMu sync.Mutex
	inflight   map[string]*inflightCall
}

// NewProjectService creates the read service. A nil retry config disables
// retries on chain reads.
func NewProjectService(escrow EscrowReader, builder *projection.Builder, resolver MetadataResolver, formatter *token.Formatter, cache *storage.ProjectionCache, retryCfg *retry.Config) *ProjectService {
	if retryCfg == nil {
		retryCfg = &retry.Config{MaxAttempts: 1, Multiplier: 1}
	}
	return &ProjectService{
		escrow:    escrow,
		builder:   builder,
		resolver:  resolver,
		formatter: formatter,
		cache:     cache,
		retryCfg:  retryCfg,
		inflight:  make(map[string]*inflightCall),
	}
}

// ListProjects returns summaries for every campaign, newest first
func (s *ProjectService) ListProjects(ctx context.Context) ([]projection.ProjectSummary, error) {
	var cached []projection.ProjectSummary
	found, err := s.cache.Get(ctx, storage.ListKey(), &cached)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("cache read failed, falling back to chain")
	}
	if found {
		return cached, nil
	}

	value, err := s.sharedRebuild(ctx, storage.ListKey(), func() (interface{}, error) {
		return s.rebuildListing(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.([]projection.ProjectSummary), nil
}

// sharedRebuild collapses concurrent identical cache misses onto one rebuild
// per key. The rebuild caches its result before completing, so requests
// arriving after completion hit the cache instead of joining a call.
func (s *ProjectService) sharedRebuild(ctx context.Context, key string, rebuild func() (interface{}, error)) (interface{}, error) {
	call, isNew := s.getOrCreateInflight(key)
	if !isNew {
		select {
		case <-call.done:
			return call.value, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call.value, call.err = rebuild()
	s.completeInflight(key, call)
	return call.value, call.err
}

func (s *ProjectService) getOrCreateInflight(key string) (*inflightCall, bool) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if call, exists := s.inflight[key]; exists {
		return call, false
	}
	call := &inflightCall{done: make(chan struct{})}
	s.inflight[key] = call
	return call, true
}

func (s *ProjectService) completeInflight(key string, call *inflightCall) {
	s.inflightMu.Lock()
	delete(s.inflight, key)
	s.inflightMu.Unlock()
	close(call.done)
}

// rebuildListing walks every project on chain and projects it
func (s *ProjectService) rebuildListing(ctx context.Context) ([]projection.ProjectSummary, error) {
	count, err := s.projectCount(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]projection.ProjectSummary, 0, count)
	for offset := uint64(0); offset < count; offset += listPageSize {
		limit := uint64(listPageSize)
		if remaining := count - offset; remaining < limit {
			limit = remaining
		}

		var page []chain.RawProject
		err := retry.Do(ctx, s.retryCfg, func(ctx context.Context, attempt int) error {
			var readErr error
			page, readErr = s.escrow.GetProjects(ctx, new(big.Int).SetUint64(offset), new(big.Int).SetUint64(limit))
			return readErr
		})
		if err != nil {
			return nil, fmt.Errorf("reading projects %d..%d: %w", offset, offset+limit, err)
		}

		for i, record := range page {
			summaries = append(summaries, s.builder.BuildSummary(ctx, offset+uint64(i), record))
		}
	}

	// Newest campaigns first.
	for i, j := 0, len(summaries)-1; i < j; i, j = i+1, j-1 {
		summaries[i], summaries[j] = summaries[j], summaries[i]
	}

	if err := s.cache.Set(ctx, storage.ListKey(), summaries); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("caching project listing failed")
	}
	return summaries, nil
}

// GetProject returns the detail projection for one campaign
func (s *ProjectService) GetProject(ctx context.Context, projectID uint64) (projection.ProjectDetail, error) {
	var cached projection.ProjectDetail
	found, err := s.cache.Get(ctx, storage.ProjectKey(projectID), &cached)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("cache read failed, falling back to chain")
	}
	if found {
		return cached, nil
	}

	value, err := s.sharedRebuild(ctx, storage.ProjectKey(projectID), func() (interface{}, error) {
		record, err := s.rawProject(ctx, projectID)
		if err != nil {
			return nil, err
		}

		detail := s.builder.BuildDetail(ctx, projectID, record)
		if err := s.cache.Set(ctx, storage.ProjectKey(projectID), detail); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("caching project detail failed")
		}
		return detail, nil
	})
	if err != nil {
		return projection.ProjectDetail{}, err
	}
	return value.(projection.ProjectDetail), nil
}

// GetContribution returns a backer's formatted position in one campaign.
// Read failures degrade to a zero record rather than an error, matching the
// metadata fallback policy: a flaky node must not break the page.
func (s *ProjectService) GetContribution(ctx context.Context, projectID uint64, backer string) (ContributionView, error) {
	if !chain.ValidateAddress(backer) {
		return ContributionView{}, types.NewServiceError(types.ErrCodeInvalidInput, "invalid backer address")
	}

	key := storage.ContributionKey(projectID, backer)
	var cached ContributionView
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("cache read failed, falling back to chain")
	}
	if found {
		return cached, nil
	}

	value, err := s.sharedRebuild(ctx, key, func() (interface{}, error) {
		return s.rebuildContribution(ctx, projectID, backer, key)
	})
	if err != nil {
		return ContributionView{}, err
	}
	return value.(ContributionView), nil
}

func (s *ProjectService) rebuildContribution(ctx context.Context, projectID uint64, backer, key string) (ContributionView, error) {
	record, err := s.rawProject(ctx, projectID)
	if err != nil {
		return ContributionView{}, err
	}
	md := s.resolver.Resolve(ctx, record.TokenAddress.Hex())

	contribution, err := s.escrow.GetContribution(ctx, new(big.Int).SetUint64(projectID), common.HexToAddress(backer))
	if err != nil {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"project": projectID,
			"backer":  backer,
		}).WithError(err).Warn("contribution read failed, serving zero record")
		contribution = chain.Contribution{Amount: new(big.Int), Refunded: new(big.Int)}
	}

	view := ContributionView{
		ProjectID: projectID,
		Backer:    chain.NormalizeAddress(backer),
		Amount:    s.formatter.Format(contribution.Amount, md.Decimals, md.Symbol),
		Refunded:  s.formatter.Format(contribution.Refunded, md.Decimals, md.Symbol),
	}
	if err := s.cache.Set(ctx, key, view); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("caching contribution failed")
	}
	return view, nil
}

// ContributionHistory returns the backer's non-zero positions across every
// campaign, newest first. Unreadable contributions are skipped.
func (s *ProjectService) ContributionHistory(ctx context.Context, backer string) ([]HistoryEntry, error) {
	if !chain.ValidateAddress(backer) {
		return nil, types.NewServiceError(types.ErrCodeInvalidInput, "invalid backer address")
	}

	summaries, err := s.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	backerAddr := common.HexToAddress(backer)
	entries := make([]HistoryEntry, 0)
	for _, summary := range summaries {
		contribution, err := s.escrow.GetContribution(ctx, new(big.Int).SetUint64(summary.ID), backerAddr)
		if err != nil {
			logging.FromContext(ctx).WithFields(map[string]interface{}{
				"project": summary.ID,
				"backer":  backer,
			}).WithError(err).Warn("skipping unreadable contribution")
			continue
		}
		if contribution.Amount == nil || contribution.Amount.Sign() == 0 {
			continue
		}

		md := s.resolver.Resolve(ctx, strings.ToLower(summary.TokenAddress))
		entries = append(entries, HistoryEntry{
			ProjectID: summary.ID,
			Title:     summary.Title,
			Status:    summary.Status,
			Amount:    s.formatter.Format(contribution.Amount, md.Decimals, md.Symbol),
			Refunded:  s.formatter.Format(contribution.Refunded, md.Decimals, md.Symbol),
		})
	}
	return entries, nil
}

// rawProject fetches one record, mapping an out-of-range id to a not-found
// service error.
func (s *ProjectService) rawProject(ctx context.Context, projectID uint64) (chain.RawProject, error) {
	count, err := s.projectCount(ctx)
	if err != nil {
		return chain.RawProject{}, err
	}
	if projectID >= count {
		return chain.RawProject{}, types.NewServiceError(types.ErrCodeProjectNotFound,
			fmt.Sprintf("project %d does not exist", projectID))
	}

	var record chain.RawProject
	err = retry.Do(ctx, s.retryCfg, func(ctx context.Context, attempt int) error {
		var readErr error
		record, readErr = s.escrow.GetProject(ctx, new(big.Int).SetUint64(projectID))
		return readErr
	})
	if err != nil {
		return chain.RawProject{}, fmt.Errorf("reading project %d: %w", projectID, err)
	}
	return record, nil
}

func (s *ProjectService) projectCount(ctx context.Context) (uint64, error) {
	var count *big.Int
	err := retry.Do(ctx, s.retryCfg, func(ctx context.Context, attempt int) error {
		var readErr error
		count, readErr = s.escrow.ProjectCount(ctx)
		return readErr
	})
	if err != nil {
		return 0, fmt.Errorf("reading project count: %w", err)
	}
	return count.Uint64(), nil
}
