package projection

import (
	"context"
	"time"

	"github.com/fairfund-scanner/internal/chain"
	"github.com/fairfund-scanner/internal/token"
	"github.com/fairfund-scanner/internal/types"
)

// deadlineLabelLayout renders the deadline as a short human date
const deadlineLabelLayout = "2 Jan 2006"

// ProjectSummary is the display-ready projection of one campaign
type ProjectSummary struct {
	ID             uint64              `json:"id"`
	Title          string              `json:"title"`
	Creator        string              `json:"creator"`
	DescriptionURI string              `json:"descriptionUri"`
	TokenAddress   string              `json:"tokenAddress"`
	TokenSymbol    string              `json:"tokenSymbol"`
	Goal           token.Amount        `json:"goal"`
	Raised         token.Amount        `json:"raised"`
	Progress       float64             `json:"progress"`
	Deadline       int64               `json:"deadline"`
	DeadlineLabel  string              `json:"deadlineLabel"`
	Status         types.ProjectStatus `json:"status"`
	Withdrawn      bool                `json:"withdrawn"`
	Cancelled      bool                `json:"cancelled"`
	Paused         bool                `json:"paused"`
}

// ProjectDetail extends the summary with the refunded total
type ProjectDetail struct {
	ProjectSummary
	Refunded token.Amount `json:"refunded"`
}

// Builder composes metadata resolution, amount formatting and status
// derivation into projections. Given the same record and resolved metadata it
// always produces the same output; the only time-dependent field is Status,
// driven by the injected clock.
type Builder struct {
	resolver  *token.Resolver
	formatter *token.Formatter
	now       func() time.Time
}

// NewBuilder creates a projection builder. A nil clock defaults to time.Now.
func NewBuilder(resolver *token.Resolver, formatter *token.Formatter, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{resolver: resolver, formatter: formatter, now: now}
}

// BuildSummary projects a raw campaign record into a ProjectSummary.
// Token metadata is resolved once per call.
func (b *Builder) BuildSummary(ctx context.Context, id uint64, record chain.RawProject) ProjectSummary {
	summary, _ := b.build(ctx, id, record)
	return summary
}

// BuildDetail projects a raw campaign record into a ProjectDetail, formatting
// the refunded total with the same metadata already resolved for the summary.
func (b *Builder) BuildDetail(ctx context.Context, id uint64, record chain.RawProject) ProjectDetail {
	summary, md := b.build(ctx, id, record)
	return ProjectDetail{
		ProjectSummary: summary,
		Refunded:       b.formatter.Format(record.TotalRefunded, md.Decimals, md.Symbol),
	}
}

func (b *Builder) build(ctx context.Context, id uint64, record chain.RawProject) (ProjectSummary, token.Metadata) {
	md := b.resolver.Resolve(ctx, record.TokenAddress.Hex())

	goal := b.formatter.Format(record.Goal, md.Decimals, md.Symbol)
	raised := b.formatter.Format(record.TotalRaised, md.Decimals, md.Symbol)
	deadline := unixOrZero(record.Deadline)

	return ProjectSummary{
		ID:             id,
		Title:          record.Title,
		Creator:        chain.NormalizeAddress(record.Creator.Hex()),
		DescriptionURI: record.DescriptionURI,
		TokenAddress:   chain.NormalizeAddress(record.TokenAddress.Hex()),
		TokenSymbol:    md.Symbol,
		Goal:           goal,
		Raised:         raised,
		Progress:       progressRatio(raised, goal),
		Deadline:       deadline,
		DeadlineLabel:  time.Unix(deadline, 0).UTC().Format(deadlineLabelLayout),
		Status:         DeriveStatus(record, b.now().Unix()),
		Withdrawn:      record.Withdrawn,
		Cancelled:      record.Cancelled,
		Paused:         record.PausedByCreator,
	}, md
}

// progressRatio computes raised/goal clamped to [0, 1]. When either numeric
// is unavailable or the goal is not positive, the ratio is 0.
func progressRatio(raised, goal token.Amount) float64 {
	if raised.Numeric == nil || goal.Numeric == nil || *goal.Numeric <= 0 {
		return 0
	}
	ratio := *raised.Numeric / *goal.Numeric
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}
