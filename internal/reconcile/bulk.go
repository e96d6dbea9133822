package reconcile

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/courtneys-list/vendors/internal/model"
)

// DefaultBulkConcurrency bounds parallel approvals in ApproveAllExact.
const DefaultBulkConcurrency = 4

// BulkApprover approves every same-community exact group of a community.
type BulkApprover struct {
	matcher     *Matcher
	approver    *Approver
	concurrency int
}

// NewBulkApprover creates a BulkApprover. concurrency <= 0 uses the default.
func NewBulkApprover(m *Matcher, a *Approver, concurrency int) *BulkApprover {
	if concurrency <= 0 {
		concurrency = DefaultBulkConcurrency
	}
	return &BulkApprover{matcher: m, approver: a, concurrency: concurrency}
}

// ApproveAllExact attempts one approval per same-community exact group.
// Each group is independent: a failure is recorded in the result and the
// rest continue. Cross-community groups are skipped and counted. Only a
// failure to load the groups is returned as an error.
func (b *BulkApprover) ApproveAllExact(ctx context.Context, community string) (*BatchResult, error) {
	groups, err := b.matcher.ExactMatches(ctx, community)
	if err != nil {
		return nil, err
	}
	return b.approveGroups(ctx, community, groups), nil
}

func (b *BulkApprover) approveGroups(ctx context.Context, community string, groups []model.ExactMatch) *BatchResult {
	res := &BatchResult{}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	var mu sync.Mutex
	for _, grp := range groups {
		if !grp.IsSameCommunity {
			res.Skipped++
			continue
		}
		res.Attempted++

		g.Go(func() error {
			n, err := b.approver.Approve(gCtx, community, grp.RatingIDs, grp.MatchedVendorID, ApproveOptions{})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failures = append(res.Failures, GroupError{
					SurveyVendorName: grp.SurveyVendorName,
					Category:         grp.Category,
					RatingIDs:        grp.RatingIDs,
					Err:              err,
					Message:          err.Error(),
				})
				zap.L().Warn("reconcile: exact group failed",
					zap.String("community", community),
					zap.String("survey_vendor_name", grp.SurveyVendorName),
					zap.Error(err),
				)
				return nil // don't abort batch on individual failure
			}
			res.Succeeded++
			res.Linked += n
			return nil
		})
	}

	_ = g.Wait()

	zap.L().Info("reconcile: approve all exact complete",
		zap.String("community", community),
		zap.Int("attempted", res.Attempted),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed()),
		zap.Int("skipped", res.Skipped),
		zap.Int64("linked", res.Linked),
	)
	return res
}
