// Package securityhub adapts AWS Security Hub to the finding store used by
// the reconciliation engine.
package securityhub

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/securityhub"
	shtypes "github.com/aws/aws-sdk-go-v2/service/securityhub/types"
	"go.uber.org/zap"

	"github.com/chukul/cloudaudit/internal/auditerr"
	"github.com/chukul/cloudaudit/internal/findings"
	"github.com/chukul/cloudaudit/internal/regions"
)

const (
	// MaxBatchSize is the BatchImportFindings limit.
	MaxBatchSize = 100

	DefaultProductName = "CloudAudit"
	DefaultIntegration = "chukul/cloudaudit"

	// Service is the catalog key for Security Hub.
	Service = "securityhub"
)

// API is the subset of the Security Hub client the store calls.
type API interface {
	DescribeHub(ctx context.Context, params *securityhub.DescribeHubInput, optFns ...func(*securityhub.Options)) (*securityhub.DescribeHubOutput, error)
	ListEnabledProductsForImport(ctx context.Context, params *securityhub.ListEnabledProductsForImportInput, optFns ...func(*securityhub.Options)) (*securityhub.ListEnabledProductsForImportOutput, error)
	GetFindings(ctx context.Context, params *securityhub.GetFindingsInput, optFns ...func(*securityhub.Options)) (*securityhub.GetFindingsOutput, error)
	BatchImportFindings(ctx context.Context, params *securityhub.BatchImportFindingsInput, optFns ...func(*securityhub.Options)) (*securityhub.BatchImportFindingsOutput, error)
}

// NewClient builds a Security Hub client for a regional fan-out.
func NewClient(cfg aws.Config) API {
	return securityhub.NewFromConfig(cfg)
}

// Store talks to Security Hub in every region it holds a client for. Every
// error it returns is a recoverable StoreError.
type Store struct {
	clients     map[string]API
	integration string
	logger      *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithIntegration sets the product subscription that must be enabled.
func WithIntegration(name string) Option {
	return func(s *Store) { s.integration = name }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a Store over regional clients.
func NewStore(clients []regions.Regional[API], opts ...Option) *Store {
	s := &Store{
		clients:     make(map[string]API, len(clients)),
		integration: DefaultIntegration,
		logger:      zap.NewNop(),
	}
	for _, c := range clients {
		s.clients[c.Region] = c.Client
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) client(op, region string) (API, error) {
	c, ok := s.clients[region]
	if !ok {
		return nil, auditerr.Newf(auditerr.KindStore, op, "no Security Hub client for region %q", region)
	}
	return c, nil
}

// DescribeHub fails when Security Hub is not enabled in region.
func (s *Store) DescribeHub(ctx context.Context, region string) error {
	c, err := s.client("securityhub:DescribeHub", region)
	if err != nil {
		return err
	}
	if _, err := c.DescribeHub(ctx, &securityhub.DescribeHubInput{}); err != nil {
		return auditerr.New(auditerr.KindStore, "securityhub:DescribeHub", err)
	}
	return nil
}

// IntegrationEnabled reports whether the product subscription accepts findings in region.
func (s *Store) IntegrationEnabled(ctx context.Context, region string) (bool, error) {
	c, err := s.client("securityhub:ListEnabledProductsForImport", region)
	if err != nil {
		return false, err
	}

	pager := securityhub.NewListEnabledProductsForImportPaginator(c, &securityhub.ListEnabledProductsForImportInput{})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return false, auditerr.New(auditerr.KindStore, "securityhub:ListEnabledProductsForImport", err)
		}
		for _, sub := range page.ProductSubscriptions {
			if strings.Contains(sub, s.integration) {
				return true, nil
			}
		}
	}
	return false, nil
}

// Findings returns every finding matching filter in filter.Region.
func (s *Store) Findings(ctx context.Context, filter findings.Filter) ([]findings.Finding, error) {
	c, err := s.client("securityhub:GetFindings", filter.Region)
	if err != nil {
		return nil, err
	}

	pager := securityhub.NewGetFindingsPaginator(c, &securityhub.GetFindingsInput{
		Filters: buildFilters(filter),
	})

	var out []findings.Finding
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, auditerr.New(auditerr.KindStore, "securityhub:GetFindings", err)
		}
		for _, rec := range page.Findings {
			out = append(out, findings.FromASFF(rec))
		}
	}

	s.logger.Debug("Fetched findings",
		zap.String("region", filter.Region),
		zap.String("state", string(filter.State)),
		zap.Int("count", len(out)))
	return out, nil
}

// Submit imports one batch of at most MaxBatchSize findings into region.
// Findings without a full record are reported as failed without being sent.
func (s *Store) Submit(ctx context.Context, region string, batch []findings.Finding) (findings.SubmitResult, error) {
	if len(batch) > MaxBatchSize {
		return findings.SubmitResult{}, auditerr.Newf(auditerr.KindStore, "securityhub:BatchImportFindings", "batch of %d exceeds limit of %d", len(batch), MaxBatchSize)
	}
	c, err := s.client("securityhub:BatchImportFindings", region)
	if err != nil {
		return findings.SubmitResult{}, err
	}

	var result findings.SubmitResult
	records := make([]shtypes.AwsSecurityFinding, 0, len(batch))
	for _, f := range batch {
		if f.Record == nil {
			result.FailedCount++
			result.Failed = append(result.Failed, findings.FailedFinding{
				ID:           f.ID,
				ErrorCode:    "MissingRecord",
				ErrorMessage: fmt.Sprintf("finding %s has no ASFF record to submit", f.ID),
			})
			continue
		}
		records = append(records, *f.Record)
	}
	if len(records) == 0 {
		return result, nil
	}

	out, err := c.BatchImportFindings(ctx, &securityhub.BatchImportFindingsInput{Findings: records})
	if err != nil {
		return findings.SubmitResult{}, auditerr.New(auditerr.KindStore, "securityhub:BatchImportFindings", err)
	}

	result.FailedCount += int(aws.ToInt32(out.FailedCount))
	for _, f := range out.FailedFindings {
		result.Failed = append(result.Failed, findings.FailedFinding{
			ID:           aws.ToString(f.Id),
			ErrorCode:    aws.ToString(f.ErrorCode),
			ErrorMessage: aws.ToString(f.ErrorMessage),
		})
	}
	return result, nil
}

func buildFilters(f findings.Filter) *shtypes.AwsSecurityFindingFilters {
	eq := func(v string) []shtypes.StringFilter {
		if v == "" {
			return nil
		}
		return []shtypes.StringFilter{{Value: aws.String(v), Comparison: shtypes.StringFilterComparisonEquals}}
	}
	return &shtypes.AwsSecurityFindingFilters{
		ProductName:  eq(f.Product),
		RecordState:  eq(string(f.State)),
		AwsAccountId: eq(f.Account),
		Region:       eq(f.Region),
	}
}
