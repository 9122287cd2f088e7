package identity

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"

	"github.com/chukul/cloudaudit/internal/auditerr"
)

// OrganizationsAPI is the subset of the Organizations client used here.
type OrganizationsAPI interface {
	DescribeAccount(ctx context.Context, params *organizations.DescribeAccountInput, optFns ...func(*organizations.Options)) (*organizations.DescribeAccountOutput, error)
	ListTagsForResource(ctx context.Context, params *organizations.ListTagsForResourceInput, optFns ...func(*organizations.Options)) (*organizations.ListTagsForResourceOutput, error)
}

// OrgMetadata is the denormalized account record fetched once per run.
type OrgMetadata struct {
	Email string
	Name  string
	ARN   string
	OrgID string

	// Tags holds every tag as "key:value," concatenated.
	Tags string
}

// FetchOrgMetadata describes accountID and lists its tags. Failures are
// returned as OrgMetadataError.
func FetchOrgMetadata(ctx context.Context, client OrganizationsAPI, accountID string) (*OrgMetadata, error) {
	desc, err := client.DescribeAccount(ctx, &organizations.DescribeAccountInput{
		AccountId: aws.String(accountID),
	})
	if err != nil {
		return nil, auditerr.New(auditerr.KindOrgMetadata, "organizations:DescribeAccount", err)
	}
	if desc.Account == nil {
		return nil, auditerr.Newf(auditerr.KindOrgMetadata, "organizations:DescribeAccount", "account %s not returned", accountID)
	}

	var tags strings.Builder
	pager := organizations.NewListTagsForResourcePaginator(client, &organizations.ListTagsForResourceInput{
		ResourceId: aws.String(accountID),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, auditerr.New(auditerr.KindOrgMetadata, "organizations:ListTagsForResource", err)
		}
		for _, tag := range page.Tags {
			tags.WriteString(aws.ToString(tag.Key))
			tags.WriteString(":")
			tags.WriteString(aws.ToString(tag.Value))
			tags.WriteString(",")
		}
	}

	accountARN := aws.ToString(desc.Account.Arn)
	return &OrgMetadata{
		Email: aws.ToString(desc.Account.Email),
		Name:  aws.ToString(desc.Account.Name),
		ARN:   accountARN,
		OrgID: orgIDFromAccountARN(accountARN),
		Tags:  tags.String(),
	}, nil
}

// orgIDFromAccountARN extracts o-xxxx from
// arn:aws:organizations::<mgmt>:account/o-xxxx/<account>.
func orgIDFromAccountARN(accountARN string) string {
	parts := strings.Split(accountARN, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
