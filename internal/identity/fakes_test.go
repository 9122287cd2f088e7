package identity

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
)

type fakeSTS struct {
	identity    *sts.GetCallerIdentityOutput
	identityErr error
	assumeErr   error
	expiration  time.Time
	assumeCalls []*sts.AssumeRoleInput
}

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.identityErr != nil {
		return nil, f.identityErr
	}
	return f.identity, nil
}

func (f *fakeSTS) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.assumeCalls = append(f.assumeCalls, params)
	if f.assumeErr != nil {
		return nil, f.assumeErr
	}
	exp := f.expiration
	if exp.IsZero() {
		exp = time.Now().Add(time.Hour)
	}
	return &sts.AssumeRoleOutput{
		Credentials: &ststypes.Credentials{
			AccessKeyId:     aws.String("ASIA-ASSUMED"),
			SecretAccessKey: aws.String("assumed-secret"),
			SessionToken:    aws.String("assumed-token"),
			Expiration:      aws.Time(exp),
		},
		AssumedRoleUser: &ststypes.AssumedRoleUser{
			Arn:           aws.String("arn:aws:sts::222222222222:assumed-role/Audit/" + aws.ToString(params.RoleSessionName)),
			AssumedRoleId: aws.String("AROA:" + aws.ToString(params.RoleSessionName)),
		},
	}, nil
}

type fakeOrganizations struct {
	account     *orgtypes.Account
	describeErr error
	tagPages    [][]orgtypes.Tag
	tagsErr     error
	tagCalls    int
}

func (f *fakeOrganizations) DescribeAccount(ctx context.Context, params *organizations.DescribeAccountInput, optFns ...func(*organizations.Options)) (*organizations.DescribeAccountOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &organizations.DescribeAccountOutput{Account: f.account}, nil
}

func (f *fakeOrganizations) ListTagsForResource(ctx context.Context, params *organizations.ListTagsForResourceInput, optFns ...func(*organizations.Options)) (*organizations.ListTagsForResourceOutput, error) {
	if f.tagsErr != nil {
		return nil, f.tagsErr
	}
	out := &organizations.ListTagsForResourceOutput{}
	if f.tagCalls < len(f.tagPages) {
		out.Tags = f.tagPages[f.tagCalls]
	}
	f.tagCalls++
	if f.tagCalls < len(f.tagPages) {
		out.NextToken = aws.String("next")
	}
	return out, nil
}
