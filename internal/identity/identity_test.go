package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chukul/cloudaudit/internal/auditerr"
)

func TestResolverValidate(t *testing.T) {
	client := &fakeSTS{identity: &sts.GetCallerIdentityOutput{
		Account: aws.String("111111111111"),
		Arn:     aws.String("arn:aws-us-gov:iam::111111111111:user/auditor"),
		UserId:  aws.String("AIDAEXAMPLE"),
	}}

	id, err := NewResolver(client, nil).Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Identity{
		Account:   "111111111111",
		ARN:       "arn:aws-us-gov:iam::111111111111:user/auditor",
		UserID:    "AIDAEXAMPLE",
		Partition: "aws-us-gov",
	}, id)
}

func TestResolverValidateFailureIsIdentityError(t *testing.T) {
	client := &fakeSTS{identityErr: &smithy.GenericAPIError{Code: "InvalidClientTokenId", Message: "The security token included in the request is invalid."}}

	_, err := NewResolver(client, nil).Validate(context.Background())
	require.Error(t, err)
	assert.True(t, auditerr.IsKind(err, auditerr.KindIdentity))

	var e *auditerr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "InvalidClientTokenId", e.Code)
}

func TestResolverRejectsMalformedARN(t *testing.T) {
	client := &fakeSTS{identity: &sts.GetCallerIdentityOutput{Account: aws.String("1"), Arn: aws.String("not-an-arn")}}

	_, err := NewResolver(client, nil).Validate(context.Background())
	assert.True(t, auditerr.IsKind(err, auditerr.KindIdentity))
}

func TestAssumeRoleWithoutExternalIDOmitsField(t *testing.T) {
	client := &fakeSTS{}
	chain := NewChain(client, nil)

	assumed, err := chain.AssumeRole(context.Background(), RoleSpec{
		RoleARN:  "arn:aws:iam::222222222222:role/Audit",
		Duration: 2 * time.Hour,
	})
	require.NoError(t, err)
	require.Len(t, client.assumeCalls, 1)

	call := client.assumeCalls[0]
	assert.Nil(t, call.ExternalId)
	assert.Nil(t, call.SerialNumber)
	assert.Equal(t, int32(7200), aws.ToInt32(call.DurationSeconds))
	assert.Equal(t, DefaultSessionName, aws.ToString(call.RoleSessionName))

	assert.Equal(t, "222222222222", assumed.Account)
	assert.Equal(t, "aws", assumed.Partition)
	assert.True(t, assumed.Credentials.CanExpire)
	assert.Equal(t, "ASIA-ASSUMED", assumed.Credentials.AccessKeyID)
}

func TestAssumeRoleSendsExternalIDVerbatim(t *testing.T) {
	client := &fakeSTS{}

	_, err := NewChain(client, nil).AssumeRole(context.Background(), RoleSpec{
		RoleARN:    "arn:aws:iam::222222222222:role/Audit",
		ExternalID: " shared secret ",
	})
	require.NoError(t, err)
	require.NotNil(t, client.assumeCalls[0].ExternalId)
	assert.Equal(t, " shared secret ", *client.assumeCalls[0].ExternalId)
	assert.Equal(t, int32(3600), aws.ToInt32(client.assumeCalls[0].DurationSeconds))
}

func TestAssumeRoleWithMFA(t *testing.T) {
	client := &fakeSTS{}

	_, err := NewChain(client, nil).AssumeRole(context.Background(), RoleSpec{
		RoleARN:   "arn:aws:iam::222222222222:role/Audit",
		MFASerial: "arn:aws:iam::111111111111:mfa/auditor",
		TokenCode: func() (string, error) { return "123456", nil },
	})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::111111111111:mfa/auditor", aws.ToString(client.assumeCalls[0].SerialNumber))
	assert.Equal(t, "123456", aws.ToString(client.assumeCalls[0].TokenCode))
}

func TestAssumeRoleFailures(t *testing.T) {
	tests := []struct {
		name   string
		spec   RoleSpec
		client *fakeSTS
		calls  int
	}{
		{
			name:   "api error",
			spec:   RoleSpec{RoleARN: "arn:aws:iam::222222222222:role/Audit"},
			client: &fakeSTS{assumeErr: &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}},
			calls:  1,
		},
		{
			name:   "malformed arn",
			spec:   RoleSpec{RoleARN: "Audit"},
			client: &fakeSTS{},
		},
		{
			name:   "not a role",
			spec:   RoleSpec{RoleARN: "arn:aws:iam::222222222222:user/someone"},
			client: &fakeSTS{},
		},
		{
			name: "token prompt fails",
			spec: RoleSpec{
				RoleARN:   "arn:aws:iam::222222222222:role/Audit",
				MFASerial: "arn:aws:iam::111111111111:mfa/auditor",
				TokenCode: func() (string, error) { return "", errors.New("cancelled") },
			},
			client: &fakeSTS{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChain(tt.client, nil).AssumeRole(context.Background(), tt.spec)
			require.Error(t, err)
			assert.True(t, auditerr.IsKind(err, auditerr.KindAssumeRole))
			assert.Len(t, tt.client.assumeCalls, tt.calls)
		})
	}
}

func TestRenewerReassumesSameRole(t *testing.T) {
	client := &fakeSTS{}
	spec := RoleSpec{RoleARN: "arn:aws:iam::222222222222:role/Audit", ExternalID: "ext"}

	renew := NewChain(client, nil).Renewer(spec)
	creds, err := renew(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ASIA-ASSUMED", creds.AccessKeyID)

	require.Len(t, client.assumeCalls, 1)
	assert.Equal(t, spec.RoleARN, aws.ToString(client.assumeCalls[0].RoleArn))
	assert.Equal(t, "ext", aws.ToString(client.assumeCalls[0].ExternalId))
}

func TestFetchOrgMetadata(t *testing.T) {
	client := &fakeOrganizations{
		account: &orgtypes.Account{
			Email: aws.String("audit@example.com"),
			Name:  aws.String("Production"),
			Arn:   aws.String("arn:aws:organizations::999999999999:account/o-abc123/111111111111"),
		},
		tagPages: [][]orgtypes.Tag{
			{{Key: aws.String("env"), Value: aws.String("prod")}},
			{{Key: aws.String("team"), Value: aws.String("sec")}},
		},
	}

	md, err := FetchOrgMetadata(context.Background(), client, "111111111111")
	require.NoError(t, err)
	assert.Equal(t, &OrgMetadata{
		Email: "audit@example.com",
		Name:  "Production",
		ARN:   "arn:aws:organizations::999999999999:account/o-abc123/111111111111",
		OrgID: "o-abc123",
		Tags:  "env:prod,team:sec,",
	}, md)
}

func TestFetchOrgMetadataFailures(t *testing.T) {
	_, err := FetchOrgMetadata(context.Background(), &fakeOrganizations{describeErr: errors.New("AccessDenied")}, "1")
	assert.True(t, auditerr.IsKind(err, auditerr.KindOrgMetadata))

	_, err = FetchOrgMetadata(context.Background(), &fakeOrganizations{
		account: &orgtypes.Account{Arn: aws.String("arn:aws:organizations::9:account/o-x/1")},
		tagsErr: errors.New("throttled"),
	}, "1")
	assert.True(t, auditerr.IsKind(err, auditerr.KindOrgMetadata))
}
