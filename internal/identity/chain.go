package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"

	"github.com/chukul/cloudaudit/internal/auditerr"
	"github.com/chukul/cloudaudit/internal/credentials"
)

// DefaultSessionName is the role session name used for every assumption.
const DefaultSessionName = "CloudAuditAssessmentSession"

// DefaultSessionDuration is used when a RoleSpec carries no duration.
const DefaultSessionDuration = time.Hour

// TokenCodeFunc returns a current MFA token code.
type TokenCodeFunc func() (string, error)

// RoleSpec describes one role assumption. It must not change once the
// assumption starts.
type RoleSpec struct {
	RoleARN     string
	SessionName string
	Duration    time.Duration

	// ExternalID is omitted from the request when empty.
	ExternalID string

	// MFASerial, when set, sends SerialNumber and a code from TokenCode.
	MFASerial string
	TokenCode TokenCodeFunc
}

// Validate checks that RoleARN is an IAM role ARN.
func (s RoleSpec) Validate() error {
	if err := ValidateRoleARN(s.RoleARN); err != nil {
		return err
	}
	if s.MFASerial != "" && s.TokenCode == nil {
		return fmt.Errorf("mfa serial %q configured without a token source", s.MFASerial)
	}
	return nil
}

// ValidateRoleARN checks that roleARN parses and names an IAM role.
func ValidateRoleARN(roleARN string) error {
	parsed, err := arn.Parse(roleARN)
	if err != nil {
		return fmt.Errorf("invalid role arn %q: %w", roleARN, err)
	}
	if parsed.Service != "iam" || !strings.HasPrefix(parsed.Resource, "role/") {
		return fmt.Errorf("arn %q is not an IAM role", roleARN)
	}
	return nil
}

// AssumedRole is the outcome of one link in the chain.
type AssumedRole struct {
	Credentials credentials.Credentials

	// Account and Partition are taken from the role ARN and become the
	// audited attribution when this link is the workload link.
	Account   string
	Partition string

	// AssumedRoleARN is the STS assumed-role user ARN.
	AssumedRoleARN string
}

// Chain performs sequential assume-role calls using the base session's STS client.
type Chain struct {
	client STSAPI
	logger *zap.Logger
}

// NewChain creates a Chain. A nil logger disables logging.
func NewChain(client STSAPI, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{client: client, logger: logger}
}

// AssumeRole issues a single sts:AssumeRole call for spec. Failures are
// returned as AssumeRoleError.
func (c *Chain) AssumeRole(ctx context.Context, spec RoleSpec) (AssumedRole, error) {
	if err := spec.Validate(); err != nil {
		return AssumedRole{}, auditerr.New(auditerr.KindAssumeRole, "sts:AssumeRole", err)
	}
	roleARN, _ := arn.Parse(spec.RoleARN)

	input, err := buildAssumeRoleInput(spec)
	if err != nil {
		return AssumedRole{}, auditerr.New(auditerr.KindAssumeRole, "sts:AssumeRole", err)
	}

	c.logger.Info("Assuming role", zap.String("role_arn", spec.RoleARN), zap.Int32("duration_seconds", aws.ToInt32(input.DurationSeconds)))

	out, err := c.client.AssumeRole(ctx, input)
	if err != nil {
		return AssumedRole{}, auditerr.New(auditerr.KindAssumeRole, "sts:AssumeRole", err)
	}
	if out.Credentials == nil {
		return AssumedRole{}, auditerr.Newf(auditerr.KindAssumeRole, "sts:AssumeRole", "no credentials returned for %s", spec.RoleARN)
	}

	assumed := AssumedRole{
		Credentials: credentials.Credentials{
			AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
			SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
			SessionToken:    aws.ToString(out.Credentials.SessionToken),
		},
		Account:   roleARN.AccountID,
		Partition: roleARN.Partition,
	}
	if out.Credentials.Expiration != nil {
		assumed.Credentials.CanExpire = true
		assumed.Credentials.Expires = *out.Credentials.Expiration
	}
	if out.AssumedRoleUser != nil {
		assumed.AssumedRoleARN = aws.ToString(out.AssumedRoleUser.Arn)
	}

	c.logger.Info("Role assumed",
		zap.String("role_arn", spec.RoleARN),
		zap.String("account", assumed.Account),
		zap.Time("expires", assumed.Credentials.Expires))

	return assumed, nil
}

// Renewer returns a zero-argument renewal callback that re-assumes spec.
func (c *Chain) Renewer(spec RoleSpec) credentials.RenewFunc {
	return func(ctx context.Context) (credentials.Credentials, error) {
		assumed, err := c.AssumeRole(ctx, spec)
		if err != nil {
			return credentials.Credentials{}, err
		}
		return assumed.Credentials, nil
	}
}

func buildAssumeRoleInput(spec RoleSpec) (*sts.AssumeRoleInput, error) {
	sessionName := spec.SessionName
	if sessionName == "" {
		sessionName = DefaultSessionName
	}
	duration := spec.Duration
	if duration <= 0 {
		duration = DefaultSessionDuration
	}

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(spec.RoleARN),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(int32(duration / time.Second)),
	}
	if spec.ExternalID != "" {
		input.ExternalId = aws.String(spec.ExternalID)
	}
	if spec.MFASerial != "" {
		code, err := spec.TokenCode()
		if err != nil {
			return nil, fmt.Errorf("read mfa token code: %w", err)
		}
		input.SerialNumber = aws.String(spec.MFASerial)
		input.TokenCode = aws.String(code)
	}
	return input, nil
}
