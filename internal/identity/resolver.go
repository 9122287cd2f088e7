// Package identity verifies who the audit runs as and chains role
// assumptions on top of that base identity.
package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"

	"github.com/chukul/cloudaudit/internal/auditerr"
)

// STSAPI is the subset of the STS client used here.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Identity is a verified caller identity.
type Identity struct {
	Account   string
	ARN       string
	UserID    string
	Partition string
}

// Resolver validates a session against the identity-verification endpoint.
type Resolver struct {
	client STSAPI
	logger *zap.Logger
}

// NewResolver creates a Resolver. A nil logger disables logging.
func NewResolver(client STSAPI, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{client: client, logger: logger}
}

// Validate calls GetCallerIdentity once. Any failure is an IdentityError and
// is not retried.
func (r *Resolver) Validate(ctx context.Context) (Identity, error) {
	out, err := r.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, auditerr.New(auditerr.KindIdentity, "sts:GetCallerIdentity", err)
	}

	id := Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}

	partition, err := PartitionOf(id.ARN)
	if err != nil {
		return Identity{}, auditerr.New(auditerr.KindIdentity, "sts:GetCallerIdentity", err)
	}
	id.Partition = partition

	r.logger.Info("Credentials validated",
		zap.String("user_id", id.UserID),
		zap.String("arn", id.ARN),
		zap.String("account", id.Account),
		zap.String("partition", id.Partition))

	return id, nil
}

// PartitionOf returns the partition segment of an ARN.
func PartitionOf(s string) (string, error) {
	parsed, err := arn.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid arn %q: %w", s, err)
	}
	return parsed.Partition, nil
}
