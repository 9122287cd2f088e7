// Package credentials holds in-memory credential material for an audit run
// and renews temporary credentials before they expire.
package credentials

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ProviderName is reported as the aws.Credentials source.
const ProviderName = "CloudAuditCredentialSource"

// Credentials is a set of access keys, optionally temporary.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// CanExpire is true for temporary credentials; Expires is then set.
	CanExpire bool
	Expires   time.Time
}

// Expired reports whether the credentials are expired at now, or will expire
// within window.
func (c Credentials) Expired(now time.Time, window time.Duration) bool {
	if !c.CanExpire {
		return false
	}
	return !now.Add(window).Before(c.Expires)
}

// AWS converts the credentials into the SDK representation.
func (c Credentials) AWS() aws.Credentials {
	return aws.Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		Source:          ProviderName,
		CanExpire:       c.CanExpire,
		Expires:         c.Expires,
	}
}

// FromAWS converts SDK credentials.
func FromAWS(c aws.Credentials) Credentials {
	return Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		CanExpire:       c.CanExpire,
		Expires:         c.Expires,
	}
}

// Source hands out credentials that are valid at the time of the call.
type Source interface {
	Current(ctx context.Context) (Credentials, error)
}

// AWSProvider adapts a Source to an aws.CredentialsProvider so SDK clients
// sign every request with the source's current material.
func AWSProvider(src Source) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		c, err := src.Current(ctx)
		if err != nil {
			return aws.Credentials{}, err
		}
		return c.AWS(), nil
	})
}

// ProviderSource adapts an aws.CredentialsProvider to a Source.
func ProviderSource(p aws.CredentialsProvider) Source {
	return providerSource{p: p}
}

type providerSource struct {
	p aws.CredentialsProvider
}

func (s providerSource) Current(ctx context.Context) (Credentials, error) {
	c, err := s.p.Retrieve(ctx)
	if err != nil {
		return Credentials{}, err
	}
	return FromAWS(c), nil
}
