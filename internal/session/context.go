// Package session bootstraps the audit identity context used for the rest
// of an audit run.
package session

import (
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/chukul/cloudaudit/internal/credentials"
	"github.com/chukul/cloudaudit/internal/identity"
)

// AuditContext is the immutable identity context of one audit run. It is
// built once by the Bootstrapper and only read afterwards.
type AuditContext struct {
	runID         string
	account       string
	partition     string
	regions       []string
	caller        identity.Identity
	baseSession   aws.Config
	auditSession  aws.Config
	source        credentials.Source
	assumed       *identity.AssumedRole
	defaultRegion string
	organization  *identity.OrgMetadata
}

// RunID identifies this audit run in logs.
func (c *AuditContext) RunID() string { return c.runID }

// Account is the audited account id.
func (c *AuditContext) Account() string { return c.account }

// Partition is the audited partition.
func (c *AuditContext) Partition() string { return c.partition }

// Regions returns the requested region scope. Empty means all regions.
func (c *AuditContext) Regions() []string { return slices.Clone(c.regions) }

// Caller is the verified base identity.
func (c *AuditContext) Caller() identity.Identity { return c.caller }

// BaseSession is the session built from the profile or static credentials.
func (c *AuditContext) BaseSession() aws.Config { return c.baseSession.Copy() }

// AuditSession is the session used for API calls.
func (c *AuditContext) AuditSession() aws.Config { return c.auditSession.Copy() }

// Credentials is the credential source behind the audit session.
func (c *AuditContext) Credentials() credentials.Source { return c.source }

// AssumedRole reports the workload role assumption, if one was made.
func (c *AuditContext) AssumedRole() (identity.AssumedRole, bool) {
	if c.assumed == nil {
		return identity.AssumedRole{}, false
	}
	return *c.assumed, true
}

// DefaultRegion is the session's configured region or the fallback.
func (c *AuditContext) DefaultRegion() string { return c.defaultRegion }

// Organization returns the organization metadata, if it was fetched.
func (c *AuditContext) Organization() (identity.OrgMetadata, bool) {
	if c.organization == nil {
		return identity.OrgMetadata{}, false
	}
	return *c.organization, true
}
