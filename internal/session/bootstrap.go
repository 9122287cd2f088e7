package session

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chukul/cloudaudit/internal/auditerr"
	"github.com/chukul/cloudaudit/internal/credentials"
	"github.com/chukul/cloudaudit/internal/identity"
)

// FallbackRegion is used when the session has no configured region.
const FallbackRegion = "us-east-1"

// State is a bootstrap stage.
type State int

const (
	StateInit State = iota
	StateBaseValidated
	StateOrgResolved
	StateRoleAssumed
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateBaseValidated:
		return "BASE_VALIDATED"
	case StateOrgResolved:
		return "ORG_RESOLVED"
	case StateRoleAssumed:
		return "ROLE_ASSUMED"
	case StateReady:
		return "READY"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options are the run inputs for Bootstrap.
type Options struct {
	// Profile is the shared config profile for the base session.
	Profile string

	// StaticCredentials, when set, take precedence over the profile's.
	StaticCredentials *credentials.Credentials

	Regions       []string
	DefaultRegion string

	RoleARN              string
	OrganizationsRoleARN string
	ExternalID           string
	SessionName          string
	SessionDuration      time.Duration

	MFASerial string
	TokenCode identity.TokenCodeFunc

	// ExpiryWindow is how early the workload credentials renew.
	ExpiryWindow time.Duration
}

// ConfigLoader builds an aws.Config; config.LoadDefaultConfig satisfies it.
type ConfigLoader func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error)

// Bootstrapper drives INIT → BASE_VALIDATED → [ORG_RESOLVED] → [ROLE_ASSUMED] → READY.
type Bootstrapper struct {
	loadConfig       ConfigLoader
	newSTS           func(aws.Config) identity.STSAPI
	newOrganizations func(aws.Config) identity.OrganizationsAPI
	onTransition     func(from, to State)
	logger           *zap.Logger
}

// Option configures a Bootstrapper.
type Option func(*Bootstrapper)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bootstrapper) { b.logger = l }
}

// WithConfigLoader overrides how the base session is loaded.
func WithConfigLoader(f ConfigLoader) Option {
	return func(b *Bootstrapper) { b.loadConfig = f }
}

// WithSTSFactory overrides STS client construction.
func WithSTSFactory(f func(aws.Config) identity.STSAPI) Option {
	return func(b *Bootstrapper) { b.newSTS = f }
}

// WithOrganizationsFactory overrides Organizations client construction.
func WithOrganizationsFactory(f func(aws.Config) identity.OrganizationsAPI) Option {
	return func(b *Bootstrapper) { b.newOrganizations = f }
}

// WithTransitionHook is called on every state change.
func WithTransitionHook(f func(from, to State)) Option {
	return func(b *Bootstrapper) { b.onTransition = f }
}

// New creates a Bootstrapper backed by the AWS SDK.
func New(opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		loadConfig: config.LoadDefaultConfig,
		newSTS: func(cfg aws.Config) identity.STSAPI {
			return sts.NewFromConfig(cfg)
		},
		newOrganizations: func(cfg aws.Config) identity.OrganizationsAPI {
			return organizations.NewFromConfig(cfg)
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bootstrap builds the AuditContext. Any error is fatal to the run; there is
// no retry and no degraded mode.
func (b *Bootstrapper) Bootstrap(ctx context.Context, o Options) (*AuditContext, error) {
	state := StateInit
	advance := func(to State) {
		b.logger.Debug("Session state transition", zap.Stringer("from", state), zap.Stringer("to", to))
		if b.onTransition != nil {
			b.onTransition(state, to)
		}
		state = to
	}

	b.logger.Info("Generating original session", zap.String("profile", o.Profile))
	base, err := b.loadBaseSession(ctx, o)
	if err != nil {
		return nil, err
	}

	b.logger.Info("Validating credentials")
	caller, err := identity.NewResolver(b.newSTS(base), b.logger).Validate(ctx)
	if err != nil {
		return nil, err
	}

	actx := &AuditContext{
		runID:         uuid.NewString(),
		account:       caller.Account,
		partition:     caller.Partition,
		regions:       slices.Clone(o.Regions),
		caller:        caller,
		baseSession:   base,
		auditSession:  base,
		source:        credentials.ProviderSource(base.Credentials),
		defaultRegion: base.Region,
	}
	advance(StateBaseValidated)

	chain := identity.NewChain(b.newSTS(base), b.logger)

	if o.OrganizationsRoleARN != "" {
		b.logger.Info("Getting organizations metadata", zap.String("role_arn", o.OrganizationsRoleARN))
		md, err := b.resolveOrganization(ctx, chain, base, o, caller.Account)
		if err != nil {
			return nil, err
		}
		actx.organization = md
		advance(StateOrgResolved)
	}

	if o.RoleARN != "" {
		spec := identity.RoleSpec{
			RoleARN:     o.RoleARN,
			SessionName: o.SessionName,
			Duration:    o.SessionDuration,
			ExternalID:  o.ExternalID,
			MFASerial:   o.MFASerial,
			TokenCode:   o.TokenCode,
		}
		assumed, err := chain.AssumeRole(ctx, spec)
		if err != nil {
			return nil, err
		}

		window := o.ExpiryWindow
		if window <= 0 {
			window = credentials.DefaultExpiryWindow
		}
		source := credentials.NewRenewing(assumed.Credentials, chain.Renewer(spec),
			credentials.WithExpiryWindow(window),
			credentials.WithLogger(b.logger.With(zap.String("role_arn", o.RoleARN))))

		// SDK clients wrap uncached providers in a cache that only refreshes at
		// expiry; supply one that refreshes on the same window as the source.
		audit := base.Copy()
		audit.Credentials = aws.NewCredentialsCache(credentials.AWSProvider(source), func(co *aws.CredentialsCacheOptions) {
			co.ExpiryWindow = window
		})

		actx.auditSession = audit
		actx.source = source
		actx.assumed = &assumed
		actx.account = assumed.Account
		actx.partition = assumed.Partition
		advance(StateRoleAssumed)
		b.logger.Info("Audit session is the new session created assuming role")
	} else {
		b.logger.Info("Audit session is the original one")
	}

	advance(StateReady)
	b.logger.Info("Audit identity context ready",
		zap.String("run_id", actx.runID),
		zap.String("account", actx.account),
		zap.String("partition", actx.partition),
		zap.String("default_region", actx.defaultRegion),
		zap.Strings("regions", actx.regions))

	return actx, nil
}

func (b *Bootstrapper) loadBaseSession(ctx context.Context, o Options) (aws.Config, error) {
	var optFns []func(*config.LoadOptions) error
	if o.Profile != "" {
		optFns = append(optFns, config.WithSharedConfigProfile(o.Profile))
	}
	if o.StaticCredentials != nil {
		c := o.StaticCredentials
		optFns = append(optFns, config.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken)))
	}

	cfg, err := b.loadConfig(ctx, optFns...)
	if err != nil {
		return aws.Config{}, auditerr.New(auditerr.KindIdentity, "load base session", err)
	}
	if cfg.Credentials == nil {
		return aws.Config{}, auditerr.Newf(auditerr.KindIdentity, "load base session", "no credentials found for profile %q", o.Profile)
	}

	if cfg.Region == "" {
		cfg.Region = o.DefaultRegion
		if cfg.Region == "" {
			cfg.Region = FallbackRegion
		}
	}
	return cfg, nil
}

// resolveOrganization runs the organization link. Its credentials are used
// for the two metadata calls and then dropped.
func (b *Bootstrapper) resolveOrganization(ctx context.Context, chain *identity.Chain, base aws.Config, o Options, account string) (*identity.OrgMetadata, error) {
	assumed, err := chain.AssumeRole(ctx, identity.RoleSpec{
		RoleARN:     o.OrganizationsRoleARN,
		SessionName: o.SessionName,
		Duration:    o.SessionDuration,
		MFASerial:   o.MFASerial,
		TokenCode:   o.TokenCode,
	})
	if err != nil {
		return nil, err
	}

	orgCfg := base.Copy()
	orgCfg.Credentials = awscreds.NewStaticCredentialsProvider(
		assumed.Credentials.AccessKeyID,
		assumed.Credentials.SecretAccessKey,
		assumed.Credentials.SessionToken)

	md, err := identity.FetchOrgMetadata(ctx, b.newOrganizations(orgCfg), account)
	if err != nil {
		return nil, err
	}
	b.logger.Info("Organizations metadata retrieved", zap.String("org_id", md.OrgID), zap.String("account_name", md.Name))
	return md, nil
}
