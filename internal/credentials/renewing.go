package credentials

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chukul/cloudaudit/internal/auditerr"
)

// DefaultExpiryWindow is how long before expiration credentials are renewed.
const DefaultExpiryWindow = time.Minute

// RenewFunc obtains a fresh set of credentials. It takes no arguments beyond
// the context; whatever it needs to renew is captured by the closure.
type RenewFunc func(ctx context.Context) (Credentials, error)

// Renewing is a Source that renews its credentials through a RenewFunc before
// handing out expired material. At most one renewal runs at a time, and
// callers observe either the old or the new set, never a mix.
type Renewing struct {
	mu     sync.Mutex
	creds  Credentials
	renew  RenewFunc
	window time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// RenewingOption configures a Renewing source.
type RenewingOption func(*Renewing)

// WithExpiryWindow sets how early before expiration renewal happens.
func WithExpiryWindow(d time.Duration) RenewingOption {
	return func(r *Renewing) {
		if d >= 0 {
			r.window = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RenewingOption {
	return func(r *Renewing) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RenewingOption {
	return func(r *Renewing) {
		r.logger = l
	}
}

// NewRenewing creates a Source seeded with initial credentials.
func NewRenewing(initial Credentials, renew RenewFunc, opts ...RenewingOption) *Renewing {
	r := &Renewing{
		creds:  initial,
		renew:  renew,
		window: DefaultExpiryWindow,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Current returns valid credentials, renewing them synchronously first when
// they are expired or about to expire. A failed renewal is returned as an
// ExpiredCredentialsError.
func (r *Renewing) Current(ctx context.Context) (Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.creds.Expired(r.now(), r.window) {
		return r.creds, nil
	}

	r.logger.Info("Renewing temporary credentials", zap.Time("expires", r.creds.Expires))

	if r.renew == nil {
		return Credentials{}, auditerr.Newf(auditerr.KindExpiredCredentials, "renew credentials", "credentials expired at %s and cannot be renewed", r.creds.Expires.Format(time.RFC3339))
	}

	fresh, err := r.renew(ctx)
	if err != nil {
		r.logger.Error("Credential renewal failed", auditerr.Fields(err)...)
		return Credentials{}, auditerr.New(auditerr.KindExpiredCredentials, "renew credentials", err)
	}
	if fresh.Expired(r.now(), 0) {
		return Credentials{}, auditerr.Newf(auditerr.KindExpiredCredentials, "renew credentials", "renewed credentials already expired at %s", fresh.Expires.Format(time.RFC3339))
	}

	r.creds = fresh
	r.logger.Info("Temporary credentials renewed", zap.Time("expires", fresh.Expires))
	return fresh, nil
}
