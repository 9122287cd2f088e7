package cmd

import (
	"context"

	"github.com/chukul/cloudaudit/internal/config"
	"github.com/chukul/cloudaudit/internal/credentials"
	"github.com/chukul/cloudaudit/internal/identity"
	"github.com/chukul/cloudaudit/internal/session"
	"github.com/chukul/cloudaudit/internal/ui"
)

// sessionOptions maps the loaded config onto bootstrap inputs.
func sessionOptions(c *config.Config) session.Options {
	opts := session.Options{
		Profile:              c.Profile,
		Regions:              c.Regions,
		DefaultRegion:        c.DefaultRegion,
		RoleARN:              c.RoleARN,
		OrganizationsRoleARN: c.OrganizationsRoleARN,
		ExternalID:           c.ExternalID,
		SessionName:          c.SessionName,
		SessionDuration:      c.SessionDuration,
		MFASerial:            c.MFASerial,
		ExpiryWindow:         c.Credentials.ExpiryWindow,
	}
	if c.AccessKeyID != "" {
		opts.StaticCredentials = &credentials.Credentials{
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			SessionToken:    c.SessionToken,
		}
	}
	if c.MFASerial != "" {
		opts.TokenCode = identity.TokenCodeFunc(ui.PromptMFA(c.MFASerial))
	}
	return opts
}

// bootstrapContext builds the audit identity context from the loaded config.
func bootstrapContext(ctx context.Context) (*session.AuditContext, error) {
	b := session.New(session.WithLogger(logger))
	opts := sessionOptions(cfg)
	return spin(cfg, "Establishing audit session...", func() (*session.AuditContext, error) {
		return b.Bootstrap(ctx, opts)
	})
}

// spinnerAllowed reports whether task output may sit behind a spinner. Any
// role assumption can prompt for an MFA code, which needs the terminal.
func spinnerAllowed(c *config.Config) bool {
	return c.MFASerial == ""
}

func spin[T any](c *config.Config, text string, task func() (T, error)) (T, error) {
	if !spinnerAllowed(c) {
		return task()
	}
	return ui.Spin(text, task)
}
