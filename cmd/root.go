package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chukul/cloudaudit/internal/auditerr"
	"github.com/chukul/cloudaudit/internal/config"
	"github.com/chukul/cloudaudit/internal/logging"
	"github.com/chukul/cloudaudit/internal/ui"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	profile           string
	roleARN           string
	externalID        string
	orgRoleARN        string
	mfaSerial         string
	sessionDuration   time.Duration
	auditRegions      []string
	defaultRegionFlag string

	cfg    *config.Config
	logger = zap.NewNop()
)

func printLogo() {
	ascii := []string{
		`        _                 _                 _ _ _   `,
		`    ___| | ___  _   _  __| | __ _ _   _  __| (_) |_ `,
		`   / __| |/ _ \| | | |/ _' |/ _' | | | |/ _' | | __|`,
		`  | (__| | (_) | |_| | (_| | (_| | |_| | (_| | | |_ `,
		`   \___|_|\___/ \__,_|\__,_|\__,_|\__,_|\__,_|_|\__|`,
	}

	fmt.Println()
	for _, line := range ascii {
		for i, char := range line {
			ratio := float64(i) / float64(len(line))

			// Teal to blue
			r := int(0*(1-ratio) + 90*ratio)
			g := int(210*(1-ratio) + 90*ratio)
			b := int(170*(1-ratio) + 255*ratio)

			fmt.Printf("\x1b[38;2;%d;%d;%dm%c\x1b[0m", r, g, b, char)
		}
		fmt.Println()
	}
	fmt.Println("\x1b[1m  Audit identity sessions and Security Hub finding reconciliation for AWS\x1b[0m")
	fmt.Println()
}

var rootCmd = &cobra.Command{
	Use:   "cloudaudit",
	Short: "cloudaudit establishes an audit identity and keeps Security Hub findings current",
	Long: `CloudAudit resolves the identity an AWS audit runs under, optionally through an
organizations role and a workload role, renews temporary credentials while the
audit runs, and archives Security Hub findings the latest run no longer reports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		l, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return auditerr.New(auditerr.KindConfig, "build logger", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// applyFlags lets explicitly set flags win over file and environment values.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		c.Logging.Format = logFormat
	}
	if flags.Changed("profile") {
		c.Profile = profile
	}
	if flags.Changed("role") {
		c.RoleARN = roleARN
	}
	if flags.Changed("external-id") {
		c.ExternalID = externalID
	}
	if flags.Changed("organizations-role") {
		c.OrganizationsRoleARN = orgRoleARN
	}
	if flags.Changed("mfa") {
		c.MFASerial = mfaSerial
	}
	if flags.Changed("duration") {
		c.SessionDuration = sessionDuration
	}
	if flags.Changed("region") {
		c.Regions = auditRegions
	}
	if flags.Changed("default-region") {
		c.DefaultRegion = defaultRegionFlag
	}
}

// Execute runs the CLI
func Execute() {
	if len(os.Args) <= 1 || (len(os.Args) > 1 && os.Args[1] == "help") {
		printLogo()
	}
	if err := rootCmd.Execute(); err != nil {
		fail(err)
	}
}

// fail logs err once with its kind and exits.
func fail(err error) {
	logFailure(logger, err)
	fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
	os.Exit(1)
}

// logFailure logs fatal kinds at error level and recoverable ones at warn.
func logFailure(l *zap.Logger, err error) {
	if auditerr.IsFatal(err) {
		l.Error("Audit run failed", auditerr.Fields(err)...)
		return
	}
	l.Warn("Audit run stopped on a recoverable error", auditerr.Fields(err)...)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", os.Getenv("CLOUDAUDIT_CONFIG"), "Path to a TOML config file (or set CLOUDAUDIT_CONFIG)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "console", "Log format: console or json")
	pf.StringVarP(&profile, "profile", "p", "", "AWS CLI profile for the base session")
	pf.StringVarP(&roleARN, "role", "R", "", "Workload role ARN to assume for the audit")
	pf.StringVarP(&externalID, "external-id", "I", "", "External ID for the workload role")
	pf.StringVarP(&orgRoleARN, "organizations-role", "O", "", "Role ARN used to read AWS Organizations metadata")
	pf.StringVar(&mfaSerial, "mfa", "", "MFA device ARN; prompts for a code on every role assumption")
	pf.DurationVarP(&sessionDuration, "duration", "T", time.Hour, "Assumed role session duration (15m to 12h)")
	pf.StringSliceVarP(&auditRegions, "region", "f", nil, "Regions to audit (repeat or comma-separate); all when empty")
	pf.StringVar(&defaultRegionFlag, "default-region", "", "Region used when the profile has none")
}
