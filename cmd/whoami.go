package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chukul/cloudaudit/internal/ui"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the identity an audit would run as",
	Example: `  # Base profile only
  cloudaudit whoami --profile audit

  # Through a workload role with an external id
  cloudaudit whoami --profile audit --role arn:aws:iam::222222222222:role/Audit --external-id ext-123`,
	RunE: func(cmd *cobra.Command, args []string) error {
		actx, err := bootstrapContext(cmd.Context())
		if err != nil {
			return err
		}

		caller := actx.Caller()
		scope := "all"
		if r := actx.Regions(); len(r) > 0 {
			scope = strings.Join(r, ", ")
		}

		fmt.Println(ui.Title("Audit identity"))
		fmt.Println(ui.Field("Caller", caller.ARN))
		fmt.Println(ui.Field("Caller account", caller.Account))
		fmt.Println(ui.Field("Audited account", actx.Account()))
		fmt.Println(ui.Field("Partition", actx.Partition()))
		fmt.Println(ui.Field("Default region", actx.DefaultRegion()))
		fmt.Println(ui.Field("Region scope", scope))
		fmt.Println(ui.Field("Run ID", actx.RunID()))

		if assumed, ok := actx.AssumedRole(); ok {
			fmt.Println()
			fmt.Println(ui.Title("Assumed role"))
			fmt.Println(ui.Field("Role session", assumed.AssumedRoleARN))
			if assumed.Credentials.CanExpire {
				exp := assumed.Credentials.Expires
				fmt.Println(ui.Field("Expires", fmt.Sprintf("%s (%s remaining)", ui.FormatLocal(exp), ui.Remaining(exp, time.Now()))))
			}
		}

		if md, ok := actx.Organization(); ok {
			fmt.Println()
			fmt.Println(ui.Title("Organization"))
			fmt.Println(ui.Field("Org ID", md.OrgID))
			fmt.Println(ui.Field("Account name", md.Name))
			fmt.Println(ui.Field("Account email", md.Email))
			fmt.Println(ui.Field("Account ARN", md.ARN))
			if md.Tags != "" {
				fmt.Println(ui.Field("Tags", md.Tags))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
