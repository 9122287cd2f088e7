package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chukul/cloudaudit/internal/regions"
	"github.com/chukul/cloudaudit/internal/ui"
)

var regionsOffline bool

var regionsCmd = &cobra.Command{
	Use:   "regions <service>",
	Short: "List the regions a service would be audited in",
	Example: `  cloudaudit regions securityhub --region eu-west-1,us-east-1
  cloudaudit regions guardduty --offline`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := regions.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}

		partition := "aws"
		if !regionsOffline {
			actx, err := bootstrapContext(cmd.Context())
			if err != nil {
				return err
			}
			partition = actx.Partition()
		}

		list, err := regions.Resolve(catalog, args[0], partition, cfg.Regions)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println(ui.Warn(fmt.Sprintf("No regions to audit for %s in %s", args[0], partition)))
			return nil
		}

		fmt.Println(ui.Title(fmt.Sprintf("%s (%s)", args[0], partition)))
		for _, r := range list {
			fmt.Println("  " + r)
		}
		return nil
	},
}

func init() {
	regionsCmd.Flags().BoolVar(&regionsOffline, "offline", false, "Skip the session and assume the aws partition")
	rootCmd.AddCommand(regionsCmd)
}
