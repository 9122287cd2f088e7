package cmd

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chukul/cloudaudit/internal/findings"
	"github.com/chukul/cloudaudit/internal/reconcile"
	"github.com/chukul/cloudaudit/internal/regions"
	"github.com/chukul/cloudaudit/internal/securityhub"
	"github.com/chukul/cloudaudit/internal/ui"
)

var (
	findingsFile    string
	outputDirectory string
	sendFindings    bool
	archiveFindings bool
)

var securityhubCmd = &cobra.Command{
	Use:   "securityhub",
	Short: "Send current findings to Security Hub and archive the ones no longer reported",
	Example: `  # Archive findings the latest run did not reproduce
  cloudaudit securityhub --output-directory ./output --archive

  # Send and archive in one go
  cloudaudit securityhub --findings-file run.asff.json --send --archive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !sendFindings && !archiveFindings {
			return fmt.Errorf("nothing to do: pass --send, --archive or both")
		}

		ctx := cmd.Context()
		actx, err := bootstrapContext(ctx)
		if err != nil {
			return err
		}

		path := findingsFile
		if path == "" {
			dir := cfg.OutputDirectory
			if cmd.Flags().Changed("output-directory") {
				dir = outputDirectory
			}
			path = findings.FileName(dir, actx.Account())
		}
		current, err := findings.ReadFile(path)
		if err != nil {
			return err
		}
		logger.Info("Loaded current findings", zap.String("path", path), zap.Int("count", len(current)))

		catalog, err := regions.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		clients, err := storeClients(catalog, actx, current)
		if err != nil {
			return err
		}

		store := securityhub.NewStore(clients,
			securityhub.WithIntegration(cfg.SecurityHub.Integration),
			securityhub.WithLogger(logger))
		engine := reconcile.New(store,
			reconcile.WithLogger(logger.With(zap.String("run_id", actx.RunID()))),
			reconcile.WithProductName(cfg.SecurityHub.ProductName),
			reconcile.WithBatchSize(cfg.SecurityHub.BatchSize),
			reconcile.WithConcurrency(cfg.SecurityHub.Concurrency))

		if sendFindings {
			sent, err := spin(cfg, "Sending findings to Security Hub...", func() (int, error) {
				return engine.Publish(ctx, current)
			})
			if err != nil {
				return err
			}
			fmt.Println(ui.Success(fmt.Sprintf("Sent %d of %d findings", sent, len(current))))
		}

		if archiveFindings {
			archived, err := spin(cfg, "Archiving stale findings...", func() ([]findings.Finding, error) {
				return engine.Reconcile(ctx, current, actx)
			})
			if err != nil {
				return err
			}
			fmt.Println(ui.Success(fmt.Sprintf("Archived %d findings", len(archived))))
			for _, f := range archived {
				fmt.Printf("  %s  %s\n", f.Region(), f.ID)
			}
		}
		return nil
	},
}

// storeClients covers the audited Security Hub regions plus every region the
// findings file reports.
func storeClients(catalog regions.Lookup, scope regions.Scope, current []findings.Finding) ([]regions.Regional[securityhub.API], error) {
	clients, err := regions.Clients(catalog, securityhub.Service, scope, securityhub.NewClient)
	if err != nil {
		return nil, err
	}

	var extra []string
	for _, r := range findings.Regions(current) {
		if !slices.ContainsFunc(clients, func(c regions.Regional[securityhub.API]) bool { return c.Region == r }) {
			extra = append(extra, r)
		}
	}
	clients = append(clients, regions.ClientsIn(scope.AuditSession(), extra, securityhub.NewClient)...)
	slices.SortFunc(clients, func(a, b regions.Regional[securityhub.API]) int { return cmp.Compare(a.Region, b.Region) })
	return clients, nil
}

func init() {
	securityhubCmd.Flags().StringVar(&findingsFile, "findings-file", "", "Current run's ASFF findings file (default <output-directory>/cloudaudit-output-<account>.asff.json)")
	securityhubCmd.Flags().StringVarP(&outputDirectory, "output-directory", "o", "output", "Directory holding the findings file")
	securityhubCmd.Flags().BoolVar(&sendFindings, "send", false, "Send current findings to Security Hub")
	securityhubCmd.Flags().BoolVar(&archiveFindings, "archive", false, "Archive Security Hub findings the current run did not reproduce")
	rootCmd.AddCommand(securityhubCmd)
}
