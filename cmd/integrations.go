// File: cmd/integrations.go
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SerupAI/mobiledroid/internal/integration"
	"github.com/SerupAI/mobiledroid/internal/observability"
)

// newIntegrationsCmd creates the `integrations` command group.
func newIntegrationsCmd() *cobra.Command {
	integrationsCmd := &cobra.Command{
		Use:   "integrations",
		Short: "Inspect the configured LLM integrations",
	}
	integrationsCmd.AddCommand(newIntegrationsListCmd())
	return integrationsCmd
}

func newIntegrationsListCmd() *cobra.Command {
	var purpose string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists integrations, ranked the way the resolver sees them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			store, closeStore, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			var list []integration.Integration
			if purpose != "" {
				list, err = store.ListActiveByPurpose(ctx, purpose)
			} else {
				list, err = store.ListActiveDefaults(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to list integrations: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPURPOSE\tPROVIDER\tMODEL\tPRIORITY\tDEFAULT\tCREDENTIAL")
			for _, in := range list {
				credential := "missing"
				if in.APIKey != "" {
					credential = "set"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\t%s\n",
					in.Name, in.Purpose, in.Provider, in.Model, in.Priority, in.IsDefault, credential)
			}
			return w.Flush()
		},
	}

	listCmd.Flags().StringVar(&purpose, "purpose", "", "list integrations for one purpose (default: active defaults)")
	return listCmd
}
