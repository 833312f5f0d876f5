package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newSourcesCmd creates the 'sources' subcommand, which lists the shops in
// the loaded configuration.
func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured shops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFORMAT\tMETHOD\tLOGIN\tSEARCH")
			for _, s := range e.cfg.Sources {
				login := "no"
				if s.Login != nil {
					login = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s://%s%s\n", s.Name, s.Format, s.Method, login, s.Scheme, s.Netloc, s.SearchPath)
			}
			return w.Flush()
		},
	}
}
