package main

import (
	"fmt"
	"os"
	"sort"

	"coachhub/internal/repositories"

	"github.com/spf13/cobra"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect badge catalog files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a YAML badge catalog without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer f.Close()

			badges, err := repositories.LoadBadgeCatalog(f)
			if err != nil {
				return err
			}

			if a.output == "json" {
				return a.printJSON(cmd.OutOrStdout(), badges)
			}

			bySport := make(map[string]int)
			active, rules, required := 0, 0, 0
			for _, b := range badges {
				bySport[b.Sport]++
				if b.IsActive {
					active++
				}
				rules += len(b.Rules)
				required += b.RequiredRuleCount()
			}
			sports := make([]string, 0, len(bySport))
			for s := range bySport {
				sports = append(sports, s)
			}
			sort.Strings(sports)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d badge(s), %d active, %d rule(s), %d required\n",
				args[0], len(badges), active, rules, required)
			for _, s := range sports {
				fmt.Fprintf(out, "  %-12s %d\n", s, bySport[s])
			}
			return nil
		},
	})

	return cmd
}
