package commands

import (
	"github.com/spf13/cobra"
)

func newSearchCommand(a *app) *cobra.Command {
	var (
		flags     listFlags
		fields    []string
		minLength int
	)

	cmd := &cobra.Command{
		Use:   "search <collection> <term>",
		Short: "Search a collection across several fields",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := flags.config(a, args[0])
			if err != nil {
				return err
			}
			if cfg.SearchFields, err = parseSearchFields(fields); err != nil {
				return err
			}
			cfg.MinTermLength = minLength

			c, st, cleanup, err := a.container(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := c.NewList(st, cfg)
			if err != nil {
				return err
			}

			list.Search(ctx, args[1])

			s := list.State()
			if s.Err != nil {
				return s.Err
			}
			if err := writeRecords(cmd.OutOrStdout(), s.Records); err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), s)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringSliceVar(&fields, "field", []string{"name:prefix"}, "search field as field:strategy (exact, prefix, arrayContains)")
	cmd.Flags().IntVar(&minLength, "min-length", 2, "shortest term that runs a search")

	return cmd
}
