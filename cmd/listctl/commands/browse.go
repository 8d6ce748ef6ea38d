package commands

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-entitylist/entitylist"
)

type listFlags struct {
	filters []string
	sort    string
	desc    bool
	fields  []string
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, `filter expression, e.g. "status=active" or "age>=21"`)
	cmd.Flags().StringVarP(&f.sort, "sort", "s", "", "sort field")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	cmd.Flags().StringSliceVar(&f.fields, "select", nil, "fields to keep, id is always kept")
}

func (f *listFlags) config(a *app, collection string) (entitylist.Config, error) {
	filters, err := parseFilters(f.filters)
	if err != nil {
		return entitylist.Config{}, err
	}
	cfg := entitylist.DefaultConfig(collection)
	cfg.PageSize = a.cfg.PageSize
	cfg.Filters = filters
	cfg.Sort = parseSort(f.sort, f.desc)
	cfg.SelectedFields = f.fields
	return cfg, nil
}

func newBrowseCommand(a *app) *cobra.Command {
	var (
		flags listFlags
		pages int
	)

	cmd := &cobra.Command{
		Use:   "browse <collection>",
		Short: "Print pages of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := flags.config(a, args[0])
			if err != nil {
				return err
			}

			c, st, cleanup, err := a.container(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := c.NewList(st, cfg)
			if err != nil {
				return err
			}

			list.Load(ctx, true)
			for i := 1; i < pages && list.State().HasMore; i++ {
				list.LoadMore(ctx)
			}

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
	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "number of pages to load")

	return cmd
}
