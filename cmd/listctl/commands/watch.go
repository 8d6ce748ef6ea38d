package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-entitylist/entitylist"
)

func newWatchCommand(a *app) *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "watch <collection>",
		Short: "Print the first page of a collection again after every invalidation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := flags.config(a, args[0])
			if err != nil {
				return err
			}

			reader, err := a.openReader(a.cfg)
			if err != nil {
				return err
			}

			c, st, cleanup, err := a.container(ctx)
			if err != nil {
				_ = reader.Close()
				return err
			}
			defer cleanup()

			list, err := c.NewList(st, cfg)
			if err != nil {
				_ = reader.Close()
				return err
			}

			out := cmd.OutOrStdout()
			cancel := list.Subscribe(func(s entitylist.State) {
				if s.Loading || s.Err != nil {
					return
				}
				if err := writeRecords(out, s.Records); err != nil {
					a.logger.Warn("write records", zap.Error(err))
				}
				_ = writeSummary(out, s)
			})
			defer cancel()

			list.Load(ctx, true)

			sub := c.NewSubscriber(reader)
			defer sub.Close()
			return sub.Run(ctx)
		},
	}

	flags.register(cmd)

	return cmd
}
