package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-entitylist/invalidation"
)

func newInvalidateCommand(a *app) *cobra.Command {
	var (
		op string
		id string
	)

	cmd := &cobra.Command{
		Use:   "invalidate <collection>",
		Short: "Publish an invalidation event for a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			writer, err := a.openWriter(a.cfg)
			if err != nil {
				return err
			}
			pub := invalidation.NewPublisher(writer, a.logger)
			defer pub.Close()

			event := invalidation.NewEvent(args[0], invalidation.Op(op), id)
			if err := pub.Publish(cmd.Context(), event); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "published %s %s\n", event.Op, event.Collection)
			return err
		},
	}

	cmd.Flags().StringVar(&op, "op", string(invalidation.OpFlush), "change kind: create, update, delete or flush")
	cmd.Flags().StringVar(&id, "id", "", "changed record id")

	return cmd
}
