package cmd

import (
	"context"
	"log"

	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/spf13/cobra"
)

// listCmd builds a command printing what fetch returns from the d3 target.
func listCmd[T any](use, short string, fetch func(*d3.Client, context.Context) ([]T, error)) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Short:   short,
		Example: "d3rwc --host 192.168.10.11 " + use,
		Run: func(cmd *cobra.Command, args []string) {
			list, err := fetch(connectD3(), context.Background())
			if err != nil {
				log.Fatal(err)
			}
			if err := printJSON(list); err != nil {
				log.Fatal(err)
			}
		},
	}
}

func init() {
	rootCmd.AddCommand(
		listCmd("cdls", "List the colour decision lists", (*d3.Client).CDLs),
		listCmd("layers", "List the RenderStream layers", (*d3.Client).Layers),
		listCmd("systems", "List the detected d3 systems", (*d3.Client).DetectSystems),
		listCmd("projects", "List the projects of every machine", (*d3.Client).Projects),
		listCmd("transport", "List the active transports", (*d3.Client).ActiveTransports),
		listCmd("notifications", "List the machine notifications", (*d3.Client).Notifications),
	)
}
