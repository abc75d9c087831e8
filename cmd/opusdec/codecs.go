package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thesyncim/opusdec/codecs"
)

var codecsCmd = &cobra.Command{
	Use:   "codecs",
	Short: "List the registered codecs",
	Long:  "List the codecs available in the registry with their RTP payload type IDs.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, d := range codecs.NewRegistry().Descriptors() {
			fmt.Fprintf(w, "%d\t%s\t%s\n", d.ID, d.Name, d.LongName)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(codecsCmd)
}
