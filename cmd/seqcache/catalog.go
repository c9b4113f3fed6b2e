package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/lucasew/seqcache/internal/app"
	"github.com/lucasew/seqcache/internal/errutil"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspects the label catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists registered labels",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store, err := app.OpenStore(storeConfig())
		exitOnError(err, "Failed to open store")
		defer errutil.Close(store, "Failed to close store")

		entries, err := store.Catalog.List(cmd.Context())
		exitOnError(err, "Failed to list labels")

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LABEL\tFRAMES\tHASH\tCREATED")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%d\t%s:%s\t%s\n", e.Label, e.Frames, e.Algo, e.Hash, humanize.Time(e.CreatedAt))
		}
		errutil.LogMsg(tw.Flush(), "Failed to write table")
	},
}

var catalogRmCmd = &cobra.Command{
	Use:   "rm <label>...",
	Short: "Removes labels",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		prune, err := cmd.Flags().GetBool("prune")
		exitOnError(err, "Failed to get prune flag")

		store, err := app.OpenStore(storeConfig())
		exitOnError(err, "Failed to open store")
		defer errutil.Close(store, "Failed to close store")

		failed := false
		for _, label := range args {
			found, err := store.Remove(cmd.Context(), label, prune)
			if err != nil {
				errutil.ReportError(err, "Failed to remove label", "label", label)
				failed = true
				continue
			}
			if !found {
				errutil.LogMsg(fmt.Errorf("no such label"), "Label not found", "label", label)
			}
		}
		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogRmCmd)
	catalogRmCmd.Flags().Bool("prune", false, "Also delete bundles no other label points at")
}
