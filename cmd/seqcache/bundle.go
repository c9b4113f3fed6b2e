package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/lucasew/seqcache/internal/app"
	"github.com/lucasew/seqcache/internal/bundle"
	"github.com/lucasew/seqcache/internal/errutil"
	"github.com/lucasew/seqcache/internal/hashutil"
	"github.com/spf13/cobra"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle <sequence>",
	Short: "Packs a sequence into a bundle and prints its hash",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		output, err := cmd.Flags().GetString("output")
		exitOnError(err, "Failed to get output flag")
		author, err := cmd.Flags().GetString("author")
		exitOnError(err, "Failed to get author flag")
		register, err := cmd.Flags().GetBool("register")
		exitOnError(err, "Failed to get register flag")
		label, err := cmd.Flags().GetString("label")
		exitOnError(err, "Failed to get label flag")
		if output == "" {
			output = name + ".seqb"
		}
		if label == "" {
			label = name
		}

		settings, err := loadSettings()
		exitOnError(err, "Failed to load settings")

		file, err := os.Create(output)
		exitOnError(err, "Failed to create output file")
		defer errutil.Close(file, "Failed to close output file")

		frames, err := bundle.PackSequence(os.DirFS(settings.SequencesRoot), name, author, file)
		if err != nil {
			errutil.ReportError(err, "Failed to pack sequence", "sequence", name)
			errutil.LogMsg(os.Remove(output), "Failed to remove output file after failed pack", "path", output)
			os.Exit(1)
		}

		_, err = file.Seek(0, io.SeekStart)
		exitOnError(err, "Failed to rewind bundle")
		hash, size, err := hashutil.Sum(hashutil.DefaultAlgo, file)
		exitOnError(err, "Failed to hash bundle")
		slog.Info("Bundle written", "path", output, "frames", frames, "size", humanize.IBytes(uint64(size)))

		if register {
			store, err := app.OpenStore(storeConfig())
			exitOnError(err, "Failed to open store")
			defer errutil.Close(store, "Failed to close store")

			_, err = file.Seek(0, io.SeekStart)
			exitOnError(err, "Failed to rewind bundle")
			_, err = store.Register(cmd.Context(), label, frames, file)
			exitOnError(err, "Failed to register bundle", "label", label)
		}

		if _, err := fmt.Fprintf(os.Stdout, "%s:%s\n", hashutil.DefaultAlgo, hash); err != nil {
			errutil.LogMsg(err, "Failed to print hash")
		}
	},
}

func init() {
	rootCmd.AddCommand(bundleCmd)
	bundleCmd.Flags().StringP("output", "o", "", "Bundle file (default <sequence>.seqb)")
	bundleCmd.Flags().String("author", "", "Author recorded in the bundle header")
	bundleCmd.Flags().Bool("register", false, "Store the bundle and point a catalog label at it")
	bundleCmd.Flags().String("label", "", "Label to register (default the sequence name)")
}
