package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/retropreserve/uff/uffcore"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <image.uff>",
	Short: "Verify a UFF container's per-track CRC32 checksums",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.Open(args[0])
		if err != nil {
			fatalf("opening %s: %w", args[0], err)
		}
		defer f.Close()

		stat, err := f.Stat()
		if err != nil {
			fatalf("stat %s: %w", args[0], err)
		}

		container, err := uffcore.OpenUFF(f, stat.Size())
		if err != nil {
			fatalf("opening container: %w", err)
		}

		report, err := uffcore.VerifyUFF(container, nil)
		if err != nil {
			fatalf("verify failed: %w", err)
		}

		fmt.Printf("valid tracks:   %d\n", report.ValidTracks)
		fmt.Printf("damaged tracks: %d\n", report.DamagedTracks)
		fmt.Printf("empty tracks:   %d\n", report.EmptyTracks)
		for _, m := range report.Mismatches {
			fmt.Printf("  mismatch: cyl=%d head=%d want=%#08x got=%#08x\n", m.Cylinder, m.Head, m.Want, m.Got)
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
