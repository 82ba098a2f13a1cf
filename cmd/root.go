// Package cmd wires the uffcore façade to a thin cobra CLI: probe, fuse,
// verify, export. Argument parsing only — every operation's logic lives in
// uffcore, never here.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "uff",
	Short: "Universal Flux Format preservation toolkit",
	Long: `uff reads, verifies, and converts vintage floppy disk preservation images:
D64/D71/D81, G64, ADF, WOZ, 2IMG, ATR, DFS/ADFS, DMK, HFE, SCP, IPF, PC IMG.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func fatalf(format string, args ...any) {
	cobra.CheckErr(fmt.Errorf(format, args...))
}
