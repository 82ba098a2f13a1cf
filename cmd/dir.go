package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retropreserve/uff/commodore"
	"github.com/retropreserve/uff/diagnosis"
	"github.com/retropreserve/uff/uffcore"
	"github.com/retropreserve/uff/variant"
)

var dirCmd = &cobra.Command{
	Use:   "dir <image>",
	Short: "List the directory of a D64/D71/D81 or ADF image",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fatalf("reading %s: %w", args[0], err)
		}

		info, err := uffcore.Probe(data)
		if err != nil {
			fatalf("probe failed: %w", err)
		}

		switch info.Format {
		case variant.FormatD64:
			listCommodore(commodore.D64, data)
		case variant.FormatD71:
			listCommodore(commodore.D71, data)
		case variant.FormatD81:
			listCommodore(commodore.D81, data)
		case variant.FormatADF:
			listAmigaDOS(data)
		default:
			fatalf("no directory listing for %s images", info.Format)
		}
	},
}

func listCommodore(t commodore.Type, data []byte) {
	if _, err := uffcore.OpenCommodore(t, data); err != nil {
		fatalf("opening image: %w", err)
	}
	entries, err := commodore.WalkDirectory(t, data)
	if err != nil {
		fatalf("walking directory: %w", err)
	}
	for _, e := range entries {
		blocks := int(e.BlockCountLo) | int(e.BlockCountHi)<<8
		fmt.Printf("%-4d %q\n", blocks, petsciiName(e.Filename))
	}
	if bam, err := commodore.LoadBAM(t, data); err == nil {
		fmt.Printf("%d blocks free.\n", bam.TotalFree)
	}
}

func petsciiName(name [16]byte) string {
	s := strings.TrimRight(string(name[:]), "\xa0")
	return s
}

func listAmigaDOS(data []byte) {
	fs, err := uffcore.OpenAmigaDOS(data)
	if err != nil {
		fatalf("opening image: %w", err)
	}
	log := &diagnosis.Log{}
	root := uint32(len(data) / 512 / 2)
	for _, e := range fs.WalkDirectory(root, log) {
		fmt.Printf("%-6d %s\n", e.Block, e.Name)
	}
}

func init() {
	rootCmd.AddCommand(dirCmd)
}
