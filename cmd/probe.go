package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/retropreserve/uff/a2img"
	"github.com/retropreserve/uff/atr"
	"github.com/retropreserve/uff/g64"
	"github.com/retropreserve/uff/uffcore"
	"github.com/retropreserve/uff/variant"
	"github.com/retropreserve/uff/woz"
)

var probeCmd = &cobra.Command{
	Use:   "probe <image>",
	Short: "Identify the variant of a disk image file",
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

		fmt.Printf("format:     %s\n", info.Format)
		if info.Variant != "" {
			fmt.Printf("variant:    %s\n", info.Variant)
		}
		fmt.Printf("confidence: %d%%\n", info.Confidence)
		if info.Tracks > 0 {
			fmt.Printf("tracks:     %d\n", info.Tracks)
		}
		for _, l := range info.Limitations {
			fmt.Printf("limitation: %s\n", l)
		}

		probeDetails(info, data)
	},
}

// probeDetails prints per-format extras the container codecs can pull out
// without a full decode.
func probeDetails(info variant.Info, data []byte) {
	switch info.Format {
	case variant.FormatWOZ:
		f, err := woz.Read(data)
		if err != nil {
			return
		}
		if !f.CRCOK {
			fmt.Println("warning:    chunk stream CRC mismatch")
		}
		if meta, err := f.ParseMeta(); err == nil {
			for k, v := range meta {
				fmt.Printf("meta:       %s = %s\n", k, v)
			}
		}
	case variant.FormatATR:
		f, err := atr.Read(data)
		if err != nil {
			return
		}
		fmt.Printf("sectors:    %d x %d bytes\n", f.SectorCount(), f.SectorSize)
	case variant.Format2IMG:
		f, err := a2img.Read(data)
		if err != nil {
			return
		}
		fmt.Printf("creator:    %s\n", string(f.Creator[:]))
		if len(f.Comment) > 0 {
			fmt.Printf("comment:    %s\n", f.Comment)
		}
	case variant.FormatG64:
		c, err := g64.ReadContainer(data)
		if err != nil {
			return
		}
		present := 0
		for _, raw := range c.RawTracks {
			if raw != nil {
				present++
			}
		}
		fmt.Printf("present:    %d track slots\n", present)
	}
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
