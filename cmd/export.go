package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/retropreserve/uff/diagnosis"
	"github.com/retropreserve/uff/g64"
	"github.com/retropreserve/uff/uffcore"
)

var exportCmd = &cobra.Command{
	Use:   "export <image.g64> <out.d64>",
	Short: "Decode a raw GCR track stream and export it as a D64 image",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			fatalf("reading %s: %w", args[0], err)
		}

		log := &diagnosis.Log{}
		var img *g64.Image
		if c, cerr := g64.ReadContainer(raw); cerr == nil {
			img = c.Decode(log)
		} else {
			// Not a G64 container: treat the input as a raw GCR dump of
			// fixed-size track chunks.
			img = &g64.Image{}
			const trackSize = 7928
			for t := 1; t*trackSize <= len(raw) && t <= 35; t++ {
				chunk := raw[(t-1)*trackSize : t*trackSize]
				img.Tracks = append(img.Tracks, g64.ParseTrack(chunk, t, false, log))
			}
		}

		out, err := uffcore.ExportD64(img)
		if err != nil {
			fatalf("export failed: %w", err)
		}

		if err := os.WriteFile(args[1], out, 0o644); err != nil {
			fatalf("writing %s: %w", args[1], err)
		}

		for _, d := range log.Entries {
			fmt.Fprintln(os.Stderr, d.String())
		}
		fmt.Printf("wrote %d bytes to %s\n", len(out), args[1])
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
