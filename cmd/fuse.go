package cmd

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/retropreserve/uff/config"
	"github.com/retropreserve/uff/flux"
	"github.com/retropreserve/uff/uffcore"
)

var fuseProfilePath string

var fuseCmd = &cobra.Command{
	Use:   "fuse <revolution-file>...",
	Short: "Fuse one or more raw flux-sample captures of a single track",
	Long: `Each revolution file holds a flat stream of little-endian u32 flux-tick
samples for one rotation of the same physical track. fuse merges them with
the confidence-weighted averaging kernel and reports the fused track's
weak regions and splice points.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		profile, err := config.Load(fuseProfilePath)
		if err != nil {
			fatalf("loading profile: %w", err)
		}

		revs := make([]flux.Revolution, 0, len(args))
		for _, path := range args {
			rev, err := readRevolution(path)
			if err != nil {
				fatalf("reading %s: %w", path, err)
			}
			revs = append(revs, rev)
		}

		track, err := uffcore.FuseTrack(revs, profile)
		if err != nil {
			fatalf("fuse failed: %w", err)
		}

		fmt.Printf("fused samples:  %d\n", len(track.FusedFlux))
		fmt.Printf("weak regions:   %d\n", len(track.WeakRegions))
		fmt.Printf("splice points:  %d\n", len(track.SplicePoints))
	},
}

func readRevolution(path string) (flux.Revolution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return flux.Revolution{}, err
	}
	if len(data)%4 != 0 {
		return flux.Revolution{}, fmt.Errorf("revolution file length %d is not a multiple of 4", len(data))
	}

	samples := make([]flux.Sample, len(data)/4)
	for i := range samples {
		samples[i] = flux.Sample(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return flux.Revolution{Samples: samples, Confidence: 90}, nil
}

func init() {
	fuseCmd.Flags().StringVar(&fuseProfilePath, "profile", "", "path to a preservation profile TOML file")
	rootCmd.AddCommand(fuseCmd)
}
