package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cwbudde/circlemosaic/internal/imaging"
)

var resizeCmd = &cobra.Command{
	Use:   "resize <path> <width> <height>",
	Short: "Resize an image in place",
	Long: `Resizes a PNG or JPEG image to exactly width x height, overwriting the
file. The aspect ratio is not preserved. Use it to bring an input to the
square size expected by run.`,
	Args: cobra.ExactArgs(3),
	RunE: runResize,
}

func init() {
	rootCmd.AddCommand(resizeCmd)
}

func runResize(cmd *cobra.Command, args []string) error {
	width, err := parseDimension("width", args[1])
	if err != nil {
		return err
	}
	height, err := parseDimension("height", args[2])
	if err != nil {
		return err
	}

	path := imaging.ExpandPath(args[0])
	if err := imaging.Resize(path, width, height); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Resized %s to %dx%d\n", path, width, height)
	return nil
}

func parseDimension(name, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, s)
	}
	return v, nil
}
