// Command onhlocate runs ONH localization on fundus images and writes their
// crop artifacts.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"onh-grader/internal/onh"
)

func main() {
	size := flag.Int("size", 512, "Side of the square crop region")
	start := flag.Int("start", 255, "First binary threshold")
	step := flag.Int("step", 10, "Threshold decrement between attempts")
	floor := flag.Int("floor", 0, "Lowest threshold tried")
	write := flag.Bool("write", true, "Write crop artifacts under <dir>/crop/")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	images := flag.Args()
	if len(images) == 0 {
		fmt.Println("Usage: onhlocate [-size 512] [-start 255] [-step 10] [-floor 0] [-write] <image>...")
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	params := onh.DefaultParams().WithCropSize(*size).WithThresholds(*start, *step, *floor)
	locator := onh.NewLocator(params, logger)
	p := locator.Params()
	fmt.Printf("Locator parameters:\n")
	fmt.Printf("  Threshold: %d down to %d, step %d\n", p.StartThreshold, p.ThresholdFloor, p.ThresholdStep)
	fmt.Printf("  Median %d, erode %d, dilate %d\n", p.MedianKernel, p.ErodeIter, p.DilateIter)
	fmt.Printf("  Crop size: %d\n\n", p.CropSize)

	fmt.Printf("%-28s %-24s %s\n", "Image", "Region", "Crop")
	failed := 0
	for _, path := range images {
		if onh.IsCropArtifact(path) || !onh.IsSupportedFormat(path) {
			fmt.Printf("%-28s skipped\n", filepath.Base(path))
			continue
		}
		region, err := locator.Locate(path)
		if err != nil {
			failed++
			reason := err.Error()
			switch {
			case errors.Is(err, onh.ErrNotFound):
				reason = "not found"
			case errors.Is(err, onh.ErrNoONH):
				reason = "no ONH"
			}
			fmt.Printf("%-28s %s\n", filepath.Base(path), reason)
			continue
		}

		crop := "-"
		if *write {
			out, err := onh.WriteCrop(path, region)
			if err != nil {
				failed++
				fmt.Printf("%-28s %-24s %v\n", filepath.Base(path), region, err)
				continue
			}
			crop = out
		}
		fmt.Printf("%-28s %-24s %s\n", filepath.Base(path), region, crop)
	}

	fmt.Printf("\nTotal: %d images, %d failed\n", len(images), failed)
	if failed > 0 {
		os.Exit(2)
	}
}
