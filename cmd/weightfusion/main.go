// Package main provides the weightfusion CLI.
package main

import (
	"fmt"
	"image/color"
	"os"

	"github.com/born-ml/weightfusion/internal/parallel"
	"github.com/born-ml/weightfusion/internal/trainer"
	"github.com/born-ml/weightfusion/internal/visualizer"
)

const version = "v0.1.0"

// roleColors are the panel theme colours.
var roleColors = map[trainer.Role]color.Color{
	trainer.RoleAdd:    visualizer.DefaultColor,
	trainer.RoleMult:   color.NRGBA{R: 0x10, G: 0xb9, B: 0x81, A: 0xff},
	trainer.RoleMerged: color.NRGBA{R: 0xa8, G: 0x55, B: 0xf7, A: 0xff},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("weightfusion %s\n", version)
	case "train":
		runTrain(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("weightfusion - train two networks, average their weights, test the blend")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  train      Run one session headless and write the final diagrams")
	fmt.Println("  serve      Serve the live dashboard over HTTP")
}

func banner() {
	avx := "no"
	if parallel.HasAVX2() {
		avx = "yes"
	}
	fmt.Printf("🖥️  CPU: %s (AVX2: %s, workers: %d)\n", parallel.CPUSummary(), avx, parallel.DefaultConfig().NumWorkers)
}
