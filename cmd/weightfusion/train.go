package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/born-ml/weightfusion/internal/backend/cpu"
	"github.com/born-ml/weightfusion/internal/network"
	"github.com/born-ml/weightfusion/internal/trainer"
	"github.com/born-ml/weightfusion/internal/visualizer"
)

func runTrain(args []string) {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	epochs := fs.Int("epochs", 50, "Number of training epochs")
	batchSize := fs.Int("batch", 32, "Batch size for training")
	lr := fs.Float64("lr", 0.001, "Learning rate for Adam optimizer")
	seed := fs.Int64("seed", 0, "Weight init seed (0 = from clock)")
	outDir := fs.String("out", "frames", "Directory for the final diagrams")
	width := fs.Int("width", 480, "Diagram width in pixels")
	height := fs.Int("height", 320, "Diagram height in pixels")
	_ = fs.Parse(args)

	cfg := trainer.DefaultConfig()
	cfg.Epochs = *epochs
	cfg.BatchSize = *batchSize
	cfg.LearningRate = float32(*lr)
	cfg.Seed = *seed
	cfg.YieldDelay = 0

	fmt.Println("🚀 weightfusion - addition + multiplication → division")
	banner()
	fmt.Printf("   Architecture: %v, Adam lr=%.4f, batch=%d, epochs=%d\n\n",
		network.Architecture, cfg.LearningRate, cfg.BatchSize, cfg.Epochs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	session := trainer.NewSession(cpu.New(), cfg)
	defer session.Close()

	for ev := range trainer.Run(ctx, session, cfg) {
		if ev.Done {
			if ev.Err != nil {
				log.Fatalf("Training failed after %d epochs: %v", ev.Epoch, ev.Err)
			}
			break
		}
		fmt.Printf("Epoch %2d/%d: add loss=%.4f acc=%5.1f%% | mult loss=%.4f acc=%5.1f%% | merged div loss=%.4f acc=%5.1f%%\n",
			ev.Epoch, cfg.Epochs,
			ev.Add.Loss, ev.Add.Accuracy*100,
			ev.Mult.Loss, ev.Mult.Accuracy*100,
			ev.Merged.Loss, ev.Merged.Accuracy*100)
	}

	if err := writeFrames(session, *outDir, *width, *height); err != nil {
		log.Fatalf("Failed to write diagrams: %v", err)
	}
	fmt.Printf("\n✅ Diagrams written to %s\n", *outDir)
}

func writeFrames(s *trainer.Session, dir string, width, height int) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	renderer := visualizer.NewRenderer()
	for _, role := range trainer.Roles {
		frame := renderer.Render(visualizer.Props{
			Source: func() *network.Snapshot { return s.Snapshot(role) },
			Color:  roleColors[role],
			Width:  width,
			Height: height,
		}, nil)
		if frame.Fault != nil {
			return fmt.Errorf("%s: %w", role, frame.Fault)
		}
		if err := savePNG(filepath.Join(dir, role.String()+".png"), frame); err != nil {
			return fmt.Errorf("%s: %w", role, err)
		}
	}
	return nil
}

func savePNG(path string, frame visualizer.Frame) error {
	f, err := os.Create(path) //nolint:gosec // G304: path built from the -out flag
	if err != nil {
		return err
	}
	if err := png.Encode(f, frame.Image); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
