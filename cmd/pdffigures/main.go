package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/urfave/cli/v3"

	pdffigures "github.com/visarch/pdffigures"
	"github.com/visarch/pdffigures/tesseract"
)

func main() {
	sharedFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "data-dir",
			Aliases:  []string{"d"},
			Usage:    "Directory containing the PDF files to process",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "output-dir",
			Aliases:  []string{"o"},
			Usage:    "Directory where extracted visuals and metadata are written",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "settings",
			Aliases: []string{"s"},
			Usage:   "JSON settings file (defaults are used for absent keys)",
		},
		&cli.StringFlag{
			Name:    "mods",
			Aliases: []string{"m"},
			Usage:   "MODS file with descriptive metadata for the entry",
		},
		&cli.BoolFlag{
			Name:  "ignore-id",
			Usage: "Process all PDF files instead of only those matching the MODS entry id",
		},
	}

	cmd := &cli.Command{
		Name:  "pdffigures",
		Usage: "Extract figures and their captions from PDF files",
		Commands: []*cli.Command{
			{
				Name:   "layout",
				Usage:  "Detect visuals through the PDF's structural element tree",
				Flags:  sharedFlags,
				Action: runStrategy(pdffigures.StrategyLayout),
			},
			{
				Name:   "ocr",
				Usage:  "Detect visuals by rasterizing pages and running Tesseract",
				Flags:  sharedFlags,
				Action: runStrategy(pdffigures.StrategyOCR),
			},
			{
				Name:   "layout-ocr",
				Usage:  "Run layout detection, then OCR on pages where layout found nothing",
				Flags:  sharedFlags,
				Action: runStrategy(pdffigures.StrategyLayoutOCR),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// runStrategy builds the action for one detection strategy subcommand.
func runStrategy(strategy pdffigures.Strategy) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		settings := pdffigures.DefaultSettings()
		if path := cmd.String("settings"); path != "" {
			var err error
			settings, err = pdffigures.LoadSettings(path)
			if err != nil {
				return err
			}
		}

		// Initialise pdfium
		pool, err := webassembly.Init(webassembly.Config{
			MinIdle:  1,
			MaxIdle:  1,
			MaxTotal: 1,
		})
		if err != nil {
			return fmt.Errorf("failed to initialise pdfium: %w", err)
		}
		defer pool.Close()

		instance, err := pool.GetInstance(time.Second * 30)
		if err != nil {
			return fmt.Errorf("failed to get pdfium instance: %w", err)
		}

		extractor := pdffigures.NewExtractor(instance, settings)
		if strategy != pdffigures.StrategyLayout {
			extractor.WithEngine(tesseract.New())
		}

		runner := pdffigures.NewRunner(extractor)
		result, err := runner.Run(ctx, pdffigures.RunConfig{
			DataDir:      cmd.String("data-dir"),
			OutputDir:    cmd.String("output-dir"),
			MetadataFile: cmd.String("mods"),
			IgnoreID:     cmd.Bool("ignore-id"),
			Strategy:     strategy,
			Settings:     settings,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Extracted %d visuals from %d documents\n",
			result.Metadata.TotalVisuals, len(result.Metadata.Documents))
		if len(result.Failed) > 0 {
			fmt.Fprintf(os.Stderr, "Failed documents: %d (see %s)\n",
				len(result.Failed), result.EntryDir)
		}
		fmt.Fprintf(os.Stderr, "Metadata written to %s\n", result.MetadataJSON)
		return nil
	}
}
