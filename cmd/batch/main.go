package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/joho/godotenv"

	"lookbook/internal/domain"
	"lookbook/internal/infra"
	"lookbook/internal/infra/credentials"
	"lookbook/internal/media"
	"lookbook/internal/storage"
	"lookbook/internal/studio"
	"lookbook/pkg/zip"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var (
		inDir   string
		outDir  string
		zipPath string
		gender  string
		remarks string
	)
	flag.StringVar(&inDir, "dir", ".", "Directory with flat-lay garment photos")
	flag.StringVar(&outDir, "out", cfg.ExportDir, "Directory the generated photos are exported to")
	flag.StringVar(&zipPath, "zip", "", "Also bundle the results into this zip file")
	flag.StringVar(&gender, "gender", string(domain.GenderFemale), "Model demographic: female, male, girl or boy")
	flag.StringVar(&remarks, "remarks", "", "Extra styling requirements added to the prompt")
	flag.Parse()

	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompter := credentials.ReaderPrompter{In: os.Stdin, Out: os.Stderr}
	controller, err := studio.NewFromConfig(cfg, &logger, prompter)
	if err != nil {
		logger.Fatal().Err(err).Msg("batch: failed to configure studio")
	}
	if _, err := controller.SetParams(domain.Params{Gender: domain.Gender(gender), Remarks: remarks}); err != nil {
		logger.Fatal().Err(err).Msg("batch: invalid settings")
	}

	files, err := readDir(inDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("batch: failed to read input directory")
	}
	added, rejected := controller.AddFiles(files)
	for _, rj := range rejected {
		logger.Warn().Str("file", rj.Name).Err(rj.Err).Msg("batch: skipped file")
	}
	if len(added) == 0 {
		logger.Fatal().Str("dir", inDir).Msg("batch: no images found")
	}

	run, err := controller.StartBatch(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("batch: failed to start")
	}
	runErr := run.Wait(context.Background())
	report := run.Report()
	fmt.Printf("batch %s: %d completed, %d failed, %d skipped\n", report.BatchID, report.Completed, report.Failed, report.Skipped)
	for _, it := range controller.State().Items {
		if it.Status == domain.StatusError {
			fmt.Printf("  %s (%s): %s\n", it.Source.Name, it.ID, it.Error)
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error().Err(runErr).Msg("batch: aborted")
		os.Exit(1)
	}
	if !controller.State().CanDownloadAll {
		os.Exit(1)
	}

	store, err := storage.NewFileStore(outDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("batch: failed to prepare output directory")
	}
	n, err := controller.ExportAll(ctx, store, cfg.ExportDelay)
	if err != nil {
		logger.Fatal().Err(err).Int("exported", n).Msg("batch: export failed")
	}
	fmt.Printf("exported %d file(s) to %s\n", n, store.BasePath())

	if zipPath != "" {
		if err := writeZip(ctx, controller, zipPath); err != nil {
			logger.Fatal().Err(err).Msg("batch: zip export failed")
		}
		fmt.Printf("wrote %s\n", zipPath)
	}
}

func readDir(dir string) ([]media.File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	files := make([]media.File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, media.File{Name: e.Name(), Data: data})
	}
	return files, nil
}

func writeZip(ctx context.Context, controller *studio.Controller, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	zw := zip.NewWriter(f)
	if _, err := controller.ExportAll(ctx, zw, 0); err != nil {
		return err
	}
	return zw.Close()
}
