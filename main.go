// Command onh-grader grades fundus photographs: it locates the optic nerve
// head, writes the crop artifact, evaluates the segmentation mask and writes
// a JSON report per image.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"onh-grader/internal/boundary"
	"onh-grader/internal/config"
	"onh-grader/internal/dataset"
	"onh-grader/internal/metrics"
	"onh-grader/internal/onh"
	"onh-grader/internal/predictor"
	"onh-grader/internal/report"
	"onh-grader/internal/segment"
	"onh-grader/internal/session"
	"onh-grader/internal/version"
	"onh-grader/internal/view"
	"onh-grader/pkg/geometry"
)

const appName = "onh-grader"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath(), "Path to configuration file")
	imagePath := flag.String("image", "", "Fundus image to grade (more may follow as arguments)")
	outDir := flag.String("out", "", "Directory for reports (default: next to each image)")
	record := flag.Bool("record", false, "Record valid results to the dataset database")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String(appName))
		return 0
	}

	images := flag.Args()
	if *imagePath != "" {
		images = append([]string{*imagePath}, images...)
	}
	if len(images) == 0 {
		fmt.Println("Usage: onh-grader [-config path] [-out dir] [-record] -image <path> [more images...]")
		return 1
	}

	cfg, err := config.Load(*configPath)
	logger := NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logger.Warn("config load failed, using defaults", "path", *configPath, "error", err)
	}
	logger.Info("starting", "version", version.Version, "images", len(images))

	ctx := context.Background()

	pred, stop := newPredictor(cfg, logger)
	defer stop()

	var recorder dataset.Recorder = dataset.NopRecorder{}
	if *record {
		if cfg.DatasetDSN == "" {
			logger.Error("-record needs dataset_dsn in the configuration")
			return 1
		}
		pg, err := dataset.OpenPostgres(ctx, cfg.DatasetDSN)
		if err != nil {
			logger.Error("dataset unavailable", "error", err)
			return 1
		}
		recorder = pg
	}
	defer recorder.Close()

	g := &grader{
		cfg:      cfg,
		engine:   metrics.NewEngine(pred, cfg.Thresholds(), logger),
		locator:  onh.NewLocator(cfg.ONHParams(), logger),
		recorder: recorder,
		outDir:   *outDir,
		logger:   logger,
	}

	failed := 0
	fmt.Printf("%-24s %-22s %-10s %-14s %-8s %s\n", "Image", "Region", "CDR", "ISNT", "Rate", "Result")
	for _, path := range images {
		rep, err := g.grade(ctx, path)
		if err != nil {
			failed++
			fmt.Printf("%-24s %s\n", filepath.Base(path), err)
			continue
		}
		printRow(path, rep)
	}

	if failed > 0 {
		logger.Warn("some images could not be graded", "failed", failed, "total", len(images))
		return 2
	}
	return 0
}

// newPredictor picks the rate predictor from the configuration: a remote
// service when predictor_url is set, otherwise the linear model file. The
// returned func stops the model watcher, if any.
func newPredictor(cfg *config.Config, logger *slog.Logger) (predictor.Predictor, func()) {
	if cfg.PredictorURL != "" {
		return predictor.NewHTTPClient(cfg.PredictorURL), func() {}
	}
	model := predictor.NewLinearModel(logger)
	if cfg.ModelPath == "" {
		logger.Warn("no predictor configured, detection rate unavailable")
		return model, func() {}
	}
	_ = model.Load(cfg.ModelPath)
	if !cfg.WatchModel {
		return model, func() {}
	}
	w := predictor.NewWatcher(model, cfg.ModelPath, 2*time.Second, logger)
	w.OnReload(func(s predictor.Status) {
		logger.Info("predictor reloaded", "status", s.String())
	})
	w.Start()
	return model, w.Stop
}

type grader struct {
	cfg      *config.Config
	engine   *metrics.Engine
	locator  *onh.Locator
	recorder dataset.Recorder
	outDir   string
	logger   *slog.Logger
}

func (g *grader) sessionOptions() session.Options {
	var seg segment.Service = segment.FileService{}
	if g.cfg.SegmentationURL != "" {
		seg = segment.NewHTTPService(g.cfg.SegmentationURL, g.logger)
	}
	return session.Options{
		Locator:   g.locator,
		Extractor: boundary.Extractor{CupCutoff: g.cfg.CupCutoff, DiscCutoff: g.cfg.DiscCutoff},
		Segmenter: seg,
		Engine:    g.engine,
		HitTester: view.HitTester{
			GrabArea:            g.cfg.GrabArea,
			VisibilityThreshold: g.cfg.VisibilityThreshold,
		},
		DefaultRadii:  [2]int{g.cfg.DiscRadius, g.cfg.CupRadius},
		DefaultAlphas: [2]int{g.cfg.DiscAlpha, g.cfg.CupAlpha},
		Logger:        g.logger,
	}
}

// grade runs one image through locate, segmentation and evaluation, and
// writes its report. Locate and mask failures are recorded in the report
// rather than returned.
func (g *grader) grade(ctx context.Context, path string) (*report.Case, error) {
	opts := g.sessionOptions()
	opts.Logger = g.logger.With("image", filepath.Base(path))
	s := session.New(opts)

	var stepErr error
	s.On(session.EventLocateFailed, func(data interface{}) { stepErr = data.(error) })
	s.On(session.EventMaskFailed, func(data interface{}) { stepErr = data.(error) })

	if err := s.LoadImage(path); err != nil {
		return nil, err
	}
	if _, _, err := s.RequestLocate(); err != nil {
		return nil, err
	}
	s.Wait()

	if _, err := s.AddLayer("Automatic", geometry.LayerAutomatic); err != nil && stepErr == nil {
		stepErr = err
	}
	s.Wait()

	rep := report.New()
	reportPath := report.PathFor(path)
	if g.outDir != "" {
		reportPath = filepath.Join(g.outDir, filepath.Base(reportPath))
	}
	rep.SetImage(reportPath, path, s.CropPath(), s.MaskPath())
	if region, ok := s.Region(); ok {
		rep.Region = &region
	}
	if stepErr != nil {
		rep.Error = stepErr.Error()
	}

	res := s.Evaluate(ctx)
	var disc, cup *metrics.Measurement
	if b, ok := s.Boundaries(); ok {
		d := metrics.FromRect(b.Disc.Box, b.Disc.Area)
		c := metrics.FromRect(b.Cup.Box, b.Cup.Area)
		disc, cup = &d, &c
	}
	rep.AddLayer("Automatic", geometry.LayerAutomatic, disc, cup, res)

	if err := rep.Save(reportPath); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	if sample, ok := dataset.NewSample(path, "mask", res); ok {
		if err := g.recorder.Record(ctx, sample); err != nil {
			g.logger.Warn("dataset record failed", "image", path, "error", err)
		}
	}

	g.logger.Info("graded", "image", path, "result", res.Kind.String(), "report", reportPath)
	return rep, nil
}

func printRow(path string, rep *report.Case) {
	region := "-"
	if rep.Region != nil {
		region = rep.Region.String()
	}
	cdr, isnt, rate := "-", "-", "-"
	summary := rep.Error
	if len(rep.Layers) > 0 {
		res := rep.Layers[0].Result
		if res.HasRatio() {
			cdr = fmt.Sprintf("%.3f", res.CDR)
			isnt = res.ISNT.String()
		}
		if res.HasRate() {
			rate = fmt.Sprintf("%.1f%%", res.RatePercent())
		}
		if summary == "" {
			summary = res.Kind.String()
		}
	}
	fmt.Printf("%-24s %-22s %-10s %-14s %-8s %s\n", filepath.Base(path), region, cdr, isnt, rate, summary)
}
