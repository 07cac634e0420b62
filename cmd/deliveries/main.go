package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/banshee-data/delivery.report/internal/config"
	"github.com/banshee-data/delivery.report/internal/db"
	"github.com/banshee-data/delivery.report/internal/delivery"
	"github.com/banshee-data/delivery.report/internal/detection"
	"github.com/banshee-data/delivery.report/internal/export"
	"github.com/banshee-data/delivery.report/internal/monitoring"
	"github.com/banshee-data/delivery.report/internal/pipeline"
	"github.com/banshee-data/delivery.report/internal/units"
	"github.com/banshee-data/delivery.report/internal/version"
)

var (
	detectionsPath = flag.String("detections", "", "Detections JSONL file, one frame per line (\"-\" for stdin)")
	configPath     = flag.String("config", "", "Tuning config JSON (defaults to config/tuning.defaults.json values)")
	outPath        = flag.String("out", "deliveries.json", "Session JSON output path (empty to skip)")
	dbPath         = flag.String("db", "", "SQLite database to store the session in (empty to skip)")
	htmlPath       = flag.String("html", "", "HTML report output path (empty to skip)")
	plotsDir       = flag.String("plots", "", "Directory for PNG plots (empty to skip)")
	videoID        = flag.String("video-id", "", "Video identifier (random UUID if empty)")
	fps            = flag.Float64("fps", 0, "Override the configured frame rate")
	frameHeight    = flag.Int("frame-height", 0, "Override the configured frame height in pixels")
	logDiag        = flag.Bool("log-diag", false, "Log lifecycle diagnostics to stderr")
	logTrace       = flag.Bool("log-trace", false, "Log per-frame tracing to stderr")
	speedUnits     = flag.String("units", units.KMPH, "Units for the logged delivery summary ("+units.GetValidUnitsString()+")")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

// options is the resolved command line.
type options struct {
	DetectionsPath string
	ConfigPath     string
	OutPath        string
	DBPath         string
	HTMLPath       string
	PlotsDir       string
	VideoID        string
	FPS            float64
	FrameHeight    int
	Units          string
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		if *dbPath == "" {
			log.Fatal("-db is required for migrate")
		}
		if err := db.RunMigrateCommand(flag.Args()[1:], *dbPath, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	if *detectionsPath == "" {
		log.Fatal("-detections is required")
	}
	configureLogging(os.Stderr, *logDiag, *logTrace)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		DetectionsPath: *detectionsPath,
		ConfigPath:     *configPath,
		OutPath:        *outPath,
		DBPath:         *dbPath,
		HTMLPath:       *htmlPath,
		PlotsDir:       *plotsDir,
		VideoID:        *videoID,
		FPS:            *fps,
		FrameHeight:    *frameHeight,
		Units:          *speedUnits,
	}
	if err := run(ctx, opts); err != nil {
		log.Fatalf("deliveries: %v", err)
	}
}

func configureLogging(w io.Writer, diag, trace bool) {
	var diagW, traceW io.Writer
	if diag {
		diagW = w
	}
	if trace {
		traceW = w
	}
	delivery.SetLogWriters(w, diagW, traceW)
	pipeline.SetLogWriters(w, diagW, traceW)
	detection.SetLogWriter(w)
}

func loadTuning(opts options) (*config.TuningConfig, error) {
	tc := config.DefaultTuningConfig()
	if opts.ConfigPath != "" {
		var err error
		if tc, err = config.LoadTuningConfig(opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	if opts.FPS > 0 {
		tc.FPS = &opts.FPS
	}
	if opts.FrameHeight > 0 {
		tc.FrameHeight = &opts.FrameHeight
	}
	if err := tc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning config: %w", err)
	}
	return tc, nil
}

func openDetections(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open detections: %w", err)
	}
	return f, nil
}

func run(ctx context.Context, opts options) error {
	if opts.Units == "" {
		opts.Units = units.KMPH
	}
	if !units.IsValid(opts.Units) {
		return fmt.Errorf("invalid units %q, want one of %s", opts.Units, units.GetValidUnitsString())
	}
	tc, err := loadTuning(opts)
	if err != nil {
		return err
	}

	monitoring.Logf("%s", version.String())

	counters := &monitoring.Counters{}
	tracker, err := delivery.NewTracker(delivery.ConfigFromTuning(tc), delivery.WithCounters(counters))
	if err != nil {
		return err
	}

	in, err := openDetections(opts.DetectionsPath)
	if err != nil {
		return err
	}
	defer in.Close()

	session := export.NewSessionWriter(opts.VideoID, tc.GetFPS(), tc.GetPitchLengthMeters())
	sinks := []pipeline.RecordSink{session}

	var store *db.DeliveryStore
	if opts.DBPath != "" {
		database, err := db.NewDB(opts.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()
		store = db.NewDeliveryStore(database.DB)
		s := session.Session()
		if _, err := store.InsertSession(db.SessionInfo{
			VideoID:           s.VideoID,
			FPS:               s.FPS,
			PitchLengthMeters: s.PitchLengthMeters,
		}); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	source := detection.NewJSONLReader(in, counters)
	if err := pipeline.NewProcessor(source, tracker, sinks...).Run(ctx); err != nil {
		return err
	}

	snap := counters.Snapshot()
	monitoring.Logf("processed %s", snap)

	if store != nil {
		if err := store.SaveCounters(snap); err != nil {
			return err
		}
	}
	logSummary(session.Session(), opts.Units)
	return writeOutputs(session.Session(), session, opts)
}

func logSummary(s export.Session, unit string) {
	for _, rec := range s.Deliveries {
		pitch := "-"
		if p := rec.Pitch(); p != delivery.PitchUnknown {
			pitch = string(p)
		}
		monitoring.Logf("delivery %d: frames %d-%d, max %.1f %s, pitch %s",
			rec.DeliveryID, rec.StartFrame, rec.EndFrame,
			units.ConvertSpeed(rec.Speed.MaxKmph/3.6, unit), unit, pitch)
	}
}

func writeOutputs(s export.Session, w *export.SessionWriter, opts options) error {
	if opts.OutPath != "" {
		if err := w.Save(opts.OutPath); err != nil {
			return err
		}
		monitoring.Logf("wrote %d deliveries to %s", len(s.Deliveries), opts.OutPath)
	}
	if opts.HTMLPath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.HTMLPath), 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
		f, err := os.Create(opts.HTMLPath)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		if err := export.RenderHTMLReport(f, s); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close report: %w", err)
		}
		monitoring.Logf("wrote report to %s", opts.HTMLPath)
	}
	if opts.PlotsDir != "" {
		files, err := export.PlotTrajectories(opts.PlotsDir, s)
		if err != nil {
			return err
		}
		monitoring.Logf("wrote plots %v", files)
	}
	return nil
}
