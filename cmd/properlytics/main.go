// Command line entry point for the property valuation engine.
// Serves one-off predictions, model retraining and registry status.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/properlytics/properlytics-go/pkg/config"
	"github.com/properlytics/properlytics-go/pkg/engine"
	"github.com/properlytics/properlytics-go/pkg/metadatastore"
	"github.com/properlytics/properlytics-go/pkg/ml"
	"github.com/properlytics/properlytics-go/pkg/models"
	"github.com/properlytics/properlytics-go/pkg/registry"
	"github.com/properlytics/properlytics-go/pkg/scheduler"
	"github.com/properlytics/properlytics-go/utils"
)

const version = "v1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLogger()
	logger.SetLevel(utils.ParseLevel(cfg.LogLevel))
	if cfg.LogFormat == "json" {
		logger.SetFormat("json")
	}

	app, err := newApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		os.Exit(1)
	}
	defer app.close()

	switch os.Args[1] {
	case "predict":
		err = app.runPredict(os.Args[2:])
	case "retrain":
		err = app.runRetrain()
	case "status":
		err = app.runStatus()
	case "schedule":
		err = app.runSchedule()
	case "version":
		fmt.Println("properlytics", version)
	default:
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: properlytics <command> [flags]

commands:
  predict  -type flat|house|plot -input <file.json>   run a single valuation
  retrain                                             retrain all models and reload
  status                                              show loaded model slots
  schedule                                            run the periodic retrain loop
  version                                             print the version`)
}

// app bundles the long-lived services the subcommands share
type app struct {
	cfg      *config.Config
	logger   *utils.Logger
	store    *metadatastore.SQLiteStore
	registry *registry.Registry
	engine   *engine.Engine
}

func newApp(cfg *config.Config, logger *utils.Logger) (*app, error) {
	var store *metadatastore.SQLiteStore
	if cfg.DBPath != "" {
		var err error
		store, err = metadatastore.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			// Bookkeeping is optional; predictions work without it
			logger.Warn("metadata store unavailable, continuing without it",
				utils.Component("main"), utils.String("db_path", cfg.DBPath))
			store = nil
		}
	}

	var training map[models.PropertyType]*ml.TrainingSpec
	if cfg.TrainingConfig != "" {
		var err error
		training, err = config.LoadTrainingConfig(cfg.TrainingConfig)
		if err != nil {
			return nil, err
		}
	}

	reg := registry.New(registry.Config{
		ModelDir:  cfg.ModelDir,
		ReportDir: cfg.ReportDir,
		Logger:    logger,
		Store:     store,
		Training:  training,
	})
	reg.LoadAll()

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: reg,
		engine:   engine.NewEngine(reg, logger, cfg.PlotMargin),
	}, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) runPredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	typeFlag := fs.String("type", "", "property type: flat, house or plot")
	inputFlag := fs.String("input", "", "path to the JSON input file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	propertyType, err := models.ParsePropertyType(*typeFlag)
	if err != nil {
		return err
	}
	if *inputFlag == "" {
		return fmt.Errorf("missing -input")
	}
	data, err := os.ReadFile(*inputFlag)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	ctx := context.Background()
	var response any
	switch propertyType {
	case models.PropertyFlat:
		var in models.FlatInput
		if err := decodeInput(data, &in); err != nil {
			return err
		}
		response, err = a.engine.PredictFlat(ctx, &in)
	case models.PropertyHouse:
		var in models.HouseInput
		if err := decodeInput(data, &in); err != nil {
			return err
		}
		response, err = a.engine.PredictHouse(ctx, &in)
	case models.PropertyPlot:
		var in models.PlotInput
		if err := decodeInput(data, &in); err != nil {
			return err
		}
		response, err = a.engine.PredictPlot(ctx, &in)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(response, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func decodeInput(data []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if v, ok := target.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid input: %w", err)
		}
	}
	return nil
}

func (a *app) runRetrain() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.registry.RetrainAndReload(ctx)
}

func (a *app) runStatus() error {
	loaded := a.registry.Loaded()
	for _, t := range []models.PropertyType{models.PropertyFlat, models.PropertyHouse, models.PropertyPlot} {
		state := "unloaded"
		if loaded[t] {
			state = "loaded"
		}
		fmt.Printf("%-6s %s\n", t, state)
	}
	if a.store != nil {
		runs, err := a.store.ListRetrainRuns(5)
		if err != nil {
			return err
		}
		for _, run := range runs {
			fmt.Printf("retrain %s %s %s\n", run.StartedAt.Format("2006-01-02 15:04:05"), run.Status, run.Detail)
		}
	}
	return nil
}

func (a *app) runSchedule() error {
	if a.cfg.RetrainSchedule == "" {
		return fmt.Errorf("RETRAIN_SCHEDULE is not set")
	}
	svc := scheduler.NewService(a.registry, a.logger)
	if err := svc.Start(a.cfg.RetrainSchedule); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	a.logger.Info("shutting down", utils.Component("main"))
	svc.Stop()
	return nil
}
