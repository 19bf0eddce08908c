// Command green-import ingests CSV exports from disk into the configured
// record store, through the same path as the upload endpoint.
//
//	green-import [-date YYYY-MM-DD] file.csv|dir ...
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"green/internal/amqp"
	"green/internal/backend"
	"green/internal/cli"
	"green/internal/config"
	"green/internal/ingest"
	"green/internal/log"
	"green/internal/report"
	"green/internal/services"
)

var errUsage = errors.New("usage: green-import [-date YYYY-MM-DD] file.csv|dir ...")

func main() {
	cli.LoadEnvFile()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 when every file was stored, 1 when
// any file was rejected or the import could not start, 2 on bad usage.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("green-import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	date := fs.String("date", "", "record date for every row (YYYY-MM-DD), defaults to now")
	publish := fs.Bool("publish", true, "announce the batch on AMQP when AMQP_URL is set")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger := cli.SetupLogger(cfg, log.ComponentIngest)

	paths, err := collectFiles(fs.Args())
	if err != nil {
		logger.Error("Cannot collect input files", log.FieldError, err)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		return 1
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		return 1
	}
	store, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize record store", log.FieldError, err)
		return 1
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("Store close error", log.FieldError, err)
		}
	}()

	schema := report.DefaultSchema()
	var opts []services.RecordServiceOption
	if *publish && cfg.AMQPURL != "" {
		dialCtx, dialCancel := context.WithTimeout(ctx, 30*time.Second)
		client, err := amqp.NewClient(dialCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		dialCancel()
		if err != nil {
			// The worker sweep mirrors unpublished batches later.
			logger.Warn("AMQP unavailable, importing without publishing", log.FieldError, err)
		} else {
			defer client.Close()
			opts = append(opts, services.WithIngestPublisher(client))
		}
	}
	svc := services.NewRecordService(store.Store, ingest.NewParser(schema), cli.Location(cfg), opts...)

	res, err := svc.Ingest(ctx, uploads(paths), *date)
	if err != nil {
		logger.Error("Import failed", log.FieldError, err)
		if errors.Is(err, ingest.ErrInvalidDate) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error("Cannot write result", log.FieldError, err)
		return 1
	}

	for _, f := range res.Files {
		if f.Status != services.FileSuccess {
			return 1
		}
	}
	return 0
}

// collectFiles expands directories into their .csv entries, sorted by name.
func collectFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no csv files found in %s", strings.Join(args, ", "))
	}
	return paths, nil
}

func uploads(paths []string) []services.UploadFile {
	files := make([]services.UploadFile, len(paths))
	for i, p := range paths {
		files[i] = services.UploadFile{
			Name: filepath.Base(p),
			Open: func() (io.ReadCloser, error) { return os.Open(p) },
		}
	}
	return files
}
