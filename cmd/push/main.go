// Command push sends one JSON batch file to the endpoint and prints the returned batch.
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
	"syscall"

	"github.com/Apurer/product-sync-connector/internal/app/connector"
	"github.com/Apurer/product-sync-connector/internal/domains/products/adapters/http/mapper"
	"github.com/Apurer/product-sync-connector/internal/domains/products/ports"
	"github.com/Apurer/product-sync-connector/internal/platform/config"
	platformobservability "github.com/Apurer/product-sync-connector/internal/platform/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "push:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("push", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", connector.DefaultConfigPath, "connector YAML configuration")
	operation := flags.String("operation", string(ports.OperationProductData), "push operation")
	file := flags.String("file", "", "JSON batch file ({\"items\":[...]}), - for stdin")
	remove := flags.Bool("delete", false, "delete the batch instead of pushing it")
	logLevel := flags.String("log-level", "info", "debug, info, warn, or error")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	batch, err := readBatch(*file)
	if err != nil {
		return err
	}
	items, err := mapper.ToModels(batch)
	if err != nil {
		return err
	}

	logger, _, err := platformobservability.NewLogger(stderr, "", *logLevel)
	if err != nil {
		return err
	}
	service, err := connector.BuildSyncService(cfg, &platformobservability.Instruments{Logger: logger}, nil)
	if err != nil {
		return err
	}

	if *remove {
		items, err = service.Delete(ctx, items)
	} else {
		op, ok := ports.ParseOperation(*operation)
		if !ok {
			return fmt.Errorf("%w: %s", ports.ErrUnknownOperation, *operation)
		}
		items, err = service.Push(ctx, op, items)
	}
	if err != nil {
		return err
	}

	out, err := mapper.FromModels(items)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func readBatch(path string) (mapper.Batch, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return mapper.Batch{}, err
		}
		defer f.Close()
		r = f
	}
	var batch mapper.Batch
	if err := json.NewDecoder(r).Decode(&batch); err != nil {
		return mapper.Batch{}, fmt.Errorf("decode batch %s: %w", path, err)
	}
	return batch, nil
}
