// Command credprobe is a demonstration front-end for the toolkit: it runs
// SMTP credential probes from a YAML spec, decodes captured DNS payloads,
// and exercises the domains cache.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/credprobe-dev/credprobe/application/schema"
	"github.com/credprobe-dev/credprobe/cache"
	"github.com/credprobe-dev/credprobe/domain/entities"
	"github.com/credprobe-dev/credprobe/infrastructure/netconn"
	"github.com/credprobe-dev/credprobe/infrastructure/parser"
	"github.com/credprobe-dev/credprobe/log"
	probenet "github.com/credprobe-dev/credprobe/net"
	"github.com/credprobe-dev/credprobe/smtp"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "credprobe:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// A .env file is optional; environment beats defaults either way.
	_ = godotenv.Load()

	if len(args) < 1 {
		return fmt.Errorf("usage: credprobe <probe|dnsdecode|cachedemo|schema> [flags]")
	}

	switch args[0] {
	case "probe":
		return runProbe(args[1:])
	case "dnsdecode":
		return runDNSDecode(args[1:])
	case "cachedemo":
		return runCacheDemo()
	case "schema":
		_, err := os.Stdout.Write(probenet.SMTPProbeConfigSchema())
		fmt.Println()
		return err
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func setupLogger(verbose, jsonOut bool) *slog.Logger {
	opts := []log.HandlerOption{log.WithJSON(jsonOut)}
	if verbose {
		opts = append(opts, log.WithLevel(slog.LevelDebug))
	}
	logger := log.NewLogger(opts...)
	slog.SetDefault(logger)
	return logger
}

func runProbe(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the YAML probe spec")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	jsonLog := fs.Bool("json-log", false, "log as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return fmt.Errorf("probe: -config is required")
	}

	logger := setupLogger(*verbose, *jsonLog)

	cfg, err := parser.LoadConfigFile(*configPath)
	if err != nil {
		return err
	}

	// Reject malformed specs before any socket is opened.
	doc, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := schema.ValidateDocument(probenet.SMTPProbeConfigSchema(), doc); err != nil {
		return fmt.Errorf("probe spec %s: %w", *configPath, err)
	}

	result, err := probenet.RunSMTPProbe(context.Background(), cfg,
		probenet.WithProberOptions(
			smtp.WithLogger(logger),
			smtp.WithProgressCallback(func(total, completed uint64) {
				logger.Debug("progress", "completed", completed, "total", total)
			}),
		))
	if err != nil {
		return err
	}
	return printResult(result)
}

func runDNSDecode(args []string) error {
	fs := flag.NewFlagSet("dnsdecode", flag.ContinueOnError)
	hexPayload := fs.String("hex", "", "payload as hex")
	b64Payload := fs.String("b64", "", "payload as Base64")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogger(false, false)

	cfg := map[string]any{}
	if *hexPayload != "" {
		cfg["payload_hex"] = *hexPayload
	}
	if *b64Payload != "" {
		cfg["payload_b64"] = *b64Payload
	}

	result, err := probenet.RunDNSDecode(context.Background(), cfg)
	if err != nil {
		return err
	}
	return printResult(result)
}

func runCacheDemo() error {
	logger := setupLogger(false, false)

	c := cache.New(2*time.Second, cache.WithClock(netconn.SystemClock{}))
	c.Insert("example.com", "93.184.216.34")
	c.Insert("example.org", "93.184.216.35")

	if addr, ok := c.Lookup("example.com"); ok {
		logger.Info("cache hit", "name", "example.com", "address", addr)
	}
	if _, ok := c.Lookup("nonexistent.example"); !ok {
		logger.Info("cache miss", "name", "nonexistent.example")
	}

	time.Sleep(2100 * time.Millisecond)
	c.Sweep()
	logger.Info("after expiry sweep", "entries", c.Len())
	return nil
}

func printResult(result entities.Result) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
