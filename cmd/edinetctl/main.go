// Command edinetctl fetches EDINET filing lists and documents and prints
// the results as JSON.
//
// Usage:
//
//	edinetctl [flags] doc <docID>
//	edinetctl [flags] list <date> [<end-date>]
//
// The subscription key is read from the config file or the
// EDINET_API_KEY environment variable (a .env file is honored).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"edinet_fetch/pkg/core/config"
	"edinet_fetch/pkg/core/edinet"
	"edinet_fetch/pkg/core/fetch"
	"edinet_fetch/pkg/core/logging"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	fieldsPath := flag.String("fields", "", "path to HJSON element-ID allow-list for document extraction")
	noTranslate := flag.Bool("no-translate", false, "disable translation for this run")
	raise := flag.Bool("strict", false, "exit non-zero on document fetch failure instead of printing a failed result")
	flatten := flag.Bool("flatten", false, "flatten document results to one object per record")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, assuming environment variables are set")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config error: %v", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, os.Stderr)

	client := edinet.NewClient(edinet.Options{
		SubscriptionKey: cfg.SubscriptionKey,
		RequestTimeout:  cfg.RequestTimeout(),
		RetryPolicy: fetch.RetryPolicy{
			Attempts: cfg.Retry.Attempts,
			Budget:   cfg.RetryBudget(),
		},
		FetchInterval: cfg.FetchInterval(),
		Translation:   cfg.Translation && !*noTranslate,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	switch args[0] {
	case "doc":
		if len(args) != 2 {
			usage()
		}
		runDoc(ctx, client, args[1], *fieldsPath, *raise, *flatten)
	case "list":
		switch len(args) {
		case 2:
			runList(ctx, client, args[1], "")
		case 3:
			runList(ctx, client, args[1], args[2])
		default:
			usage()
		}
	default:
		usage()
	}
}

func runDoc(ctx context.Context, client *edinet.Client, docID, fieldsPath string, raise, flatten bool) {
	opts := edinet.FetchDocumentOptions{RaiseOnError: raise}
	if fieldsPath != "" {
		fields, err := config.LoadFields(fieldsPath)
		if err != nil {
			log.Fatalf("fields error: %v", err)
		}
		opts.Fields = fields
	}

	result, err := client.Documents.Fetch(ctx, docID, opts)
	if err != nil {
		log.Fatalf("document fetch failed: %v", err)
	}
	if flatten {
		emit(result.Flatten())
		return
	}
	emit(result)
}

func runList(ctx context.Context, client *edinet.Client, from, to string) {
	if to == "" {
		result, err := client.Lists.FetchDate(ctx, from, edinet.ListFull)
		if err != nil {
			log.Fatalf("list fetch failed: %v", err)
		}
		emit(result)
		return
	}
	result, err := client.Lists.FetchRange(ctx, from, to, edinet.ListFull)
	if err != nil && result == nil {
		log.Fatalf("list fetch failed: %v", err)
	}
	emit(result)
}

func emit(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Fatalf("failed to encode output: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: edinetctl [flags] doc <docID> | list <date> [<end-date>]")
	flag.PrintDefaults()
	os.Exit(2)
}
