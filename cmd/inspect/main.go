// Command inspect fetches the datasets once and prints the ranked protocols or
// pools, for checking scores without running the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rewired-gh/curator/internal/config"
	"github.com/rewired-gh/curator/internal/curator"
	"github.com/rewired-gh/curator/internal/datasource"
	"github.com/rewired-gh/curator/internal/defillama"
	"github.com/rewired-gh/curator/internal/logger"
	"github.com/rewired-gh/curator/internal/storage"
)

var (
	configPath = flag.String("config", "", "Path to configuration file")
	kind       = flag.String("kind", "pools", "What to rank: protocols or pools")
	tokens     = flag.String("tokens", "", "Comma separated token filters for pools, e.g. usdc,eth")
	limit      = flag.Int("limit", 20, "Maximum rows to print (0 for all)")
	offline    = flag.Bool("offline", false, "Use the built-in default datasets instead of DefiLlama")
	asJSON     = flag.Bool("json", false, "Print JSON instead of a table")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.Logging.Level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DefiLlama.Timeout*2)
	defer cancel()

	ds, err := resolve(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to resolve datasets: %v", err)
	}
	fmt.Fprintf(os.Stderr, "datasets: %d protocols, %d pools (origin: %s)\n", len(ds.Protocols), len(ds.Pools), ds.Origin)

	engine := curator.New(curator.WithObserver(logger.Observer{Operation: "inspect"}))

	switch strings.ToLower(*kind) {
	case "protocols":
		scored, err := engine.ScoreProtocols(ds.Protocols, ds.Pools)
		if err != nil {
			log.Fatalf("Failed to score protocols: %v", err)
		}
		scored = curator.Paginate(scored, *limit)
		if *asJSON {
			printJSON(scored)
			return
		}
		printProtocols(os.Stdout, scored)

	case "pools":
		scored, summary, err := engine.ScorePools(ds.Protocols, ds.Pools, curator.ParseTokenFilters(*tokens), *limit)
		if err != nil {
			log.Fatalf("Failed to score pools: %v", err)
		}
		if *asJSON {
			printJSON(map[string]interface{}{"data": scored, "summary": summary})
			return
		}
		printPools(os.Stdout, scored)
		printSummary(os.Stdout, summary)

	default:
		log.Fatalf("Unknown -kind %q (want protocols or pools)", *kind)
	}
}

func resolve(ctx context.Context, cfg *config.Config) (datasource.Datasets, error) {
	if *offline {
		return datasource.New(nil, datasource.WithDefaults(datasource.StaticDefaults{})).Datasets(ctx)
	}

	client := defillama.NewClient(
		cfg.DefiLlama.ProtocolsURL,
		cfg.DefiLlama.PoolsURL,
		cfg.DefiLlama.Timeout,
		defillama.ClientConfig{
			MaxRetries:     cfg.DefiLlama.MaxRetries,
			RetryDelayBase: cfg.DefiLlama.RetryDelayBase,
		},
	)

	var opts []datasource.Option
	if cfg.Storage.Enabled {
		opts = append(opts, datasource.WithSnapshotStore(
			storage.New(cfg.Storage.FilePath, cfg.Storage.FilePermissions, cfg.Storage.DirPermissions)))
	}
	if cfg.Scoring.FallbackToDefaults {
		opts = append(opts, datasource.WithDefaults(datasource.StaticDefaults{}))
	}
	return datasource.New(client, opts...).Datasets(ctx)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}
