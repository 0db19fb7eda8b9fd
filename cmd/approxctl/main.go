// Command approxctl drives an approximate-query controller run, starts a
// worker agent, or prints a config file, in the same flag-based
// subcommand-dispatch shape the teacher used for its own CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/thsslxf/hadoop-ev/pkg/agent"
	"github.com/thsslxf/hadoop-ev/pkg/catalog"
	"github.com/thsslxf/hadoop-ev/pkg/cluster"
	"github.com/thsslxf/hadoop-ev/pkg/collector"
	"github.com/thsslxf/hadoop-ev/pkg/config"
	"github.com/thsslxf/hadoop-ev/pkg/controller"
	"github.com/thsslxf/hadoop-ev/pkg/jobrt"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(os.Args[2:])
	case "agent":
		err = cmdAgent(os.Args[2:])
	case "report":
		err = cmdReport(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "approxctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: approxctl <run|agent|report> [flags]")
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file (defaults applied for anything unset)")
	root := fs.String("root", "", "directory to catalog into strata by walking it")
	manifest := fs.String("manifest", "", "tab-separated manifest file, used instead of -root")
	agents := fs.String("agents", "", "comma-separated agent host:port list; empty runs an in-process synthetic simulation")
	seed := fs.Int64("seed", 1, "deterministic RNG seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	cat, err := loadCatalog(*root, *manifest)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))
	coll := collector.New()

	var runtime jobrt.Runtime
	if *agents != "" {
		runtime = cluster.New(strings.Split(*agents, ","))
	} else {
		lr := jobrt.NewLocalRuntime(nil, rng)
		lr.Default = syntheticGenerator()
		runtime = lr
	}

	ctrl, err := controller.New(cfg, cat, runtime, coll, rng)
	if err != nil {
		return fmt.Errorf("starting controller: %w", err)
	}
	if *agents != "" {
		fmt.Printf("agents must be started with -stats %s before this round submits\n", ctrl.StatsAddr())
		if cfg.EvStats.ServerPort == 0 {
			fmt.Println("warning: evstats.serverport is unset, so this address is only known now; set it in the config to start agents ahead of the controller")
		}
	}

	res, err := ctrl.Run(context.Background())
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Printf("estimate: %.6f ± %.6f (95%% confidence)\n", res.PointEstimate, res.MarginOfError)
	return nil
}

func cmdAgent(args []string) error {
	fs := flag.NewFlagSet("agent", flag.ExitOnError)
	port := fs.Int("port", 9090, "port this agent listens on")
	statsAddr := fs.String("stats", "", "controller evstats server address (host:port)")
	seed := fs.Int64("seed", 1, "deterministic RNG seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *statsAddr == "" {
		return fmt.Errorf("-stats is required: the address of the controller's evstats server")
	}

	rng := rand.New(rand.NewSource(*seed))
	srv := agent.NewServer(nil, rng, *statsAddr, syntheticGenerator())
	return srv.ListenAndServe(*port)
}

func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	out := fs.String("out", "", "write the effective config (with defaults filled in) to this path instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if *out != "" {
		return config.Save(*out, cfg)
	}
	fmt.Printf("%+v\n", cfg)
	return nil
}

func loadCatalog(root, manifest string) (*catalog.Catalog, error) {
	switch {
	case manifest != "":
		cat, err := catalog.LoadManifest(manifest)
		if err != nil {
			return nil, fmt.Errorf("loading manifest: %w", err)
		}
		return cat, nil
	case root != "":
		cat, err := catalog.Build(root)
		if err != nil {
			return nil, fmt.Errorf("building catalog: %w", err)
		}
		return cat, nil
	default:
		return nil, fmt.Errorf("must specify -root or -manifest")
	}
}

// syntheticGenerator produces a plausible (reduced value, processing
// time) pair with no domain knowledge, for -agents-less demonstration
// runs where there is no real cluster to ask.
func syntheticGenerator() jobrt.Generator {
	return func(rng *rand.Rand) (value float64, timeMs float64) {
		return rng.Float64() * 100, 5 + rng.Float64()*20
	}
}

