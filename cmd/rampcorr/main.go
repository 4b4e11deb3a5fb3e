package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/hrishikeshrai/PyGdalSAR/pkg/atmocorr"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/config"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "rampcorr.yaml", "YAML configuration file")
	writeConfig := flag.Bool("write-config", false, "Write a default configuration file and exit")
	flatten := flag.Int("flat", -1, "Ramp order 0-6 (default: from config)")
	ivar := flag.Int("ivar", -1, "Elevation terms: 0 elevation only, 1 crossed azimuth/elevation (default: from config)")
	nfit := flag.Int("nfit", -1, "Elevation fit degree: 0 linear, 1 quadratic (default: from config)")
	estim := flag.String("estim", "", "yes: estimate models, no: read the coefficient table (default: from config)")
	tsinv := flag.String("tsinv", "", "yes: invert coefficients over the network (default: from config)")
	numCores := flag.Int("cores", 0, "Number of pairs estimated concurrently (default: from config)")
	plot := flag.Bool("plot", false, "Write PNG quicklooks next to every interferogram")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line flags override the configuration file
	if *flatten >= 0 {
		cfg.Model.Flatten = *flatten
	}
	if *ivar >= 0 {
		cfg.Model.Ivar = *ivar
	}
	if *nfit >= 0 {
		cfg.Model.Nfit = *nfit
	}
	if *estim != "" {
		cfg.Processing.Estimate = yes(*estim)
	}
	if *tsinv != "" {
		cfg.Processing.Invert = yes(*tsinv)
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *plot {
		cfg.Output.Plot = true
	}

	if err := cfg.Validate(); err != nil {
		flag.Usage()
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("RAMP AND ELEVATION CORRECTION OF UNWRAPPED INTERFEROGRAMS")
	fmt.Println("================================")
	fmt.Printf("Model: flatten %d, ivar %d, nfit %d\n", cfg.Model.Flatten, cfg.Model.Ivar, cfg.Model.Nfit)
	fmt.Printf("Estimate: %t, network inversion: %t, cores: %d\n\n",
		cfg.Processing.Estimate, cfg.Processing.Invert, cfg.Processing.NumCores)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	corrector := atmocorr.NewCorrector(&atmocorr.Params{Config: cfg})
	summary, err := corrector.Process(ctx)
	if err != nil {
		log.Fatalf("Correction failed: %v", err)
	}

	fmt.Printf("\nRun %s completed in %.2f seconds\n", summary.RunID, summary.Duration.Seconds())
	fmt.Printf("- Interferograms: %d\n", summary.Pairs)
	fmt.Printf("- Estimated: %d (%d kept the least-squares seed)\n", summary.Estimated, summary.Fallbacks)
	for _, f := range summary.Failures {
		fmt.Printf("  estimation of %s failed: %v\n", f.Pair, f.Err)
	}
	if summary.Field != nil {
		fmt.Printf("- Network inversion: %d failed columns\n", len(summary.FailedColumns))
		for _, s := range summary.FailedColumns {
			fmt.Printf("  %s kept the per-pair values\n", s)
		}
	}
	fmt.Printf("- Corrected: %d\n", summary.Corrected)
	for _, f := range summary.ApplyFailures {
		fmt.Printf("  correction of %s failed: %v\n", f.Pair, f.Err)
	}
}

func yes(s string) bool {
	return s == "yes" || s == "y" || s == "true"
}
