// geotrie server
// Serves proximity queries over a hierarchical-token point index
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nainya/geotrie/internal/config"
	"github.com/nainya/geotrie/internal/logger"
	"github.com/nainya/geotrie/internal/metrics"
	"github.com/nainya/geotrie/internal/server"
	"github.com/nainya/geotrie/pkg/dataset"
	"github.com/nainya/geotrie/pkg/grid"
	"github.com/nainya/geotrie/pkg/grid/geohashgrid"
	"github.com/nainya/geotrie/pkg/grid/s2grid"
	"github.com/nainya/geotrie/pkg/query"
)

var configPath = flag.String("config", "", "Path to YAML config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.GetGlobalLogger().Fatal("Invalid configuration").Err(err).Send()
	}

	logger.InitGlobalLogger(logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})
	log := logger.GetGlobalLogger()

	sys := newGridSystem(cfg.Grid.System)
	log.LogServerStart(cfg.Server.HTTPAddr, sys.Name())

	var opts []query.Option[dataset.Point]
	if cfg.Grid.IndexLevel > 0 {
		opts = append(opts, query.WithIndexLevel[dataset.Point](cfg.Grid.IndexLevel))
	}
	engine := query.NewEngine[dataset.Point](sys, opts...)

	m := metrics.NewMetrics()
	var ready atomic.Bool

	if cfg.Dataset.Path != "" {
		start := time.Now()
		points, err := dataset.LoadGeoJSONFile(cfg.Dataset.Path)
		if err != nil {
			log.Fatal("Failed to load dataset").Err(err).Send()
		}
		log.LogDatasetLoad(cfg.Dataset.Path, len(points), time.Since(start))

		buildStart := time.Now()
		indexed := 0
		for _, p := range points {
			if err := engine.IndexAt(p.Lat, p.Lng, p); err != nil {
				log.Warn("Skipping point").Str("id", p.ID).Err(err).Send()
				continue
			}
			indexed++
		}
		log.LogIndexBuild(sys.Name(), engine.IndexLevel(), indexed, time.Since(buildStart))
	}

	st := engine.Stats()
	m.UpdateIndexStats(st.Records, st.Tokens, st.Nodes)
	ready.Store(true)

	apiSrv := server.NewServer(cfg.Server.HTTPAddr, engine, log, m)
	apiSrv.SetCoveringDefaults(coveringParams(cfg, sys))

	obsSrv := server.NewObservabilityServer(cfg.Server.MetricsAddr, log, func() bool {
		return ready.Load()
	})

	go func() {
		if err := obsSrv.Start(); err != nil {
			log.Error("Observability server stopped").Err(err).Send()
		}
	}()

	go func() {
		if err := apiSrv.Start(); err != nil {
			log.Fatal("API server stopped").Err(err).Send()
		}
	}()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := apiSrv.Shutdown(ctx); err != nil {
		log.Error("API server shutdown failed").Err(err).Send()
	}
	if err := obsSrv.Shutdown(ctx); err != nil {
		log.Error("Observability server shutdown failed").Err(err).Send()
	}
}

// newGridSystem maps the configured name onto a grid adapter. Config
// validation already rejected anything else.
func newGridSystem(name string) grid.System {
	if name == "geohash" {
		return geohashgrid.New()
	}
	return s2grid.New()
}

// coveringParams merges configured covering bounds over the grid's
// defaults.
func coveringParams(cfg *config.Config, sys grid.System) grid.CoveringParams {
	p := grid.DefaultCoveringParams(sys)
	if cfg.Covering.MinLevel > 0 {
		p.MinLevel = cfg.Covering.MinLevel
	}
	if cfg.Covering.MaxLevel > 0 {
		p.MaxLevel = cfg.Covering.MaxLevel
	}
	if cfg.Covering.MaxCells > 0 {
		p.MaxCells = cfg.Covering.MaxCells
	}
	return p
}
