package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/HerbHall/welfaredesk/internal/attachments"
	"github.com/HerbHall/welfaredesk/internal/catalog"
	"github.com/HerbHall/welfaredesk/internal/emulator"
	"github.com/HerbHall/welfaredesk/internal/endpoint"
	"github.com/HerbHall/welfaredesk/internal/store"
	"github.com/HerbHall/welfaredesk/internal/table"
	"github.com/HerbHall/welfaredesk/pkg/models"
)

func openCatalog() (*catalog.Source, error) {
	src, err := catalog.NewSource(cfg.GetString("catalog.path"), logger.Named("catalog"))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return src, nil
}

func newClient(baseURL string, obs endpoint.Observer) (*endpoint.Client, error) {
	opts := []endpoint.Option{endpoint.WithTimeout(cfg.GetDuration("endpoint.timeout"))}
	if obs != nil {
		opts = append(opts, endpoint.WithObserver(obs))
	}
	return endpoint.NewClient(baseURL, logger.Named("endpoint"), opts...)
}

func tableConfig(obs table.FilterObserver) table.Config {
	return table.Config{
		RowsPerPage:     cfg.GetInt("table.rows_per_page"),
		SearchDebounce:  cfg.GetDuration("table.search_debounce"),
		FilterDelay:     cfg.GetDuration("table.filter_delay"),
		FilterThreshold: cfg.GetInt("table.filter_threshold"),
		Observer:        obs,
	}
}

// openEmulator opens the emulator database and seeds it when emulator.seed
// names a file. The caller closes the returned store.
func openEmulator(ctx context.Context, src *catalog.Source, files attachments.Store) (*emulator.Emulator, *store.SQLiteStore, error) {
	db, err := store.New(cfg.GetString("emulator.db_path"))
	if err != nil {
		return nil, nil, fmt.Errorf("open emulator database: %w", err)
	}
	emu, err := emulator.New(ctx, db, src, files, logger.Named("emulator"),
		emulator.WithLatency(cfg.GetDuration("emulator.latency")),
	)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if path := cfg.GetString("emulator.seed"); path != "" {
		if err := seedFromFile(ctx, emu, path); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return emu, db, nil
}

// seedFromFile loads a YAML document mapping entity names to record lists.
func seedFromFile(ctx context.Context, emu *emulator.Emulator, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed map[string][]models.Record
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file %s: %w", path, err)
	}
	for entity, recs := range seed {
		if err := emu.Seed(ctx, entity, recs); err != nil {
			return fmt.Errorf("seed %s: %w", entity, err)
		}
		logger.Info("seeded records", zap.String("entity", entity), zap.Int("count", len(recs)))
	}
	return nil
}
