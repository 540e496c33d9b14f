package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr       string
	DatabaseURI      string
	JournalDir       string
	FundingTolerance decimal.Decimal
	LegTolerance     decimal.Decimal
	Wizard           bool
}

type configTmp struct {
	ListenAddr          string `yaml:"listen_addr"`
	DatabaseURI         string `yaml:"database_uri"`
	JournalDir          string `yaml:"journal_dir"`
	FundingToleranceStr string `yaml:"funding_tolerance,omitempty"`
	LegToleranceStr     string `yaml:"leg_tolerance,omitempty"`
}

const (
	defaultListenAddr = ":8080"
	defaultJournalDir = "./wal/approvals"
)

func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	wizard := flag.Bool("wizard", false, "run the interactive order entry wizard")
	listen := flag.String("listen", defaultListenAddr, "listen address for the HTTP API")
	dbURI := flag.String("database", os.Getenv("FXDESK_DATABASE_URI"), "postgres connection URI")
	journalDir := flag.String("journaldir", defaultJournalDir, "directory for the approval journal WAL")
	flag.Parse()

	if *configPath != "" {
		cfg, err := getYaml(*configPath)
		if err != nil {
			return Config{}, err
		}
		cfg.Wizard = *wizard
		return cfg, nil
	}

	return Config{
		ListenAddr:       *listen,
		DatabaseURI:      *dbURI,
		JournalDir:       *journalDir,
		FundingTolerance: decimal.NewFromFloat(0.50),
		LegTolerance:     decimal.NewFromFloat(0.01),
		Wizard:           *wizard,
	}, nil
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:  tmp.ListenAddr,
		DatabaseURI: tmp.DatabaseURI,
		JournalDir:  tmp.JournalDir,
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.JournalDir == "" {
		cfg.JournalDir = defaultJournalDir
	}

	cfg.FundingTolerance, err = parseTolerance(tmp.FundingToleranceStr, decimal.NewFromFloat(0.50))
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'funding_tolerance' param in yaml config: %w", err)
	}
	cfg.LegTolerance, err = parseTolerance(tmp.LegToleranceStr, decimal.NewFromFloat(0.01))
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'leg_tolerance' param in yaml config: %w", err)
	}

	return cfg, nil
}

func parseTolerance(raw string, def decimal.Decimal) (decimal.Decimal, error) {
	if raw == "" {
		return def, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if v.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("tolerance must not be negative, got %s", v)
	}
	return v, nil
}
