package main

import (
	"flag"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Mr-H-E/Monorite/config"
	"github.com/Mr-H-E/Monorite/core/state"
	"github.com/Mr-H-E/Monorite/native/exchange"
	"github.com/Mr-H-E/Monorite/native/token"
	"github.com/Mr-H-E/Monorite/observability/logging"
	"github.com/Mr-H-E/Monorite/observability/metrics"
	"github.com/Mr-H-E/Monorite/rpc"
	"github.com/Mr-H-E/Monorite/storage"
)

func main() {
	configPath := flag.String("config", "monorite.toml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.Setup("monorited", cfg.Environment)

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "exchange"))
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	stateDB := state.NewStateDB(db)
	ledger, capability := token.NewLedger(stateDB)

	engine := exchange.NewEngine()
	engine.SetState(stateDB)
	engine.SetLedger(ledger)
	engine.SetCapability(capability)
	engine.SetSender(exchange.NewStateSender(stateDB))
	engine.SetMetrics(metrics.Exchange())
	engine.SetChainID(cfg.ChainID)

	initialized, err := engine.Initialized()
	if err != nil {
		logger.Error("inspect state", "err", err)
		os.Exit(1)
	}
	if !initialized {
		err := engine.InitGenesis(
			config.BigField(cfg.InitialRate),
			config.BigField(cfg.InitialIncrement),
			config.BigField(cfg.GenesisNative),
			config.BigField(cfg.GenesisTokens),
		)
		if err != nil {
			logger.Error("genesis", "err", err)
			os.Exit(1)
		}
		if err := stateDB.Commit(); err != nil {
			logger.Error("commit genesis", "err", err)
			os.Exit(1)
		}
		logger.Info("genesis state written",
			"rate", cfg.InitialRate,
			"increment", cfg.InitialIncrement,
			"poolTokens", cfg.GenesisTokens,
		)
	}

	server := rpc.NewServer(engine, ledger, stateDB, logger)
	logger.Info("monorited listening", "address", cfg.ListenAddress, "chainId", cfg.ChainID)
	if err := http.ListenAndServe(cfg.ListenAddress, server.Handler()); err != nil {
		logger.Error("http server", "err", err)
		os.Exit(1)
	}
}
