package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"regliq/internal/app"
	"regliq/pkg/contracts"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (defaults to REGLIQ_CONFIG_FILE or ./config.yaml)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetVersionString())
		return
	}

	application, err := app.NewApplication(*configPath)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
