// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
// SPDX-FileCopyrightText: The farm-advisor Authors
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package main implements the farm-advisor service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/farmassist/farm-advisor/internal/advice"
	"github.com/farmassist/farm-advisor/internal/config"
	"github.com/farmassist/farm-advisor/internal/i18n"
	"github.com/farmassist/farm-advisor/internal/logger"
	"github.com/farmassist/farm-advisor/internal/service"
)

const appName = "farm-advisor"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGABRT, os.Interrupt)
	defer cancel()

	// Initialize Logger
	log := logger.New(slog.LevelError)

	confPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	conf, err := loadConfig(*confPath)
	if err != nil {
		log.Error("failed to load config", logger.Err(err))
		os.Exit(1)
	}

	log = logger.New(conf.LogLevel)
	t, err := i18n.New(conf.Locale)
	if err != nil {
		log.Error("failed to initialize localizer", logger.Err(err))
		os.Exit(1)
	}

	// Initialize the service
	serv, err := service.New(conf, log, t)
	if err != nil {
		var confErr *advice.ConfigurationError
		if errors.As(err, &confErr) {
			log.Error("invalid advisor configuration, set advisor.apikey or GEMINI_API_KEY", logger.Err(err))
			os.Exit(2)
		}
		log.Error("failed to initialize farm-advisor service", logger.Err(err))
		os.Exit(1)
	}

	// Start the service loop
	log.Info(t.Get("starting farm-advisor service"), slog.String("version", version),
		slog.String("commit", commit), slog.String("date", date))
	if err = serv.Run(ctx); err != nil {
		log.Error(t.Get("failed to start farm-advisor service"), logger.Err(err))
	}
	stats := serv.Stats()
	log.Info(t.Get("shutting down farm-advisor service"), slog.Uint64("cycles", stats.Cycles),
		slog.Uint64("successes", stats.Successes), slog.Uint64("notifications", stats.Notifications))
}

// loadConfig reads the config from confPath, from the default location or, if neither
// exists, from defaults and the environment.
func loadConfig(confPath string) (*config.Config, error) {
	if confPath != "" {
		return config.NewFromFile(filepath.Dir(confPath), filepath.Base(confPath))
	}
	if path, file := findConfigFile(); path != "" && file != "" {
		return config.NewFromFile(path, file)
	}
	return config.New()
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		path := filepath.Join(homedir, ".config", appName, "config."+ext)
		if _, err = os.Stat(path); err == nil {
			return filepath.Dir(path), filepath.Base(path)
		}
	}
	return "", ""
}
