package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"codeberg.org/mutker/wvasim/internal/errors"
	"codeberg.org/mutker/wvasim/internal/logger"
	"codeberg.org/mutker/wvasim/internal/release"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("makezip", pflag.ContinueOnError)
	root := fs.String("root", ".", "Source tree to package")
	out := fs.String("out", ".", "Directory the archive is written to")
	rulesPath := fs.String("rules", "", "YAML file with ignore rules (defaults built in)")
	productID := fs.String("product", release.DefaultProductID, "Product number prefixing the archive name")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warning, error)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: makezip [flags] <REV_LETTER>\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	rev := fs.Arg(0)

	logger.Init(*logLevel, logger.IsService())

	cfg := release.DefaultConfig()
	cfg.Root = *root
	cfg.OutDir = *out
	cfg.ProductID = *productID
	if *rulesPath != "" {
		rules, err := release.LoadRules(*rulesPath)
		if err != nil {
			logger.Error().Err(err).Str("path", *rulesPath).Msg("failed to load rules")
			return exitError
		}
		cfg.Rules = rules
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	builder := release.NewBuilder(cfg, release.GitVCS{Dir: cfg.Root}, logger.Default())
	res, err := builder.Build(ctx, rev)
	if err != nil {
		if errors.HasCode(err, release.ErrArchiveCollision) {
			logger.Error().Msgf("%s already exists! Remove it first", builder.ArchiveName(rev))
			return exitError
		}
		logger.Error().Err(err).Msg("failed to build archive")
		return exitError
	}

	logger.Info().Msgf("Done. Zipfile can be found at %s", res.Path)
	return exitOK
}
