package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/ytget/mediaq/internal/config"
	"github.com/ytget/mediaq/internal/engine"
	"github.com/ytget/mediaq/internal/fetch"
	"github.com/ytget/mediaq/internal/locate"
	"github.com/ytget/mediaq/internal/model"
	"github.com/ytget/mediaq/internal/platform"
	"github.com/ytget/mediaq/internal/registry"
	"github.com/ytget/mediaq/internal/resolve"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const (
	appName         = "mediaq"
	renderInterval  = 500 * time.Millisecond
	shutdownMessage = "cancelling, in-flight fetches stop at their next checkpoint..."
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to YAML config file")
	dir := flag.String("dir", "", "destination directory (overrides config)")
	workers := flag.Int("workers", 0, "maximum concurrent fetches (overrides config)")
	quality := flag.String("quality", "", "quality preset: best, medium or audio")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("%s: %v", appName, err)
	}
	if *dir != "" {
		cfg.DownloadDir = *dir
	}
	if *workers > 0 {
		cfg.MaxParallel = *workers
	}
	if *quality != "" {
		cfg.QualityPreset = *quality
	}

	references := collectReferences(flag.Args())
	if len(references) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <reference> [<reference> ...]\n", appName)
		fmt.Fprintln(os.Stderr, "references may also be piped in, one per line")
		os.Exit(2)
	}

	if err := platform.CreateDirectoryIfNotExists(cfg.DownloadDir); err != nil {
		log.Fatalf("%s: ensure download dir: %v", appName, err)
	}

	reg := registry.New()
	resolver := resolve.NewService(reg, engine.NewResolver())
	resolver.SetTimeout(cfg.ResolveTimeout)

	svc := fetch.NewService(
		reg,
		locate.New(engine.ExtractVideoID),
		engine.NewFetcher(cfg.QualityPreset),
		cfg.DownloadDir,
		cfg.MaxParallel,
	)
	svc.SetArchiveName(cfg.ArchiveName)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println()
		color.Yellow(shutdownMessage)
		svc.Cancel()
	}()

	fmt.Printf("%s v%s\n", appName, version)

	ctx := context.Background()
	for _, ref := range references {
		resolver.Submit(ctx, ref)
	}
	resolver.Wait()

	ids := reg.IDs()
	color.Cyan("fetching %d item(s) with %d worker(s) into %s", len(ids), cfg.MaxParallel, cfg.DownloadDir)

	done := make(chan model.BatchSummary, 1)
	go func() {
		done <- svc.RunBatch(ctx, ids)
	}()

	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

	var summary model.BatchSummary
wait:
	for {
		select {
		case summary = <-done:
			break wait
		case <-ticker.C:
			fmt.Printf("\r  total %5.1f%%", reg.GlobalProgress())
		}
	}
	fmt.Printf("\r  total %5.1f%%\n", reg.GlobalProgress())

	printResults(reg)

	if cfg.Notify {
		message := fmt.Sprintf("All fetches finished: %d done, %d skipped, %d cancelled, %d errors",
			summary.Done, summary.Skipped, summary.Cancelled, summary.Errors)
		if err := platform.Notify(appName, message); err != nil {
			log.Printf("%s: notify: %v", appName, err)
		}
	}
	if cfg.AutoReveal {
		revealFirstOutput(reg)
	}

	if summary.Errors > 0 {
		os.Exit(1)
	}
}

// collectReferences takes references from arguments, or from stdin one per
// line when no arguments were given.
func collectReferences(args []string) []string {
	var refs []string
	for _, arg := range args {
		if ref := strings.TrimSpace(arg); ref != "" {
			refs = append(refs, ref)
		}
	}
	if len(refs) > 0 {
		return refs
	}

	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		return nil
	}
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ref := strings.TrimSpace(scanner.Text()); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

func printResults(reg *registry.Registry) {
	for _, item := range reg.Items() {
		label := item.GetDisplayTitle()
		switch item.State {
		case model.StateDone:
			color.Green("  done       %s -> %s", label, item.OutputPath)
		case model.StateSkipped:
			color.Yellow("  skipped    %s (already at %s)", label, item.OutputPath)
		case model.StateCancelled:
			color.Yellow("  cancelled  %s", label)
		case model.StateError:
			color.Red("  error      %s: %s", label, item.ErrorDetail)
		default:
			fmt.Printf("  %-10s %s\n", strings.ToLower(item.State.String()), label)
		}
	}
}

// revealFirstOutput opens the file manager on the first completed output
func revealFirstOutput(reg *registry.Registry) {
	for _, item := range reg.Items() {
		if item.State == model.StateDone && item.OutputPath != "" {
			if err := platform.RevealInManager(item.OutputPath); err != nil {
				log.Printf("%s: reveal: %v", appName, err)
			}
			return
		}
	}
}
