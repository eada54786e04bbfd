package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"imagededup/config"
	"imagededup/console"
	"imagededup/dedupe"
	"imagededup/imageprocessor"
	"imagededup/journal"
	"imagededup/logging"
	"imagededup/signalhandler"
	"imagededup/utils"
)

func main() {
	// Set up proper signal handling
	signalhandler.SetupHandler()

	// Set the optimal number of CPUs to use
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	// Parse command line arguments into a map
	args := utils.ParseArguments()

	command, hasCommand := args["command"]

	// Setup debug logging if enabled
	if _, ok := args["debug"]; ok {
		logPath := "imagededup.log"
		if customLogPath, ok := args["logfile"]; ok && customLogPath != "" {
			logPath = customLogPath
		}
		if err := logging.SetupLogger(logPath); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		} else {
			fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
		}
	}
	defer logging.CloseLogger()

	// Every command needs the dataset folder
	if !hasCommand || args["folder"] == "" {
		utils.PrintUsage()
		os.Exit(1)
	}

	switch command {
	case "dedupe":
		handleDedupeCommand(args, false)
	case "report":
		handleDedupeCommand(args, true)
	case "undo":
		handleUndoCommand(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		utils.PrintUsage()
		os.Exit(1)
	}
}

// validateFolder checks the dataset folder exists and is a directory
func validateFolder(folderPath string) {
	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatalf("Folder path does not exist: %s", folderPath)
		} else {
			log.Fatalf("Cannot access folder path: %s (%v)", folderPath, err)
		}
	}
	if !folderInfo.IsDir() {
		log.Fatalf("Path is not a directory: %s", folderPath)
	}
}

// loadConfig reads the optional YAML config and applies flag overrides
func loadConfig(args map[string]string) config.Config {
	cfg, err := config.Load(args["config"])
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	if workersStr, ok := args["workers"]; ok {
		workers, err := utils.ParseWorkers(workersStr)
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		} else {
			cfg.Workers = workers
		}
	}

	return cfg
}

func handleDedupeCommand(args map[string]string, dryRun bool) {
	folderPath := args["folder"]
	validateFolder(folderPath)

	cfg := loadConfig(args)

	_, yoloMode := args["yolo"]
	interactive := !yoloMode && !dryRun && console.IsInteractive()

	modeStr := "[INTERACTIVE]"
	switch {
	case dryRun:
		modeStr = "[REPORT ONLY]"
	case !interactive:
		modeStr = "[YOLO MODE]"
	}
	fmt.Printf("\nDuplicate Detection %s\n", modeStr)
	fmt.Printf("Directory: %s\n", folderPath)

	presenter := console.NewPresenter(os.Stdout)

	// The journal makes every applied move reversible via the undo command
	var jnl *journal.Journal
	if !dryRun {
		var err error
		jnl, err = journal.Open(filepath.Join(folderPath, cfg.QuarantineDir))
		if err != nil {
			fmt.Printf("Warning: relocation journal unavailable, undo will not work: %v\n", err)
		} else {
			defer jnl.Close()
		}
	}

	// EXIF richness serves as the external content signal when exiftool
	// is installed; without it the scorer uses intrinsic metrics only
	var signal dedupe.SignalFunc
	if probe, err := imageprocessor.NewExifProbe(); err == nil {
		defer probe.Close()
		signal = probe.Signal
	} else {
		logging.LogInfo("exiftool unavailable, scoring without content signal: %v", err)
	}

	opts := dedupe.Options{
		Directory:  folderPath,
		Config:     cfg,
		Unattended: !interactive,
		DryRun:     dryRun,
		Events:     presenter,
		Signal:     signal,
		Progress:   presenter.Progress("Hashing"),
		Journal:    jnl,
	}
	if interactive {
		opts.Decide = presenter.PromptDecision
	}

	startTime := time.Now()
	summary, err := dedupe.Run(opts)
	if err != nil {
		log.Fatalf("Error running deduplication: %v", err)
	}

	presenter.PrintSummary(summary)
	fmt.Printf("Total execution time: %v\n", time.Since(startTime).Round(time.Millisecond))
	if !dryRun && summary.Moved > 0 {
		fmt.Printf("Quarantine: %s\n", filepath.Join(folderPath, cfg.QuarantineDir))
		fmt.Printf("Undo with:  %s undo --folder=%s --session=%s\n", os.Args[0], folderPath, summary.SessionID)
	}
}

func handleUndoCommand(args map[string]string) {
	folderPath := args["folder"]
	validateFolder(folderPath)

	cfg := loadConfig(args)

	jnl, err := journal.Open(filepath.Join(folderPath, cfg.QuarantineDir))
	if err != nil {
		log.Fatalf("Error opening relocation journal: %v", err)
	}
	defer jnl.Close()

	sessionID := args["session"]
	if sessionID == "" {
		sessionID, err = jnl.LastSession()
		if err != nil {
			log.Fatalf("Error finding session to undo: %v", err)
		}
	}

	fmt.Printf("Restoring session %s...\n", sessionID)

	restored, err := jnl.Revert(sessionID, func(m journal.Move, err error) {
		fmt.Printf("  cannot restore %s: %v\n", m.Destination, err)
	})
	if err != nil {
		log.Fatalf("Error restoring session: %v", err)
	}

	fmt.Printf("Restored %d file(s) to %s\n", restored, folderPath)
}
