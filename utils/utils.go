package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Commands recognized on the command line
var knownCommands = []string{"dedupe", "report", "undo"}

// ParseArguments converts command-line arguments into a map of flags and values
func ParseArguments() map[string]string {
	args := make(map[string]string)

	// First, identify the command
	command := ""
	commandIndex := -1
	for i := 1; i < len(os.Args); i++ {
		for _, known := range knownCommands {
			if os.Args[i] == known {
				command = os.Args[i]
				commandIndex = i
				break
			}
		}
		if command != "" {
			break
		}
	}

	if command != "" {
		args["command"] = command
	}

	// Process all arguments, skipping the command
	for i := 1; i < len(os.Args); i++ {
		if i == commandIndex {
			continue
		}

		arg := os.Args[i]

		// Handle flags with equals sign (--key=value)
		if strings.HasPrefix(arg, "--") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			flagName := strings.TrimPrefix(parts[0], "--")
			args[flagName] = parts[1]
			continue
		}

		// Handle flags without equals sign (--key value)
		if strings.HasPrefix(arg, "--") {
			flagName := strings.TrimPrefix(arg, "--")

			// Check if this is a boolean flag (no value)
			if i+1 >= len(os.Args) || strings.HasPrefix(os.Args[i+1], "--") {
				args[flagName] = "true"
			} else {
				// The next argument is the value
				args[flagName] = os.Args[i+1]
				i++ // Skip the value in the next iteration
			}
		}
	}

	return args
}

// PrintUsage outputs the command-line usage instructions
func PrintUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s dedupe --folder=PATH [--yolo] [--config=PATH] [--workers=N] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s report --folder=PATH [--config=PATH] [--workers=N] [--debug] [--logfile=PATH]\n", os.Args[0])
	fmt.Printf("  %s undo   --folder=PATH [--session=ID]\n", os.Args[0])
	fmt.Printf("\nCommands:\n")
	fmt.Printf("  dedupe        : Find duplicate images and move them to the quarantine folder\n")
	fmt.Printf("  report        : Detect and plan only; never moves any file\n")
	fmt.Printf("  undo          : Restore the moves of a past session from the journal\n")
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  --folder      : Path to the dataset folder containing images\n")
	fmt.Printf("  --yolo        : Apply every recommendation without prompting\n")
	fmt.Printf("  --config      : Path to a YAML config with per-layer thresholds\n")
	fmt.Printf("  --workers     : Hashing worker count (default: CPU-based)\n")
	fmt.Printf("  --session     : Session ID to undo (default: most recent)\n")
	fmt.Printf("  --debug       : Enable debug mode (logs detailed information)\n")
	fmt.Printf("  --logfile     : Specify custom log file path (default: imagededup.log)\n")
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  %s dedupe --folder=/data/train_images --yolo\n", os.Args[0])
	fmt.Printf("  %s report --folder=/data/train_images --config=dedupe.yaml\n", os.Args[0])
	fmt.Printf("  %s undo --folder=/data/train_images\n", os.Args[0])
}

// ParseWorkers parses and validates the worker count flag
func ParseWorkers(workersStr string) (int, error) {
	workers, err := strconv.Atoi(workersStr)
	if err != nil || workers < 1 {
		return 0, fmt.Errorf("invalid worker count '%s', using default", workersStr)
	}
	return workers, nil
}
