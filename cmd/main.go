package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"jsstack/internal/config"
	"jsstack/internal/logger"
	"jsstack/internal/runner"
	"jsstack/pkg/color"
)

// Main entry point for the jsstack VM.
func main() {
	options := runner.Runner{}

	flag.BoolVar(&options.Help, "h", false, "Show help")
	flag.BoolVar(&options.Verbose, "v", false, "Verbose mode")
	flag.BoolVar(&options.NoColor, "n", false, "No color")
	flag.BoolVar(&options.Debug, "d", false, "Enable stack fence and trap checks")
	flag.StringVar(&options.ConfigFile, "c", "", "Config file (default ./jsstack.toml if present)")
	flag.StringVar(&options.DumpFile, "dump", "", "Write a CBOR stack dump here on an uncaught exception")
	flag.StringVar(&options.Entry, "e", "", "Entry function (default from config, else main)")

	flag.Parse()
	args := flag.Args()

	logger.Init(options.Verbose, options.NoColor)
	if options.Help {
		fmt.Printf("Usage: %s [options] <file.jss>\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
		return
	}

	if options.NoColor {
		color.EnableColor(false)
	}

	if len(args) == 0 {
		log.Fatal("No input file provided", "help", fmt.Sprintf("%s -h", os.Args[0]))
	}

	options.SourceFile = args[0]

	if options.ConfigFile == "" {
		if path, err := config.Find("jsstack.toml"); err == nil {
			options.ConfigFile = path
		}
	}

	if err := options.Run(); err != nil {
		log.Fatal("Run failed", "error", err)
	}
}
