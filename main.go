package main

import (
	"fmt"
	"log"
	"os"
)

const usage = `Usage: shortsbot <command> [flags]

Commands:
  run      Generate one video from the next pending topic (or --topic)
  batch    Generate videos for every topic in a JSON file
  serve    Start the HTTP API with an optional cron schedule
  consume  Run pipeline jobs from the Kafka trigger topic
  seed     Queue unseen feed titles as topics in redis
  setup    Check external tools and services
`

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	commands := map[string]func(args []string) error{
		"run":     runCommand,
		"batch":   batchCommand,
		"serve":   serveCommand,
		"consume": consumeCommand,
		"seed":    seedCommand,
		"setup":   setupCommand,
	}

	name := os.Args[1]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}
	if err := cmd(os.Args[2:]); err != nil {
		log.Printf("❌ %s failed: %v", name, err)
		os.Exit(1)
	}
}
