// Command demoserver serves consent fixture pages for trying the scanner.
// Usage: go run ./cmd/demoserver [port]
// Default port: 9999
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/raysh454/consentscan/internal/demoserver"
	"github.com/raysh454/consentscan/internal/logging"
)

func main() {
	cfg := demoserver.DefaultConfig()

	// Optional: custom port from command line
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	logger, err := logging.New("json", "demoserver")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	fmt.Println("===========================================")
	fmt.Println("   consentscan demo server")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Pages switch between cookie-consent states on the fly:")
	fmt.Println("  /         v1 no banner, v2 Cookiebot, v3 banner without categories")
	fmt.Println("  /shop     OneTrust banner styled from a stylesheet")
	fmt.Println("  /privacy  v1 thin policy, v2 complete policy")
	fmt.Println()

	server := demoserver.NewDemoServer(cfg, logger)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
