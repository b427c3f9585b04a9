package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	daemonAddr = "http://127.0.0.1:7433"
	pidFile    = "pantryd.pid"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "reconnect":
		err = cmdReconnect()
	case "sessions":
		err = cmdSessions(os.Args[2:])
	case "approve":
		err = cmdApprove(os.Args[2:])
	case "reject":
		err = cmdReject(os.Args[2:])
	case "clear":
		err = cmdClear(os.Args[2:])
	case "ingredients":
		err = cmdIngredients(os.Args[2:])
	case "categories":
		err = cmdCategories(os.Args[2:])
	case "simulate":
		err = cmdSimulate(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("pantry %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Pantry - Fridge session review and kitchen inventory

Usage:
  pantry <command> [arguments]

Daemon Commands:
  start            Start the pantry daemon
  stop             Stop the pantry daemon
  status           Show daemon, broker, and device status
  logs             View daemon logs
  reconnect        Force a message-broker reconnect

Session Commands:
  sessions         List fridge sessions (--status pending|approved|rejected)
  approve <id>     Approve a session and reconcile the inventory
  reject <id>      Reject a session
  clear <status>   Remove all sessions with the given status

Inventory Commands:
  ingredients      List ingredients (--expiring-within N)
  categories       List categories; 'categories add <name>' adds one

Testing Commands:
  simulate         Publish a synthetic fridge session to the broker

Other:
  help             Show this help message
  version          Show version information

Examples:
  pantry start                       # Start daemon
  pantry sessions --status pending   # Sessions awaiting review
  pantry approve 4f2c...             # Approve a session
  pantry ingredients --expiring-within 3
  pantry simulate --item milk --item "2x eggs:out"`)
}
