package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/felixgeelhaar/pantry/internal/session"
)

// cmdSessions lists fridge sessions
func cmdSessions(args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	status := fs.String("status", "", "filter by status (pending, approved, rejected)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := "/v1/sessions"
	if *status != "" {
		path += "?status=" + *status
	}

	var resp struct {
		Sessions []session.EditableSession `json:"sessions"`
		Count    int                       `json:"count"`
	}
	if err := getJSON(path, &resp); err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if resp.Count == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	for _, sess := range resp.Sessions {
		ts := time.UnixMilli(sess.Timestamp).Format("2006-01-02 15:04")
		fmt.Printf("%s  [%s]  %s  %d item(s)\n", sess.SessionID, sess.Status, ts, len(sess.Items))
		for i, item := range sess.Items {
			arrow := "+"
			if item.Direction == session.DirectionOut {
				arrow = "-"
			}
			fmt.Printf("  %d: %s%d %s", i, arrow, item.Quantity, item.Name)
			if item.Category != "" {
				fmt.Printf("  (%s", item.Category)
				if item.Direction == session.DirectionIn && item.ExpiryDate != "" {
					fmt.Printf(", expires %s", item.ExpiryDate)
				}
				fmt.Print(")")
			}
			fmt.Println()
		}
	}
	return nil
}

// cmdApprove approves a session
func cmdApprove(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pantry approve <session-id>")
	}
	sessionID := args[0]

	resp, err := http.Post(daemonAddr+"/v1/sessions/"+sessionID+"/approve", "application/json", nil)
	if err != nil {
		return fmt.Errorf("approve session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return daemonError(resp)
	}

	var result struct {
		Added   int `json:"added"`
		Removed int `json:"removed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	fmt.Printf("✓ Approved: %d ingredient(s) added, %d unit(s) removed\n", result.Added, result.Removed)
	return nil
}

// cmdReject rejects a session
func cmdReject(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pantry reject <session-id>")
	}
	sessionID := args[0]

	resp, err := http.Post(daemonAddr+"/v1/sessions/"+sessionID+"/reject", "application/json", nil)
	if err != nil {
		return fmt.Errorf("reject session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return daemonError(resp)
	}

	fmt.Println("✓ Session rejected")
	return nil
}

// cmdClear removes all sessions with a given status
func cmdClear(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pantry clear <pending|approved|rejected>")
	}

	body, err := json.Marshal(map[string]string{"status": args[0]})
	if err != nil {
		return err
	}

	resp, err := http.Post(daemonAddr+"/v1/sessions/clear", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return daemonError(resp)
	}

	fmt.Printf("✓ Cleared %s sessions\n", args[0])
	return nil
}

// daemonError turns an error response into a readable message
func daemonError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	data, _ := io.ReadAll(resp.Body)
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		if body.Details != "" {
			return fmt.Errorf("%s: %s", body.Error, body.Details)
		}
		return fmt.Errorf("%s", body.Error)
	}
	return fmt.Errorf("daemon returned %s", resp.Status)
}
