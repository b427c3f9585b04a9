package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/pantry/internal/bus"
	"github.com/felixgeelhaar/pantry/internal/config"
	"github.com/felixgeelhaar/pantry/internal/session"
)

// itemFlags collects repeated --item flags
type itemFlags []string

func (f *itemFlags) String() string { return strings.Join(*f, ", ") }

func (f *itemFlags) Set(value string) error {
	*f = append(*f, value)
	return nil
}

// cmdSimulate publishes a synthetic fridge session, standing in for
// the real device when testing the pipeline end to end.
func cmdSimulate(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	var items itemFlags
	fs.Var(&items, "item", `item spec "[Nx ]name[:direction]", repeatable (e.g. "milk", "2x eggs:out")`)
	heartbeat := fs.Bool("heartbeat", false, "also publish a device heartbeat")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if len(items) == 0 && !*heartbeat {
		return fmt.Errorf("nothing to publish: pass --item and/or --heartbeat")
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	conn, err := bus.NewConnection(cfg.Broker.URL)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer conn.Close()

	producer := bus.NewProducer(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if *heartbeat {
		if err := producer.PublishHeartbeat(ctx, "simulator"); err != nil {
			return err
		}
		fmt.Println("✓ Published heartbeat")
	}

	if len(items) > 0 {
		fridgeItems := make([]session.FridgeItem, 0, len(items))
		for _, spec := range items {
			item, err := parseItemSpec(spec)
			if err != nil {
				return err
			}
			fridgeItems = append(fridgeItems, item)
		}

		fSession := &session.FridgeSession{Items: fridgeItems}
		if err := producer.PublishSession(ctx, fSession); err != nil {
			return err
		}
		fmt.Printf("✓ Published session %s with %d item(s)\n", fSession.SessionID, len(fridgeItems))
	}

	return nil
}

// parseItemSpec parses "[Nx ]name[:direction]" into a fridge item.
func parseItemSpec(spec string) (session.FridgeItem, error) {
	item := session.FridgeItem{
		Direction:  session.DirectionIn,
		Confidence: 1.0,
		Quantity:   1,
	}

	name := strings.TrimSpace(spec)

	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		switch dir := strings.TrimSpace(name[idx+1:]); dir {
		case "in":
			item.Direction = session.DirectionIn
		case "out":
			item.Direction = session.DirectionOut
		default:
			return item, fmt.Errorf("invalid direction %q in %q (want in or out)", dir, spec)
		}
		name = strings.TrimSpace(name[:idx])
	}

	if fields := strings.SplitN(name, " ", 2); len(fields) == 2 && strings.HasSuffix(fields[0], "x") {
		if n, err := strconv.Atoi(strings.TrimSuffix(fields[0], "x")); err == nil && n > 0 {
			item.Quantity = n
			name = strings.TrimSpace(fields[1])
		}
	}

	if name == "" {
		return item, fmt.Errorf("empty item name in %q", spec)
	}
	item.Name = name
	return item, nil
}
