package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/pantry/internal/inventory"
)

// cmdIngredients lists the inventory
func cmdIngredients(args []string) error {
	fs := flag.NewFlagSet("ingredients", flag.ExitOnError)
	expiringWithin := fs.Int("expiring-within", -1, "only show ingredients expiring within N days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := "/v1/ingredients"
	if *expiringWithin >= 0 {
		path = fmt.Sprintf("%s?expiring_within=%d", path, *expiringWithin)
	}

	var resp struct {
		Ingredients []inventory.Ingredient `json:"ingredients"`
		Count       int                    `json:"count"`
	}
	if err := getJSON(path, &resp); err != nil {
		return fmt.Errorf("list ingredients: %w", err)
	}

	if resp.Count == 0 {
		fmt.Println("No ingredients.")
		return nil
	}

	for _, ing := range resp.Ingredients {
		line := fmt.Sprintf("%-24s x%-4s %-12s", ing.Name, ing.Quantity, ing.Category)
		if ing.ExpiryDate != "" {
			line += "  expires " + ing.ExpiryDate
		}
		fmt.Println(line)
	}
	fmt.Printf("\n%d ingredient(s)\n", resp.Count)
	return nil
}

// cmdCategories lists or adds categories
func cmdCategories(args []string) error {
	if len(args) > 0 && args[0] == "add" {
		if len(args) < 2 {
			return fmt.Errorf("usage: pantry categories add <name>")
		}
		return addCategory(strings.Join(args[1:], " "))
	}

	var resp struct {
		Categories []string `json:"categories"`
	}
	if err := getJSON("/v1/categories", &resp); err != nil {
		return fmt.Errorf("list categories: %w", err)
	}

	for _, c := range resp.Categories {
		fmt.Println(c)
	}
	return nil
}

func addCategory(name string) error {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}

	resp, err := http.Post(daemonAddr+"/v1/categories", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("add category: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return daemonError(resp)
	}

	fmt.Printf("✓ Added category %q\n", name)
	return nil
}
