package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeanpaul/favourites/internal/config"
	"github.com/jeanpaul/favourites/internal/contact"
	"github.com/jeanpaul/favourites/internal/enrich"
	"github.com/jeanpaul/favourites/internal/store"
	"github.com/jeanpaul/favourites/internal/tui"
)

func cmdDoctor(ctx context.Context, cfg *config.Config) {
	fmt.Println(tui.TitleStyle.Render("  favourites health check"))
	fmt.Println()
	problems := 0

	check := func(label string) {
		fmt.Printf("  %s %s ... ", tui.HelpStyle.Render("●"), tui.DialogTitleStyle.Render(label))
	}
	ok := func(s string) { fmt.Println(tui.StatusStyle.Render("✓ " + s)) }
	bad := func(s string) {
		problems++
		fmt.Println(tui.ErrorStyle.Render("✗ " + s))
	}

	check("config")
	configPath := filepath.Join(config.Dir(), "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		ok(configPath)
	} else {
		fmt.Println(tui.HelpStyle.Render("- Using defaults (create " + configPath + " to customize)"))
	}

	check("storage")
	if n, err := probeStorage(ctx, cfg.Storage); err != nil {
		bad(err.Error())
	} else {
		ok(fmt.Sprintf("%s at %s (%d favourites)", cfg.Storage.Backend, cfg.Storage.Path, n))
	}

	check("contacts")
	if list, err := newContactSource(cfg.Contacts).ListContacts(ctx); err != nil {
		bad(describeContacts(err))
	} else {
		ok(fmt.Sprintf("%d contacts", len(list)))
	}

	check("gender lookup")
	status := enrich.Check(ctx, cfg.Enrichment.BaseURL, cfg.Enrichment.APIKey)
	if status.Reachable {
		ok(fmt.Sprintf("%s %s", status.BaseURL, status.Latency.Round(time.Millisecond)))
	} else {
		// favourites are still saved, just with an unknown gender
		fmt.Println(tui.HelpStyle.Render("- " + status.Error + " (optional)"))
	}

	fmt.Println()
	if problems == 0 {
		fmt.Println(tui.StatusStyle.Render("  All good!"))
		return
	}
	fmt.Println(tui.ErrorStyle.Render(fmt.Sprintf("  %d problem(s) found.", problems)))
	os.Exit(1)
}

// probeStorage reads the persisted blob without starting a store and
// returns how many favourites it holds.
func probeStorage(ctx context.Context, cfg config.StorageConfig) (int, error) {
	adapter, closeAdapter, err := openAdapter(cfg)
	if err != nil {
		return 0, err
	}
	defer closeAdapter()

	blob, found, err := adapter.Read(ctx, cfg.Key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	list, err := store.Decode(blob)
	if err != nil {
		return 0, fmt.Errorf("stored favourites are unreadable: %w", err)
	}
	return len(list), nil
}

func describeContacts(err error) string {
	if errors.Is(err, contact.ErrPermissionDenied) {
		return "access denied"
	}
	return err.Error()
}
