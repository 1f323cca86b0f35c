package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"property-marketplace/internal/catalog"

	"github.com/spf13/cobra"
)

var listQuery struct {
	city     string
	kind     string
	minPrice int64
	maxPrice int64
	sort     string
	limit    int
	offset   int
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List properties (saved properties while offline)",
	RunE: func(cmd *cobra.Command, args []string) error {
		listing := current.browser.Load(cmd.Context(), buildQuery(cmd))
		printListing(os.Stdout, listing)
		if listing.Failed {
			return fmt.Errorf("failed to load properties")
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a property and record it in the history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := current.browser.OpenProperty(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, view)
	},
}

var saveCmd = &cobra.Command{
	Use:   "save <id>",
	Short: "Save a property for offline viewing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.browser.SaveForOffline(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Saved %s for offline viewing\n", args[0])
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a property from offline storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.browser.RemoveOffline(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s from offline storage\n", args[0])
		return nil
	},
}

var savedCmd = &cobra.Command{
	Use:   "saved",
	Short: "List properties saved for offline viewing",
	RunE: func(cmd *cobra.Command, args []string) error {
		saved, err := current.browser.SavedProperties(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tPRICE\tCITY\tSAVED")
		for _, s := range saved {
			fmt.Fprintf(w, "%s\t%s\t%d %s\t%s\t%s\n", s.PropertyID, s.Title, s.Price, s.Currency, s.City, s.SavedAt.Format(time.DateTime))
		}
		return w.Flush()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently viewed properties",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := current.browser.History(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tPRICE\tVIEWED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.PropertyID, e.Title, e.Price, e.ViewedAt.Format(time.DateTime))
		}
		return w.Flush()
	},
}

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "Compare saved properties with the marketplace",
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, err := current.browser.Staleness(cmd.Context())
		if err != nil {
			return err
		}
		for _, r := range reports {
			if !r.Stale() {
				fmt.Printf("%s  %s: up to date\n", r.PropertyID, r.Title)
				continue
			}
			fmt.Printf("%s  %s: changed since %s\n", r.PropertyID, r.Title, r.SavedAt.Format(time.DateTime))
			for _, c := range r.Changes {
				fmt.Printf("    %s %s -> %s\n", c.ChangeType, c.OldValue, c.NewValue)
			}
		}
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Remove orphaned entries from offline storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := current.mirror.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, result)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "List properties and reload on every connectivity change",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !offline {
			go current.monitor.Run(ctx)
		}
		current.browser.Watch(ctx, buildQuery(cmd), func(l catalog.Listing) {
			fmt.Printf("--- %s (%s)\n", time.Now().Format(time.TimeOnly), l.Source)
			printListing(os.Stdout, l)
		})
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{listCmd, watchCmd} {
		cmd.Flags().StringVar(&listQuery.city, "city", "", "Filter by city")
		cmd.Flags().StringVar(&listQuery.kind, "type", "", "Filter by type (sale or rent)")
		cmd.Flags().Int64Var(&listQuery.minPrice, "min-price", 0, "Minimum price")
		cmd.Flags().Int64Var(&listQuery.maxPrice, "max-price", 0, "Maximum price")
		cmd.Flags().StringVar(&listQuery.sort, "sort", "", "created_at, price_asc, price_desc, area_desc or views_desc")
		cmd.Flags().IntVar(&listQuery.limit, "limit", 20, "Page size")
		cmd.Flags().IntVar(&listQuery.offset, "offset", 0, "Page offset")
	}
}

func buildQuery(cmd *cobra.Command) catalog.Query {
	q := catalog.Query{
		City:   listQuery.city,
		Type:   listQuery.kind,
		SortBy: listQuery.sort,
		Limit:  listQuery.limit,
		Offset: listQuery.offset,
	}
	if cmd.Flags().Changed("min-price") {
		v := listQuery.minPrice
		q.MinPrice = &v
	}
	if cmd.Flags().Changed("max-price") {
		v := listQuery.maxPrice
		q.MaxPrice = &v
	}
	return q
}

func printListing(out io.Writer, l catalog.Listing) {
	if l.Failed {
		fmt.Fprintln(out, "Could not load properties.")
		return
	}
	if len(l.Items) == 0 {
		if l.Source == catalog.SourceOffline {
			fmt.Fprintln(out, "Offline. No saved properties.")
		} else {
			fmt.Fprintln(out, "No properties.")
		}
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPRICE\tCITY\t"+strings.ToUpper(string(l.Source)))
	for _, item := range l.Items {
		note := ""
		if item.SavedAt != nil {
			note = "saved " + item.SavedAt.Format(time.DateOnly)
		}
		fmt.Fprintf(w, "%s\t%s\t%d %s\t%s\t%s\n", item.PropertyID, item.Title, item.Price, item.Currency, item.City, note)
	}
	w.Flush()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
