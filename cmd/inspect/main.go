// Command inspect prints the records of one collection of the relay store as a table.
//
//	inspect -db ./data/badger -collection messages -where conversation_id=<uuid>
package main

import (
	"chat-relay/contract"
	"chat-relay/storage"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Sprintf("inspect: %v", err))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("inspect", flag.ContinueOnError)
	driver := flags.String("driver", storage.DriverBadger, "Storage driver (badger|sqlite)")
	dbPath := flags.String("db", "./data/badger", "Path to the badger directory or the sqlite file")
	collection := flags.String("collection", "messages", "Collection to list")
	where := flags.String("where", "", "Optional field=value equality filter")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var filters []contract.Filter
	if *where != "" {
		field, value, ok := strings.Cut(*where, "=")
		if !ok {
			return fmt.Errorf("-where must be field=value, got %q", *where)
		}
		filters = append(filters, contract.Eq(strings.TrimSpace(field), strings.TrimSpace(value)))
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway, closer, err := openGateway(*driver, *dbPath, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	records, err := gateway.Query(context.Background(), *collection, filters...)
	if err != nil {
		return err
	}
	render(out, *collection, records)
	return nil
}

func openGateway(driver, path string, log *slog.Logger) (contract.Gateway, io.Closer, error) {
	if driver != storage.DriverBadger {
		return storage.Open(driver, "", path, log)
	}
	db, err := badger.Open(badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true))
	if err != nil {
		return nil, nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return storage.NewBadgerGateway(db, log), db, nil
}

// columns lists id and created_at first, then every other field in name order.
func columns(records []contract.Record) []string {
	seen := map[string]struct{}{storage.FieldID: {}, storage.FieldCreatedAt: {}}
	var rest []string
	for _, record := range records {
		for field := range record {
			if _, ok := seen[field]; !ok {
				seen[field] = struct{}{}
				rest = append(rest, field)
			}
		}
	}
	slices.Sort(rest)
	return append([]string{storage.FieldID, storage.FieldCreatedAt}, rest...)
}

func render(out io.Writer, collection string, records []contract.Record) {
	header := color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf(" %s: %d record(s) ", collection, len(records)))
	fmt.Fprintln(out, header)
	if len(records) == 0 {
		return
	}

	cols := columns(records)
	table := tablewriter.NewWriter(out)
	table.SetHeader(cols)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, record := range records {
		row := make([]string, len(cols))
		for i, col := range cols {
			if v, ok := record[col]; ok {
				row[i] = storage.Text(v)
			}
		}
		table.Append(row)
	}
	table.Render()
}
