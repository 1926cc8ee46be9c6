package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/covidanalytics/ventdash/internal/catalog"
	"github.com/covidanalytics/ventdash/internal/query"
	"github.com/covidanalytics/ventdash/internal/scenario"
	"github.com/covidanalytics/ventdash/internal/source/file"
	"github.com/covidanalytics/ventdash/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
		catalogFile := validateCmd.String("catalog", "", "model catalog YAML file (built-in catalog when empty)")
		dataDir := validateCmd.String("data-dir", "", "directory containing the scenario CSV tables")
		validateCmd.Parse(os.Args[2:])
		os.Exit(runValidate(*catalogFile, *dataDir))

	case "transfers", "counterparties":
		queryCmd := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
		dataDir := queryCmd.String("data-dir", "", "directory containing the scenario CSV tables")
		model := queryCmd.String("model", string(scenario.ModelCOVIDAnalytics), "forecasting model id")
		date := queryCmd.String("date", "", "scenario date (YYYY-MM-DD)")
		p1 := queryCmd.String("p1", "", "scenario parameter 1")
		p2 := queryCmd.String("p2", "", "scenario parameter 2")
		p3 := queryCmd.String("p3", "", "scenario parameter 3")
		state := queryCmd.String("state", "", "restrict to one state")
		direction := queryCmd.String("direction", "outgoing", "transfer direction (incoming|outgoing)")
		maxRows := queryCmd.Int("max-rows", 0, "maximum table rows (default 100)")
		queryCmd.Parse(os.Args[2:])

		if *dataDir == "" {
			fmt.Fprintln(os.Stderr, "Error: --data-dir flag is required")
			queryCmd.Usage()
			os.Exit(1)
		}

		sel := query.Selection{
			Model:     *model,
			Date:      *date,
			Params:    [3]string{*p1, *p2, *p3},
			State:     *state,
			Direction: *direction,
		}
		svc := newService(*dataDir, *maxRows)
		if os.Args[1] == "transfers" {
			os.Exit(runTransfers(svc, sel))
		}
		os.Exit(runCounterparties(svc, sel))

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: ventdash <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  validate [--catalog <file>] [--data-dir <path>]   Validate a catalog and its scenario tables")
	fmt.Println("  transfers --data-dir <path> --date <d> --p1 .. --p3   Print the transfer table of a scenario")
	fmt.Println("  counterparties --data-dir <path> --date <d> --p1 .. --p3   Print partner states of a scenario")
	fmt.Println()
}

func newService(dataDir string, maxRows int) *query.Service {
	tables := store.NewStore(file.NewSource(dataDir), "", zap.NewNop())
	return query.NewService(tables, nil, query.Options{MaxRows: maxRows}, zap.NewNop())
}

func runValidate(catalogFile, dataDir string) int {
	cat, err := catalog.Load(catalogFile)
	if err != nil {
		printValidationErrors(err)
		return 1
	}
	fmt.Printf("✓ Catalog is valid (%d models)\n", len(cat.Models))

	if dataDir == "" {
		return 0
	}

	tables := store.NewStore(file.NewSource(dataDir), "", zap.NewNop())
	failed := 0
	for _, m := range cat.ModelIDs() {
		t, err := tables.Load(context.Background(), m)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", m, err)
			failed++
			continue
		}
		fmt.Printf("✓ %s: %d supply rows, %d transfer rows, %d baseline rows\n",
			m, len(t.Supplies), len(t.Transfers), len(t.Baseline))
		if first, last, ok := scenario.DateRange(t.Transfers); ok {
			fmt.Printf("  transfers from %s to %s\n", first.Format(scenario.DateLayout), last.Format(scenario.DateLayout))
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}

func printValidationErrors(err error) {
	errs, ok := err.(catalog.ValidationErrors)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].File < errs[j].File })

	fmt.Fprintf(os.Stderr, "✗ Validation failed with %d error(s):\n\n", len(errs))
	for _, e := range errs {
		if e.Path != "" {
			fmt.Fprintf(os.Stderr, "%s: %s: %s\n", filepath.Base(e.File), e.Path, e.Message)
		} else {
			fmt.Fprintf(os.Stderr, "%s: %s\n", filepath.Base(e.File), e.Message)
		}
	}
}

func runTransfers(svc *query.Service, sel query.Selection) int {
	table, err := svc.TransferTable(context.Background(), sel, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if len(table.Rows) == 0 {
		fmt.Println("No transfers for this scenario")
		return 0
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORIGIN\tDESTINATION\tUNITS")
	for _, r := range table.Rows {
		fmt.Fprintf(w, "%s\t%s\t%d\n", r.Origin, r.Destination, r.Units)
	}
	w.Flush()
	fmt.Printf("\n%d rows, %d units\n", len(table.Rows), table.TotalUnits())
	return 0
}

func runCounterparties(svc *query.Service, sel query.Selection) int {
	states, err := svc.Counterparties(context.Background(), sel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if len(states) == 0 {
		fmt.Println("No counterparties for this scenario")
		return 0
	}

	for _, s := range states {
		fmt.Println(s)
	}
	return 0
}
