package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/svcstore/internal/cache"
	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/queryir"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Query   string
	Temps   bool
	IDField string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <records.json>",
		Short: "Run a query against records loaded into a local collection",
		Long: `Load a JSON array of records into a local collection and print the
page a find with the given query returns. Records without an id become
temp records; --temps includes them in the result.

Example:
  svcstore query todos.json --query '{"isComplete": false, "$sort": {"id": -1}}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "query document as JSON")
	cmd.Flags().BoolVar(&opts.Temps, "temps", false, "include temp records")
	cmd.Flags().StringVar(&opts.IDField, "id-field", ir.DefaultIDField, "field holding record ids")

	return cmd
}

func runQuery(opts *QueryOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	records, err := loadRecords(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to load records", err)
	}
	q, err := parseQueryFlag(opts.Query)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeParse, "invalid query", err)
	}

	coll, err := cache.New(cache.Options{ServicePath: "local", IDField: opts.IDField},
		cache.WithLogger(newLogger(opts.RootOptions, formatter.GetErrWriter())))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to create collection", err)
	}
	coll.AddItems(records)
	formatter.VerboseLog("Loaded %d record(s), %d temp(s) from %s", len(coll.IDs()), len(coll.Temps()), path)

	page, err := coll.Find(ir.Params{Query: q, Temps: opts.Temps})
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeParse, "query failed", err)
	}
	return outputPage(formatter, page)
}

// loadRecords reads a JSON array of objects, keeping integral numbers as
// int.
func loadRecords(path string) ([]ir.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%s: expected a JSON array of records: %w", path, err)
	}
	records := make([]ir.Record, 0, len(raw))
	for i, item := range raw {
		r, err := ir.DecodeRecord(item)
		if err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", path, i, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func parseQueryFlag(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	return queryir.DecodeQuery([]byte(s))
}

func outputPage(formatter *OutputFormatter, page ir.Page) error {
	if formatter.Format == "json" {
		if page.Data == nil {
			page.Data = []ir.Record{}
		}
		return formatter.Success(page)
	}
	fmt.Fprintf(formatter.Writer, "%d of %d record(s) (skip %d)\n", len(page.Data), page.Total, page.Skip)
	return formatter.Records(page.Data)
}
