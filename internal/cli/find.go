package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/svcstore/internal/cache"
	"github.com/roach88/svcstore/internal/config"
	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/service"
	"github.com/roach88/svcstore/internal/transport"
	"github.com/roach88/svcstore/internal/transport/rest"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	URL    string
	Query  string
	Qid    string
	Config string
}

// FindOutput is the JSON payload of the find command.
type FindOutput struct {
	Page       ir.Page              `json:"page"`
	Paginated  bool                 `json:"paginated"`
	Pagination *cache.QidPagination `json:"pagination,omitempty"`
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <service>",
		Short: "Find records on a remote service through the client cache",
		Long: `Query a remote service over REST, store the response in a client
collection and print the page together with the pagination ledger entry
recorded for the qid. With --config (or SVCSTORE_CONFIG) the collection
and service settings of the matching service entry are applied.

Example:
  svcstore find todos --url http://localhost:3030 --query '{"$limit": 5}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "base URL of the server (required)")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "query document as JSON")
	cmd.Flags().StringVar(&opts.Qid, "qid", ir.DefaultQid, "pagination ledger bucket")
	cmd.Flags().StringVar(&opts.Config, "config", "", "configuration file with client settings per service")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func runFind(opts *FindOptions, servicePath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())

	q, err := parseQueryFlag(opts.Query)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeParse, "invalid query", err)
	}
	client, err := rest.NewClient(opts.URL, servicePath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid server address", err)
	}
	collOpts, svcOpts, err := resolveFindConfig(opts, servicePath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalid, "invalid configuration", err)
	}
	coll, err := cache.New(collOpts, cache.WithLogger(logger))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to create collection", err)
	}
	svc, err := service.New(coll, client, service.WithOptions(svcOpts), service.WithLogger(logger))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to create service", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter.VerboseLog("GET %s/%s", opts.URL, servicePath)
	res, err := svc.Find(ctx, ir.Params{Query: q, Qid: opts.Qid})
	if err != nil {
		te := transport.AsError(err)
		return formatter.Fail(ExitFailure, ErrCodeRemote, "find failed", fmt.Errorf("%s (%d): %s", te.Name, te.Code, te.Message))
	}

	out := FindOutput{Page: res.Page, Paginated: res.Paginated, Pagination: coll.Pagination(opts.Qid)}
	if out.Page.Data == nil {
		out.Page.Data = []ir.Record{}
	}
	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	if err := outputPage(formatter, res.Page); err != nil {
		return err
	}
	if out.Pagination != nil {
		ledger, err := json.MarshalIndent(out.Pagination, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(formatter.Writer, "pagination[%s]:\n%s\n", opts.Qid, ledger)
	}
	return nil
}

// resolveFindConfig returns the client settings for servicePath: the
// service entry of the config file when there is one, defaults otherwise.
func resolveFindConfig(opts *FindOptions, servicePath string) (cache.Options, service.Options, error) {
	collOpts := cache.Options{ServicePath: servicePath}
	path := config.Path(opts.Config)
	if path == "" {
		return collOpts, service.Options{}, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cache.Options{}, service.Options{}, err
	}
	sc, ok := cfg.Service(servicePath)
	if !ok {
		return collOpts, service.Options{}, nil
	}
	return sc.CacheOptions(), sc.ServiceOptions(), nil
}
