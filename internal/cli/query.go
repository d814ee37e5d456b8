package cli

import (
	"github.com/spf13/cobra"

	"github.com/kb-labs/mind/internal/hashutil"
	"github.com/kb-labs/mind/internal/index"
	"github.com/kb-labs/mind/internal/minderr"
	"github.com/kb-labs/mind/internal/query"
)

func newQueryCmd(flags *rootFlags) *cobra.Command {
	var (
		params    query.Params
		limit     int
		depth     int
		cacheTtl  int
		cacheMode string
		noCache   bool
		pathMode  string
		aiMode    bool
		out       string
	)

	cmd := &cobra.Command{
		Use:   "query <impact|scope|exports|externals|chain|meta|docs>",
		Short: "Run a structured query against the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := flags.workspace()
			if err != nil {
				return err
			}

			// Flags the user left unset take their configured values.
			if limit <= 0 {
				limit = cfg.Query.Limit
			}
			if depth <= 0 {
				depth = cfg.Query.Depth
			}
			if cacheTtl <= 0 {
				cacheTtl = cfg.Query.CacheTTL
			}
			if pathMode == "" {
				pathMode = cfg.Query.PathMode
			}

			engine, err := query.New(store)
			if err != nil {
				return err
			}

			resp, err := engine.Execute(cmd.Context(), args[0], params, query.Options{
				Limit:     limit,
				Depth:     depth,
				CacheTTL:  cacheTtl,
				CacheMode: cacheMode,
				NoCache:   noCache,
				PathMode:  pathMode,
				AIMode:    aiMode,
			})
			if err != nil {
				return err
			}

			if out != "" {
				data, err := hashutil.CanonicalJSON(resp)
				if err != nil {
					return minderr.Wrap(minderr.CodeQueryError, err, "failed to encode sidecar")
				}
				sidecar := index.QueryDir + "/" + resp.Meta.QueryID + ".toon"
				if out != "auto" {
					sidecar = out
				}
				if err := store.Write(sidecar, data); err != nil {
					return err
				}
			}

			return printResult(resp)
		},
	}

	cmd.Flags().StringVar(&params.File, "file", "", "target file (impact, exports, chain)")
	cmd.Flags().StringVar(&params.Path, "path", "", "path prefix (scope)")
	cmd.Flags().StringVar(&params.Scope, "scope", "", "scope filter (externals)")
	cmd.Flags().StringVar(&params.Product, "product", "", "product filter (meta)")
	cmd.Flags().StringVar(&params.Tag, "tag", "", "docs tag filter")
	cmd.Flags().StringVar(&params.Type, "type", "", "docs type filter")
	cmd.Flags().StringVar(&params.Search, "search", "", "docs search term")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results")
	cmd.Flags().IntVar(&depth, "depth", 0, "chain traversal depth")
	cmd.Flags().IntVar(&cacheTtl, "cache-ttl", 0, "cache TTL in seconds")
	cmd.Flags().StringVar(&cacheMode, "cache-mode", "", "cache mode: local or ci")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the query cache")
	cmd.Flags().StringVar(&pathMode, "paths", "", "path output style: id or absolute")
	cmd.Flags().BoolVar(&aiMode, "ai-mode", false, "add summary and suggested next queries")
	cmd.Flags().StringVar(&out, "out", "", "write a sidecar result file (or 'auto')")
	return cmd
}
