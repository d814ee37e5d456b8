package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kb-labs/mind/internal/embed"
	"github.com/kb-labs/mind/internal/storage"
	"github.com/kb-labs/mind/internal/syncstore"
	"github.com/kb-labs/mind/internal/vectorstore"
)

type syncFlags struct {
	source      string
	id          string
	scope       string
	content     string
	contentFile string
	metadata    string
}

func (s *syncFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&s.source, "source", "", "document source")
	cmd.PersistentFlags().StringVar(&s.id, "id", "", "document id")
	cmd.PersistentFlags().StringVar(&s.scope, "scope", "", "target scope")
	cmd.PersistentFlags().StringVar(&s.content, "content", "", "inline document content")
	cmd.PersistentFlags().StringVar(&s.contentFile, "content-file", "", "read document content from a file")
	cmd.PersistentFlags().StringVar(&s.metadata, "metadata", "", "document metadata as JSON")
}

func (s *syncFlags) document() (syncstore.Document, error) {
	doc := syncstore.Document{
		Source:  s.source,
		ID:      s.id,
		ScopeID: s.scope,
		Content: s.content,
	}
	if s.contentFile != "" {
		data, err := os.ReadFile(s.contentFile)
		if err != nil {
			return doc, fmt.Errorf("failed to read content file: %w", err)
		}
		doc.Content = string(data)
	}
	if s.metadata != "" {
		if err := json.Unmarshal([]byte(s.metadata), &doc.Metadata); err != nil {
			return doc, fmt.Errorf("invalid --metadata JSON: %w", err)
		}
	}
	return doc, nil
}

func openRegistry(flags *rootFlags) (*syncstore.Registry, storage.Storage, error) {
	store, cfg, err := flags.workspace()
	if err != nil {
		return nil, nil, err
	}

	vectors, err := vectorstore.New(store)
	if err != nil {
		return nil, nil, err
	}

	reg := syncstore.New(store, vectors, embed.NewDeterministic(), syncstore.Config{
		SoftDelete:   cfg.Sync.SoftDelete,
		TTLDays:      cfg.Sync.SoftDeleteTTL,
		BatchMaxSize: cfg.Sync.BatchMaxSize,
	})
	return reg, store, nil
}

func newSyncCmd(flags *rootFlags) *cobra.Command {
	sf := &syncFlags{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Manage externally-ingested documents",
	}
	sf.register(cmd)

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add",
			Short: "Register a document and store its chunks",
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, _, err := openRegistry(flags)
				if err != nil {
					return err
				}
				doc, err := sf.document()
				if err != nil {
					return err
				}
				if err := reg.Add(cmd.Context(), doc); err != nil {
					return err
				}
				return printResult(map[string]string{"added": doc.SourceID()})
			},
		},
		&cobra.Command{
			Use:   "update",
			Short: "Apply a partial update to a document",
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, _, err := openRegistry(flags)
				if err != nil {
					return err
				}
				doc, err := sf.document()
				if err != nil {
					return err
				}
				if err := reg.Update(cmd.Context(), doc); err != nil {
					return err
				}
				return printResult(map[string]string{"updated": doc.SourceID()})
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Soft-delete a document",
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, _, err := openRegistry(flags)
				if err != nil {
					return err
				}
				if err := reg.Delete(sf.source, sf.id, sf.scope); err != nil {
					return err
				}
				return printResult(map[string]string{"deleted": sf.source + ":" + sf.id + ":" + sf.scope})
			},
		},
		&cobra.Command{
			Use:   "restore",
			Short: "Restore a soft-deleted document",
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, _, err := openRegistry(flags)
				if err != nil {
					return err
				}
				if err := reg.Restore(sf.source, sf.id, sf.scope); err != nil {
					return err
				}
				return printResult(map[string]string{"restored": sf.source + ":" + sf.id + ":" + sf.scope})
			},
		},
		newSyncListCmd(flags, sf),
		newSyncBatchCmd(flags, sf),
		&cobra.Command{
			Use:   "status",
			Short: "Count registered documents",
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, _, err := openRegistry(flags)
				if err != nil {
					return err
				}
				st, err := reg.GetStatus(syncstore.ListOptions{Source: sf.source, Scope: sf.scope})
				if err != nil {
					return err
				}
				return printResult(st)
			},
		},
		newSyncCleanupCmd(flags, sf),
	)
	return cmd
}

func newSyncListCmd(flags *rootFlags, sf *syncFlags) *cobra.Command {
	var includeDeleted bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := openRegistry(flags)
			if err != nil {
				return err
			}
			docs, err := reg.List(syncstore.ListOptions{
				Source:         sf.source,
				Scope:          sf.scope,
				IncludeDeleted: includeDeleted,
			})
			if err != nil {
				return err
			}
			return printResult(docs)
		},
	}

	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "include soft-deleted documents")
	return cmd
}

func newSyncBatchCmd(flags *rootFlags, sf *syncFlags) *cobra.Command {
	var (
		opsFile string
		maxSize int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Apply a batch of operations from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := openRegistry(flags)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(opsFile)
			if err != nil {
				return fmt.Errorf("failed to read ops file: %w", err)
			}
			var ops []syncstore.BatchOp
			if err := json.Unmarshal(data, &ops); err != nil {
				return fmt.Errorf("invalid ops file: %w", err)
			}

			results, err := reg.Batch(cmd.Context(), ops, maxSize)
			if err != nil {
				return err
			}
			return printResult(results)
		},
	}

	cmd.Flags().StringVar(&opsFile, "ops", "", "JSON file with the operation list")
	cmd.Flags().IntVar(&maxSize, "max-size", 0, "maximum batch size")
	_ = cmd.MarkFlagRequired("ops")
	return cmd
}

func newSyncCleanupCmd(flags *rootFlags, sf *syncFlags) *cobra.Command {
	var (
		deletedOnly bool
		ttlDays     int
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Physically remove expired soft-deleted documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := openRegistry(flags)
			if err != nil {
				return err
			}
			removed, err := reg.Cleanup(syncstore.CleanupOptions{
				Source:      sf.source,
				Scope:       sf.scope,
				DeletedOnly: deletedOnly,
				TTLDays:     ttlDays,
			})
			if err != nil {
				return err
			}
			return printResult(map[string]int{"removed": removed})
		},
	}

	cmd.Flags().BoolVar(&deletedOnly, "deleted-only", true, "only remove soft-deleted documents")
	cmd.Flags().IntVar(&ttlDays, "ttl-days", -1, "age threshold in days (default 30)")
	return cmd
}
