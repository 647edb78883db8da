package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/spf13/cobra"

	"github.com/stevemurr/docstore/config"
	"github.com/stevemurr/docstore/docstore"
	"github.com/stevemurr/docstore/query"
	"github.com/stevemurr/docstore/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:          "docstore",
		Short:        "Query and modify a docstore snapshot",
		Long:         `A command-line interface for an embeddable JSON document store persisted as a single snapshot.`,
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.String("backend", "json", "snapshot backend: json, json.zst, sqlite, bolt, memory")
	pf.String("data-dir", "./data", "directory holding the snapshot")
	pf.Bool("strict", false, "reject query clauses that cannot be evaluated")
	pf.Bool("legacy-exists", false, "treat falsy fields as missing for $exists")
	pf.String("log-level", "warn", "log level")
	pf.String("log-format", "console", "log format: console or json")

	// withStore opens the configured store, runs fn and saves afterwards when
	// fn reports a change.
	withStore := func(cmd *cobra.Command, fn func(s *docstore.Store) (bool, error)) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		log := cfg.Log.Logger()
		defer log.Sync()

		b, err := store.New(cfg.Backend, cfg.DataDir)
		if err != nil {
			return err
		}
		opts := []docstore.Option{docstore.WithLogger(log)}
		if cfg.Strict {
			opts = append(opts, docstore.WithStrictQueries())
		}
		if cfg.LegacyExists {
			opts = append(opts, docstore.WithLegacyExists())
		}
		s, err := docstore.Open(b, opts...)
		if err != nil {
			b.Close()
			return err
		}
		defer s.Close()

		changed, err := fn(s)
		if err != nil {
			return err
		}
		if changed {
			return s.Save()
		}
		return nil
	}

	insertCmd := &cobra.Command{
		Use:   "insert <document|array>",
		Short: "Insert one document or an array of documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := parseDocuments(args[0])
			if err != nil {
				return fmt.Errorf("invalid document JSON: %w", err)
			}
			return withStore(cmd, func(s *docstore.Store) (bool, error) {
				before := s.Count(nil)
				fmt.Fprintln(cmd.OutOrStdout(), s.Insert(docs))
				return s.Count(nil) != before, nil
			})
		},
	}

	findCmd := &cobra.Command{
		Use:   "find [query]",
		Short: "Print the documents matching a query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := queryArg(args)
			if err != nil {
				return err
			}
			sortField, _ := cmd.Flags().GetString("sort")
			dir, _ := cmd.Flags().GetInt("dir")
			skip, _ := cmd.Flags().GetInt("skip")
			limit, _ := cmd.Flags().GetInt("limit")
			pretty, _ := cmd.Flags().GetBool("pretty")
			return withStore(cmd, func(s *docstore.Store) (bool, error) {
				cur := s.Find(q)
				if sortField != "" {
					cur.Sort(sortField, dir)
				}
				cur.Skip(skip).Limit(limit)
				out, err := cur.JSON(pretty)
				if err != nil {
					return false, err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return false, nil
			})
		},
	}
	findCmd.Flags().String("sort", "", "field to sort by")
	findCmd.Flags().Int("dir", 1, "sort direction: 1 or -1")
	findCmd.Flags().Int("skip", 0, "documents to skip")
	findCmd.Flags().Int("limit", -1, "maximum documents to print (-1 for all)")
	findCmd.Flags().Bool("pretty", false, "indent output")

	updateCmd := &cobra.Command{
		Use:   "update <query> <update>",
		Short: `Apply {"$set": {...}} to matching documents`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := queryArg(args[:1])
			if err != nil {
				return err
			}
			u, err := query.Parse([]byte(args[1]))
			if err != nil {
				return fmt.Errorf("invalid update JSON: %w", err)
			}
			multi, _ := cmd.Flags().GetBool("multi")
			upsert, _ := cmd.Flags().GetBool("upsert")
			return withStore(cmd, func(s *docstore.Store) (bool, error) {
				n := s.Update(q, u, docstore.UpdateOptions{Multi: multi, Upsert: upsert})
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return n > 0, nil
			})
		},
	}
	updateCmd.Flags().Bool("multi", false, "update every match instead of the first")
	updateCmd.Flags().Bool("upsert", false, "insert the $set object when nothing matches")

	removeCmd := &cobra.Command{
		Use:   "remove [query]",
		Short: "Remove matching documents (all when no query is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := queryArg(args)
			if err != nil {
				return err
			}
			return withStore(cmd, func(s *docstore.Store) (bool, error) {
				n := s.Remove(q)
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return n > 0, nil
			})
		},
	}

	countCmd := &cobra.Command{
		Use:   "count [query]",
		Short: "Count matching documents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := queryArg(args)
			if err != nil {
				return err
			}
			return withStore(cmd, func(s *docstore.Store) (bool, error) {
				fmt.Fprintln(cmd.OutOrStdout(), s.Count(q))
				return false, nil
			})
		},
	}

	nowCmd := &cobra.Command{
		Use:   "now",
		Short: "Print the current timestamp",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *docstore.Store) (bool, error) {
				fmt.Fprintln(cmd.OutOrStdout(), s.Now())
				return false, nil
			})
		},
	}

	root.AddCommand(insertCmd, findCmd, updateCmd, removeCmd, countCmd, nowCmd)
	return root
}

// queryArg parses the optional query argument. No argument means the empty
// query.
func queryArg(args []string) (query.Query, error) {
	if len(args) == 0 {
		return nil, nil
	}
	q, err := query.Parse([]byte(args[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid query JSON: %w", err)
	}
	return q, nil
}

// parseDocuments decodes an object or an array of values. Objects keep
// $date values as times; other array elements are passed through so the
// store reports them as non-documents.
func parseDocuments(arg string) ([]any, error) {
	data := bytes.TrimSpace([]byte(arg))
	if len(data) == 0 || data[0] != '[' {
		q, err := query.Parse(data)
		if err != nil {
			return nil, err
		}
		return []any{q.Map()}, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	docs := make([]any, 0, len(raw))
	for _, r := range raw {
		q, err := query.Parse(r)
		switch {
		case errors.Is(err, query.ErrNotObject):
			var v any
			if err := json.Unmarshal(r, &v); err != nil {
				return nil, err
			}
			docs = append(docs, v)
		case err != nil:
			return nil, err
		case q == nil:
			docs = append(docs, nil)
		default:
			docs = append(docs, q.Map())
		}
	}
	return docs, nil
}
