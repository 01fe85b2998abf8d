package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-statemap"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type cli struct {
	cfg    config
	genID  bool
	file   string
	logger *slog.Logger
}

func newRootCmd(cfg config) *cobra.Command {
	c := &cli{cfg: cfg}
	root := &cobra.Command{
		Use:   "statemap",
		Short: "Manage keyed record maps stored as YAML snapshots",
		Long: `statemap keeps records in 1D, 2D, or 3D keyed maps. The --keys flag names
the record fields addressing each level, e.g. --keys year,id stores records
under their year and then their id.

Records are JSON (or YAML flow) objects, passed as arguments or as an array
via --file ("-" reads stdin). They are decoded the way snapshots are, so
numbers compare equal to the stored ones.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.logger = newLogger(cmd.ErrOrStderr(), c.cfg.LogLevel)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding snapshots (STATEMAP_DATA_DIR)")
	flags.StringVar(&c.cfg.Domain, "domain", cfg.Domain, "Snapshot name (STATEMAP_DOMAIN)")
	flags.StringSliceVar(&c.cfg.Keys, "keys", cfg.Keys, "Record fields keying each level, 1 to 3 (STATEMAP_KEYS)")
	flags.StringVarP(&c.cfg.Format, "format", "f", cfg.Format, "Output format: json|yaml (STATEMAP_FORMAT)")
	flags.StringVar(&c.cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error (STATEMAP_LOG_LEVEL)")
	flags.StringVar(&c.cfg.Actor, "actor", cfg.Actor, "Actor recorded on activity events (STATEMAP_ACTOR)")

	root.AddCommand(
		c.upsertCmd(),
		c.replaceCmd(),
		c.removeCmd(),
		c.listCmd(),
		c.getCmd(),
	)
	return root
}

func (c *cli) open(genID bool) (session, error) {
	return openSession(sessionOptions{
		dataDir: c.cfg.DataDir,
		domain:  c.cfg.Domain,
		keys:    c.cfg.Keys,
		genID:   genID,
		actor:   c.cfg.Actor,
		verbs:   c.cfg.ActivityVerbs,
		logger:  c.logger,
	})
}

func (c *cli) upsertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upsert [record...]",
		Short: "Insert or update records",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := c.readRecords(cmd, args)
			if err != nil {
				return err
			}
			s, err := c.open(c.genID)
			if err != nil {
				return err
			}
			changed, err := s.Upsert(cmd.Context(), items)
			if err != nil {
				return err
			}
			return c.reportChange(cmd, "upsert", changed, len(items))
		},
	}
	cmd.Flags().BoolVar(&c.genID, "gen-id", false, "Assign a UUID to records missing the last key field")
	cmd.Flags().StringVar(&c.file, "file", "", "Read an array of records from a file (- for stdin)")
	return cmd
}

func (c *cli) replaceCmd() *cobra.Command {
	var at []string
	cmd := &cobra.Command{
		Use:   "replace [record...]",
		Short: "Replace all records, or one partition with --at",
		Long: `replace clears the addressed partition and inserts the given records. With
no records the partition is left empty. Nothing is written when the result
equals the stored snapshot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := c.readRecords(cmd, args)
			if err != nil {
				return err
			}
			s, err := c.open(c.genID)
			if err != nil {
				return err
			}
			changed, err := s.Replace(cmd.Context(), at, items)
			if err != nil {
				return err
			}
			return c.reportChange(cmd, "replace", changed, len(items))
		},
	}
	cmd.Flags().StringSliceVar(&at, "at", nil, "Partition keys to replace, outermost first")
	cmd.Flags().BoolVar(&c.genID, "gen-id", false, "Assign a UUID to records missing the last key field")
	cmd.Flags().StringVar(&c.file, "file", "", "Read an array of records from a file (- for stdin)")
	return cmd
}

func (c *cli) removeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove [record...]",
		Short: "Remove records addressed by their key fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := c.readRecords(cmd, args)
			if err != nil {
				return err
			}
			s, err := c.open(false)
			if err != nil {
				return err
			}
			changed, err := s.Remove(cmd.Context(), items)
			if err != nil {
				return err
			}
			return c.reportChange(cmd, "remove", changed, len(items))
		},
	}
	cmd.Flags().StringVar(&c.file, "file", "", "Read an array of records from a file (- for stdin)")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var (
		where  string
		engine string
	)
	cmd := &cobra.Command{
		Use:   "list [partition-key...]",
		Short: "List records, optionally within a partition and filtered by --where",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(false)
			if err != nil {
				return err
			}
			projection := statemap.Projection[record, record]{}
			if where != "" {
				pred, err := c.wherePredicate(engine, where)
				if err != nil {
					return err
				}
				projection.Pre = pred
			}
			items, err := s.List(cmd.Context(), args, projection)
			if err != nil {
				return err
			}
			return c.write(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "Boolean expression over record fields")
	cmd.Flags().StringVar(&engine, "engine", "expr", "Expression engine: expr|cel|js")
	return cmd
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get key...",
		Short: "Print the record stored at the given keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(false)
			if err != nil {
				return err
			}
			item, ok, err := s.Get(cmd.Context(), args)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no record at %s", statemap.CoercePath(toAny(args)...))
			}
			return c.write(cmd.OutOrStdout(), item)
		},
	}
}

func (c *cli) wherePredicate(engine, expression string) (func(record) bool, error) {
	var evaluator statemap.Evaluator
	cache := statemap.NewMemoryProgramCache()
	helpers := statemap.NewKeyFunctionRegistry()
	switch strings.ToLower(engine) {
	case "", "expr":
		evaluator = statemap.NewExprEvaluator(statemap.ExprWithProgramCache(cache), statemap.ExprWithFunctionRegistry(helpers))
	case "cel":
		evaluator = statemap.NewCELEvaluator(statemap.CELWithProgramCache(cache), statemap.CELWithFunctionRegistry(helpers))
	case "js":
		evaluator = statemap.NewJSEvaluator(
			statemap.JSWithProgramCache(cache),
			statemap.JSWithFunctionRegistry(helpers),
			statemap.JSWithTimeout(time.Second),
		)
		if evaluator == nil {
			return nil, fmt.Errorf("js engine unavailable: rebuild with -tags js_eval")
		}
	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}
	return statemap.RulePredicate[record](evaluator, expression,
		statemap.WithRuleDomain(c.cfg.Domain),
		statemap.WithRuleLogger(statemap.SlogEvaluatorLogger(c.logger)),
	)
}

func (c *cli) readRecords(cmd *cobra.Command, args []string) ([]record, error) {
	items := make([]record, 0, len(args))
	for i, arg := range args {
		var item record
		if err := yaml.Unmarshal([]byte(arg), &item); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		items = append(items, item)
	}
	if c.file == "" {
		return items, nil
	}

	var raw []byte
	var err error
	if c.file == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(c.file)
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return items, nil
	}
	var fromFile []record
	if err := yaml.Unmarshal(raw, &fromFile); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return append(items, fromFile...), nil
}

func (c *cli) reportChange(cmd *cobra.Command, op string, changed bool, records int) error {
	result := "unchanged"
	if changed {
		result = "saved"
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d record(s), %s\n", op, c.cfg.Domain, records, result)
	return err
}

func (c *cli) write(w io.Writer, value any) error {
	switch strings.ToLower(c.cfg.Format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	default:
		return fmt.Errorf("unknown format %q", c.cfg.Format)
	}
}
