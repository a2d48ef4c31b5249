package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dshills/activity-go/activity"
	"github.com/dshills/activity-go/activity/declare"
	"github.com/dshills/activity-go/activity/dsl"
	"github.com/dshills/activity-go/activity/emit"
	"github.com/dshills/activity-go/activity/store"
)

type runResult struct {
	RunID   string         `json:"run_id"`
	End     string         `json:"end"`
	Context map[string]any `json:"context"`
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run an activity and print the end it reached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctxJSON, _ := cmd.Flags().GetString("ctx")
			sets, _ := cmd.Flags().GetStringArray("set")
			input, err := parseInput(ctxJSON, sets)
			if err != nil {
				return err
			}

			logger := cfg.Logger(cmd.ErrOrStderr())
			emitters := []emit.Emitter{emit.NewSlogEmitter(logger)}
			st, err := cfg.OpenStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			if st != nil {
				defer st.Close()
				emitters = append(emitters, store.NewEmitter(st, func(ev emit.Event, err error) {
					logger.Warn("record event failed", "run_id", ev.RunID, "msg", ev.Msg, "error", err)
				}))
			}

			opts := []activity.Option{activity.WithEmitter(emit.NewMultiEmitter(emitters...))}
			if cfg.MaxSteps > 0 {
				opts = append(opts, activity.WithMaxSteps(cfg.MaxSteps))
			}
			act, err := build(args[0], opts...)
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			sig, out, err := act.Invoke(activity.WithRunID(cmd.Context(), runID), input)
			if err != nil {
				return fmt.Errorf("run %s: %w", runID, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(runResult{RunID: runID, End: sig.String(), Context: out.ToMap()})
		},
	}
	cmd.Flags().String("ctx", "", "initial context as a JSON object")
	cmd.Flags().StringArray("set", nil, "initial context entry key=value, repeatable")
	return cmd
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the rows of an activity and where their outputs lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := build(args[0])
			if err != nil {
				return err
			}
			return writeRows(cmd.OutOrStdout(), act)
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that every connection of an activity resolves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			act, err := build(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range act.Circuit.Unreachable() {
				fmt.Fprintf(out, "warning: row %s is unreachable\n", id)
			}
			if err := act.Circuit.Validate(); err != nil {
				return fmt.Errorf("invalid activity:\n%w", err)
			}
			fmt.Fprintf(out, "ok: %d rows\n", act.Sequence.Len())
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or the events of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := cfg.OpenStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			if st == nil {
				return errors.New("no store configured: set store in the config file or ACTIVITY_STORE_DSN")
			}
			defer st.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if len(args) == 0 {
				limit, _ := cmd.Flags().GetInt("limit")
				runs, err := st.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "RUN\tEVENTS\tLAST\tROW")
				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.RunID, r.Events, r.LastMsg, r.LastRowID)
				}
				return w.Flush()
			}

			events, err := st.History(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("history %s: %w", args[0], err)
			}
			fmt.Fprintln(w, "STEP\tROW\tMSG\tMETA")
			for _, ev := range events {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", ev.Step, ev.RowID, ev.Msg, formatMeta(ev.Meta))
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "number of runs to list, 0 for all")
	return cmd
}

func build(path string, opts ...activity.Option) (*dsl.Activity, error) {
	doc, err := declare.LoadFile(path, builtins())
	if err != nil {
		return nil, err
	}
	act, err := doc.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", path, err)
	}
	return act, nil
}

// parseInput merges a JSON object with key=value pairs. Values that parse
// as JSON keep their type, anything else is a string.
func parseInput(ctxJSON string, sets []string) (map[string]any, error) {
	input := map[string]any{}
	if ctxJSON != "" {
		if err := json.Unmarshal([]byte(ctxJSON), &input); err != nil {
			return nil, fmt.Errorf("parse --ctx: %w", err)
		}
	}
	for _, kv := range sets {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("parse --set %q: expected key=value", kv)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		input[key] = v
	}
	return input, nil
}

func writeRows(out io.Writer, act *dsl.Activity) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tMAGNETIC TO\tOUTPUTS")
	for _, row := range act.Sequence.Rows() {
		magnetic := strings.Join(row.MagneticTo, ",")
		if magnetic == "" {
			magnetic = "-"
		}

		outputs := "-"
		if !row.Terminus {
			edges := act.Circuit.Edges(row.ID)
			sems := make([]string, 0, len(row.Connections))
			for sem := range row.Connections {
				sems = append(sems, sem)
			}
			sort.Strings(sems)
			parts := make([]string, 0, len(sems))
			for _, sem := range sems {
				target, ok := edges[sem]
				if !ok {
					target = "?"
				}
				parts = append(parts, sem+"->"+target)
			}
			outputs = strings.Join(parts, " ")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", row.ID, magnetic, outputs)
	}
	return w.Flush()
}

func formatMeta(meta map[string]interface{}) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, meta[k]))
	}
	return strings.Join(parts, " ")
}
