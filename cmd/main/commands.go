package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/CTAG07/roster/pkg/roster"
	"github.com/CTAG07/roster/pkg/templating"
)

// loadTemplates loads the configured template directory for a one-shot command.
// Logs go to stderr so stdout carries only the command output.
func loadTemplates(cmd *cobra.Command, opts *cliOptions) (*templating.TemplateManager, error) {
	config, err := LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), config.Server.LogLevel, opts.logLevel)
	return templating.NewTemplateManager(logger, config.Templates, config.Server.TemplateDir)
}

// parseParams merges a JSON object with repeated key=value flags. Flag values that
// parse as JSON keep their type; anything else is a plain string.
func parseParams(paramsJSON string, pairs []string) (templating.Params, error) {
	params := templating.Params{}
	if paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
			return nil, fmt.Errorf("--params-json must be a JSON object: %w", err)
		}
		if params == nil {
			params = templating.Params{}
		}
	}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		params[key] = value
	}
	return params, nil
}

func newRenderCommand(opts *cliOptions) *cobra.Command {
	var (
		pairs      []string
		paramsJSON string
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "render KEY",
		Short: "Render a cached template to stdout",
		Example: `  roster render index.html --param count=3 --param students='<li>Ada</li>'
  roster render students/row.html --params-json '{"name":"Ada","eid":"al1815"}' --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(paramsJSON, pairs)
			if err != nil {
				return err
			}
			tm, err := loadTemplates(cmd, opts)
			if err != nil {
				return err
			}

			render := tm.Render
			if strict {
				render = tm.RenderStrict
			}
			out, err := render(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out+"\n")
			return err
		},
	}

	cmd.Flags().StringArrayVar(&pairs, "param", nil, "Template parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&paramsJSON, "params-json", "", "Template parameters as a JSON object")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on expression errors instead of printing the placeholder")
	return cmd
}

func newTemplatesCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the keys of every template in the template directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, err := loadTemplates(cmd, opts)
			if err != nil {
				return err
			}
			for _, name := range tm.GetTemplateNames() {
				if _, err = fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// withStore opens the configured database for the duration of fn.
func withStore(cmd *cobra.Command, opts *cliOptions, fn func(*roster.Store) error) error {
	config, err := LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), config.Server.LogLevel, opts.logLevel)

	db, err := openDatabase(config.Server)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	store, err := roster.NewStore(db, logger)
	if err != nil {
		return fmt.Errorf("failed to create roster store: %w", err)
	}
	defer store.Close()

	return fn(store)
}

func newStudentsCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Manage the student roster",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(store *roster.Store) error {
				students, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "ID\tEID\tNAME\tDESCRIPTION")
				for _, st := range students {
					_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.ID, st.EID, st.Name, st.Description)
				}
				return tw.Flush()
			})
		},
	}

	var st roster.Student
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(store *roster.Store) error {
				created, err := store.Add(cmd.Context(), st)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "added student %d (%s)\n", created.ID, created.EID)
				return err
			})
		},
	}
	add.Flags().StringVar(&st.Name, "name", "", "Student name")
	add.Flags().StringVar(&st.EID, "eid", "", "Student EID")
	add.Flags().StringVar(&st.Description, "description", "", "Free-form description")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("eid")

	remove := &cobra.Command{
		Use:   "remove ID",
		Short: "Remove a student by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid student id %q", args[0])
			}
			return withStore(cmd, opts, func(store *roster.Store) error {
				if err := store.Remove(cmd.Context(), id); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed student %d\n", id)
				return err
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}
