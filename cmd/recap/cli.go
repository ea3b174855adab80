package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/config"
	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/gateway"
	"github.com/hpungsan/recap/internal/ops"
	"github.com/hpungsan/recap/internal/web"
)

// maxStdinBytes caps piped chat history and instruction content.
const maxStdinBytes = 10 << 20

// app bundles what every command needs.
type app struct {
	store  *db.Handle
	gen    gateway.Generator
	cfg    *config.Config
	logger *zap.Logger
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(a *app) *cli.App {
	if a == nil {
		a = &app{}
	}
	if a.cfg == nil {
		a.cfg = config.DefaultConfig()
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}

	cliApp := &cli.App{
		Name:    "recap",
		Usage:   "Summarize chat threads into a narrative handover and a technical manifest",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "Enable development logging"},
		},
		Commands: []*cli.Command{
			summarizeCmd(a),
			historyCmd(a),
			showCmd(a),
			deleteCmd(a),
			statsCmd(),
			instructionsCmd(a),
			serveCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// summarizeCmd creates the summarize command.
func summarizeCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "summarize",
		Usage: "Generate both reports for a chat thread (reads the thread from stdin)",
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("chat history must be piped via stdin"))
			}
			text, err := readStdin(maxStdinBytes)
			if err != nil {
				return outputError(err)
			}

			database, err := a.store.DB(c.Context)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Summarize(c.Context, database, a.gen, a.cfg, a.logger, ops.SummarizeInput{Text: text})
			if err != nil {
				return outputError(err)
			}
			if !output.Saved {
				fmt.Fprintf(os.Stderr, "warning: summary was not saved: %s\n", output.SaveError)
			}

			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List saved summaries, most recent first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Number of items to skip"},
		},
		Action: func(c *cli.Context) error {
			database, err := a.store.DB(c.Context)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.ListHistory(c.Context, database, a.cfg, ops.ListHistoryInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one saved summary",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "field", Aliases: []string{"f"}, Usage: "Print only one report as plain text: narrative|technical"},
		},
		Action: func(c *cli.Context) error {
			field := c.String("field")
			if field != "" && field != "narrative" && field != "technical" {
				return outputError(errors.NewInvalidRequest("field must be narrative or technical"))
			}

			id, err := parseID(c)
			if err != nil {
				return outputError(err)
			}

			database, err := a.store.DB(c.Context)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.FetchSummary(c.Context, database, ops.FetchSummaryInput{ID: id})
			if err != nil {
				return outputError(err)
			}

			switch field {
			case "narrative":
				fmt.Fprintln(os.Stdout, output.Narrative)
			case "technical":
				fmt.Fprintln(os.Stdout, output.Technical)
			default:
				return outputJSON(output)
			}
			return nil
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete a saved summary",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := parseID(c)
			if err != nil {
				return outputError(err)
			}

			database, err := a.store.DB(c.Context)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.DeleteSummary(c.Context, database, ops.DeleteSummaryInput{ID: id})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// statsCmd creates the stats command. It needs no store.
func statsCmd() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Count words, characters and estimated tokens (reads text from stdin)",
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("text must be piped via stdin"))
			}
			text, err := readStdin(maxStdinBytes)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(ops.Stats(ops.StatsInput{Text: text}))
		},
	}
}

// instructionsCmd groups the instruction template commands.
func instructionsCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:    "instructions",
		Aliases: []string{"instruction"},
		Usage:   "Manage instruction templates",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List every template and the one in use",
				Action: func(c *cli.Context) error {
					database, err := a.store.DB(c.Context)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.ListInstructions(c.Context, database)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "active",
				Usage: "Show the template generation currently uses",
				Action: func(c *cli.Context) error {
					database, err := a.store.DB(c.Context)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.ActiveInstruction(c.Context, database)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "add",
				Usage: "Create a template (reads content from stdin)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Template name"},
					&cli.BoolFlag{Name: "activate", Aliases: []string{"a"}, Usage: "Make it the active template"},
				},
				Action: func(c *cli.Context) error {
					if !stdinHasData() {
						return outputError(errors.NewInvalidRequest("content must be piped via stdin"))
					}
					content, err := readStdin(maxStdinBytes)
					if err != nil {
						return outputError(err)
					}

					database, err := a.store.DB(c.Context)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.SaveInstruction(c.Context, database, ops.SaveInstructionInput{
						Name:     c.String("name"),
						Content:  content,
						Activate: c.Bool("activate"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "edit",
				Usage:     "Edit a template (optionally reads new content from stdin)",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "New name"},
					&cli.BoolFlag{Name: "activate", Aliases: []string{"a"}, Usage: "Make it the active template"},
				},
				Action: func(c *cli.Context) error {
					id, err := parseID(c)
					if err != nil {
						return outputError(err)
					}

					database, err := a.store.DB(c.Context)
					if err != nil {
						return outputError(err)
					}

					// Unset fields keep their stored values
					existing, err := db.GetInstruction(c.Context, database, id)
					if err != nil {
						return outputError(err)
					}
					input := ops.SaveInstructionInput{
						ID:       id,
						Name:     existing.Name,
						Content:  existing.Content,
						Activate: c.Bool("activate"),
					}
					if c.IsSet("name") {
						input.Name = c.String("name")
					}
					if stdinHasData() {
						content, err := readStdin(maxStdinBytes)
						if err != nil {
							return outputError(err)
						}
						if content != "" {
							input.Content = content
						}
					}

					output, err := ops.SaveInstruction(c.Context, database, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "activate",
				Usage:     "Make a template the only active one",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c)
					if err != nil {
						return outputError(err)
					}
					database, err := a.store.DB(c.Context)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.ActivateInstruction(c.Context, database, ops.ActivateInstructionInput{ID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a template (the built-in default is protected)",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := parseID(c)
					if err != nil {
						return outputError(err)
					}
					database, err := a.store.DB(c.Context)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.DeleteInstruction(c.Context, database, ops.DeleteInstructionInput{ID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Value: "127.0.0.1", Usage: "Address to bind to"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			port := c.Int("port")
			if port <= 0 || port > 65535 {
				return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
			}
			srv := web.NewServer(a.store, a.gen, a.cfg, a.logger, Version, c.String("bind"), port)
			return web.Run(srv, a.logger)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var rErr *errors.RecapError
	if stderrors.As(err, &rErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", rErr.Code, rErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseID reads the first positional argument as a record ID.
func parseID(c *cli.Context) (int64, error) {
	if c.NArg() == 0 {
		return 0, errors.NewInvalidRequest("an id argument is required")
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid id: %q", c.Args().First()))
	}
	return id, nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin, rejecting input over maxBytes.
func readStdin(maxBytes int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, maxBytes+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > maxBytes {
		return "", errors.NewInvalidRequest(fmt.Sprintf("input exceeds %d bytes", maxBytes))
	}
	return strings.TrimSpace(string(data)), nil
}
