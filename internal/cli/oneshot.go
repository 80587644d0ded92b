package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mrlokans/wordsync/internal/entities"
	"github.com/mrlokans/wordsync/internal/entrypoint"
	"github.com/mrlokans/wordsync/internal/logger"
	"github.com/mrlokans/wordsync/internal/srs"
)

// Swapped in tests.
var (
	runServer = entrypoint.RunServer
	runAgent  = entrypoint.RunAgent
	now       = time.Now
)

var errNoUser = errors.New("no user: pass --user or set USER_ID")

// logger writes to stderr so stdout stays parseable. One-shot commands log
// warnings only unless --log-level says otherwise.
func (a *app) logger() zerolog.Logger {
	level := a.logLevel
	if level == "" {
		level = "warn"
	}
	return logger.NewWithWriter(os.Stderr, "wordsync-cli", level)
}

// withAgent opens the engine for the duration of fn. signIn also loads the
// user's snapshot and waits for the initial pull.
func (a *app) withAgent(cmd *cobra.Command, signIn bool, fn func(ctx context.Context, agent *entrypoint.Agent) error) error {
	if signIn && a.cfg.Session.UserID == "" {
		return errNoUser
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()

	log := a.logger()
	agent, err := entrypoint.OpenAgent(a.cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := agent.Close(); err != nil {
			log.Error().Err(err).Msg("error closing agent")
		}
	}()

	if signIn {
		if err := agent.SignInAndWait(ctx, a.cfg.Session.UserID); err != nil {
			return err
		}
	}
	return fn(ctx, agent)
}

func (a *app) print(w io.Writer, v any, text func(w io.Writer)) error {
	if a.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push queued changes and pull the latest state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAgent(cmd, true, func(ctx context.Context, agent *entrypoint.Agent) error {
				result, err := agent.Engine.Sync(ctx)
				if err != nil {
					return err
				}
				pending, err := agent.Engine.PendingMutations(ctx)
				if err != nil {
					return err
				}

				out := struct {
					Result  any `json:"result"`
					Pending int `json:"pending"`
				}{result, pending}
				return a.print(cmd.OutOrStdout(), out, func(w io.Writer) {
					fmt.Fprintf(w, "pushed %d/%d changes, %d failed, %d still queued\n",
						result.Drain.Succeeded, result.Drain.Attempted, result.Drain.Failed, pending)
					fmt.Fprintf(w, "pulled %d collected words, %d progress records\n",
						result.CollectionsPulled, result.ProgressPulled)
				})
			})
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the dictionary by prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				limit = a.cfg.Origin.SearchDefaultLimit
			}
			return a.withAgent(cmd, false, func(ctx context.Context, agent *entrypoint.Agent) error {
				results, err := agent.Engine.Search(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), results, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					for _, r := range results {
						fmt.Fprintf(tw, "%s\t%s\n", r.Word, r.ConciseDefinition)
					}
					tw.Flush()
				})
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (default SEARCH_DEFAULT_LIMIT)")
	return cmd
}

func newDefineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "define WORD",
		Short: "Show the dictionary entry of a word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAgent(cmd, false, func(ctx context.Context, agent *entrypoint.Agent) error {
				record, err := agent.Engine.WordDetail(ctx, args[0])
				if err != nil {
					return err
				}
				return a.print(cmd.OutOrStdout(), record, func(w io.Writer) {
					writeWord(w, record)
				})
			})
		},
	}
}

func writeWord(w io.Writer, record *entities.WordRecord) {
	header := record.Word
	if record.Pronunciation != "" {
		header += " " + record.Pronunciation
	}
	fmt.Fprintln(w, header)
	if record.ConciseDefinition != "" {
		fmt.Fprintf(w, "  %s\n", record.ConciseDefinition)
	}
	for i, d := range record.Definitions {
		if d.PartOfSpeech != "" {
			fmt.Fprintf(w, "  %d. (%s) %s\n", i+1, d.PartOfSpeech, d.Meaning)
		} else {
			fmt.Fprintf(w, "  %d. %s\n", i+1, d.Meaning)
		}
	}
	for _, ex := range record.Examples {
		fmt.Fprintf(w, "  e.g. %s\n", ex)
	}
	if len(record.Synonyms) > 0 {
		fmt.Fprintf(w, "  synonyms: %s\n", strings.Join(record.Synonyms, ", "))
	}
}

func newReviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "review WORD QUALITY",
		Short: "Record a review graded 0 (blackout) to 5 (perfect)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quality, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quality must be an integer between 0 and 5, got %q", args[1])
			}

			return a.withAgent(cmd, true, func(ctx context.Context, agent *entrypoint.Agent) error {
				record, err := agent.Engine.ReviewWord(ctx, args[0], quality)
				if err != nil {
					return err
				}

				// Nothing else will drain this process's queue, so push now.
				// A failure leaves the review queued for the next run.
				if _, err := agent.Engine.Drain(ctx, agent.Engine.UserID()); err != nil {
					log := a.logger()
					log.Warn().Err(err).Msg("review saved locally, push failed")
				}

				label := srs.FormatNextReview(record.NextReview, now())
				out := struct {
					Progress   entities.ProgressRecord `json:"progress"`
					NextReview string                  `json:"nextReviewLabel"`
				}{record, label}
				return a.print(cmd.OutOrStdout(), out, func(w io.Writer) {
					fmt.Fprintf(w, "%s: %s, next review %s\n", record.Word, srs.QualityLabel(quality), label)
				})
			})
		},
	}
}

func newDueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "due",
		Short: "List words due for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withAgent(cmd, true, func(ctx context.Context, agent *entrypoint.Agent) error {
				due := agent.Engine.DueWords()
				return a.print(cmd.OutOrStdout(), due, func(w io.Writer) {
					if len(due) == 0 {
						fmt.Fprintln(w, "nothing due")
						return
					}
					for _, p := range due {
						fmt.Fprintf(w, "%s\t(%d repetitions)\n", p.Word, p.Repetitions)
					}
				})
			})
		},
	}
}
