// File: cmd/fill.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/autofill"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/browser"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/config"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/dom"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/identity"
)

type fillOptions struct {
	input   string
	url     string
	output  string
	report  bool
	record  identity.Record
	noFetch bool
	headed  bool
	hold    bool
}

// liveBrowser is the part of a browser session `fill --url` drives.
type liveBrowser interface {
	Snapshot(ctx context.Context, url string) (string, error)
	Replay(ctx context.Context, decisions []autofill.FillDecision) (*browser.ReplayReport, error)
	Wait(ctx context.Context)
	Close()
}

// launchBrowser is swapped out in tests.
var launchBrowser = func(ctx context.Context, cfg config.BrowserConfig, proxyAddr string, logger *zap.Logger) (liveBrowser, error) {
	return browser.Launch(ctx, cfg, proxyAddr, logger)
}

// newFillCmd creates the `fill` command.
func newFillCmd() *cobra.Command {
	opts := &fillOptions{}
	fillCmd := &cobra.Command{
		Use:   "fill [page.html]",
		Short: "Fills every form of an HTML page with a generated identity",
		Long: `Reads an HTML page, fills its signup forms and writes the filled page.

With --url the page is opened in Chrome instead and the fill is applied to
the live page, through the current proxy when one is set.

Identity fields given as flags are used as is. When none are given, a
fresh identity bundle (with a disposable mailbox) is generated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.input = args[0]
			}
			if opts.url != "" && opts.input != "" {
				return errors.New("a page file and --url cannot be combined")
			}
			return runWithComponents(cmd, func(ctx context.Context, cfg config.Interface, c *components, logger *zap.Logger) error {
				if opts.url != "" {
					if opts.headed {
						cfg.SetBrowserHeadless(false)
					}
					return runLiveFill(ctx, cmd, cfg, opts, c, logger)
				}
				return runFill(ctx, cmd, opts, c, logger)
			})
		},
	}

	fillCmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the filled page here instead of stdout")
	fillCmd.Flags().BoolVar(&opts.report, "report", false, "print the fill decisions as JSON on stderr")
	fillCmd.Flags().StringVar(&opts.url, "url", "", "open this page in Chrome and fill it there")
	fillCmd.Flags().BoolVar(&opts.headed, "headed", false, "show the browser window (with --url)")
	fillCmd.Flags().BoolVar(&opts.hold, "hold", false, "keep the browser open until interrupted (with --url)")
	fillCmd.Flags().BoolVar(&opts.noFetch, "offline", false, "never call the identity services; missing fields stay empty")
	fillCmd.Flags().StringVar(&opts.record.Username, "username", "", "username to fill")
	fillCmd.Flags().StringVar(&opts.record.Name, "name", "", "full name to fill")
	fillCmd.Flags().StringVar(&opts.record.Address, "address", "", "postal address to fill")
	fillCmd.Flags().StringVar(&opts.record.Phone, "phone", "", "phone number to fill")
	fillCmd.Flags().StringVar(&opts.record.Email, "email", "", "email address to fill")
	fillCmd.Flags().StringVar(&opts.record.Password, "password", "", "password to fill")
	return fillCmd
}

func runFill(ctx context.Context, cmd *cobra.Command, opts *fillOptions, c *components, logger *zap.Logger) error {
	var in io.Reader = cmd.InOrStdin()
	if opts.input != "" && opts.input != "-" {
		f, err := os.Open(opts.input)
		if err != nil {
			return fmt.Errorf("failed to open page: %w", err)
		}
		defer f.Close()
		in = f
	}

	doc, err := dom.Parse(in)
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}

	res, err := fillDocument(ctx, cmd, opts, doc, c, logger)
	if err != nil || res == nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := doc.Render(out); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}

	stderr := cmd.ErrOrStderr()
	printSuccess(stderr, "Filled %d field(s). Run %s", res.Filled, res.RunID)
	if opts.report {
		return printJSON(stderr, res.Redacted())
	}
	return nil
}

// runLiveFill captures the page from a browser, fills the capture and
// replays every decision on the live page.
func runLiveFill(ctx context.Context, cmd *cobra.Command, cfg config.Interface, opts *fillOptions, c *components, logger *zap.Logger) error {
	var proxyAddr string
	if cfg.Browser().UseProxy {
		proxyAddr, _ = c.Proxies.Current(ctx)
	}

	b, err := launchBrowser(ctx, cfg.Browser(), proxyAddr, logger)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer b.Close()

	page, err := b.Snapshot(ctx, opts.url)
	if err != nil {
		return err
	}
	doc, err := dom.Parse(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}

	res, err := fillDocument(ctx, cmd, opts, doc, c, logger)
	if err != nil || res == nil {
		return err
	}

	report, err := b.Replay(ctx, res.Decisions)
	if err != nil {
		return fmt.Errorf("failed to fill live page: %w", err)
	}

	stderr := cmd.ErrOrStderr()
	printSuccess(stderr, "Filled %d field(s) on %s. Run %s", report.Applied, opts.url, res.RunID)
	if len(report.Missing) > 0 {
		printFailure(stderr, "%d field(s) changed on the page before they could be filled", len(report.Missing))
	}
	if opts.report {
		if err := printJSON(stderr, res.Redacted()); err != nil {
			return err
		}
	}
	if opts.hold {
		printSuccess(stderr, "Browser left open. Press Ctrl+C to close it.")
		b.Wait(ctx)
	}
	return nil
}

// fillDocument resolves the identity and fills doc. A nil result with a nil
// error means the page had no forms and that was already reported.
func fillDocument(ctx context.Context, cmd *cobra.Command, opts *fillOptions, doc *dom.Document, c *components, logger *zap.Logger) (*autofill.FillResult, error) {
	rec := opts.record
	if rec == (identity.Record{}) && !opts.noFetch {
		bundle, err := c.Bundler.Bundle(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate identity: %w", err)
		}
		rec = bundle.Record
		logger.Info("Generated identity", zap.String("username", rec.Username), zap.String("email", rec.Email))
	}

	doc.OnEvent(func(ev dom.Event) {
		logger.Debug("Dispatched event", zap.String("type", string(ev.Type)), zap.String("target", ev.Target))
	})

	res, err := c.Filler.FillForm(ctx, rec, doc)
	if errors.Is(err, autofill.ErrNoForms) {
		printFailure(cmd.ErrOrStderr(), "%s", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
