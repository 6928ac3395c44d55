package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"hash"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/go-kit/log/level"
	"github.com/robotomize/eurofx"
	"github.com/robotomize/eurofx/app"
	"github.com/robotomize/eurofx/feed"
	"github.com/robotomize/eurofx/feed/httputil"
	"github.com/robotomize/eurofx/internal/config"
	"github.com/robotomize/eurofx/internal/hashio"
	"github.com/robotomize/eurofx/internal/logging"
)

var headerFunc = color.New(color.FgCyan, color.Bold).SprintFunc()

var errUnknownHash = errors.New("unknown hash alg, variants: md5, sha1")

var errNothingToDo = errors.New("nothing to do: use -list, -amount with -from and -to, or -series")

type cliOptions struct {
	list   bool
	amount string
	from   string
	to     string
	series string
	hash   string
}

func main() {
	flagSet := flag.NewFlagSet("eurofx", flag.ContinueOnError)

	var opts cliOptions
	envFile := flagSet.String("env", "", "path to an env file, .env by default")
	flagSet.BoolVar(&opts.list, "list", false, "print the latest rates")
	flagSet.StringVar(&opts.amount, "amount", "", "amount to convert")
	flagSet.StringVar(&opts.from, "from", "", "currency to convert from")
	flagSet.StringVar(&opts.to, "to", "", "currency to convert to")
	flagSet.StringVar(&opts.series, "series", "", "print the rate history of the currency")
	flagSet.StringVar(&opts.hash, "hash", "", "hash alg for comparing feed documents, variants: md5, sha1")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}

	cfg, err := config.Load(envFiles...)
	if err != nil {
		_ = level.Error(logging.DefaultLogger()).Log("msg", "load config", "err", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(os.Stderr, cfg.LogLevel)
	ctx := logging.WithLogger(context.Background(), logger)

	if err := realMain(ctx, cfg, opts, os.Stdout); err != nil {
		_ = level.Error(logger).Log("err", err)
		os.Exit(1)
	}
}

func realMain(ctx context.Context, cfg *config.Config, opts cliOptions, w io.Writer) error {
	if !opts.list && opts.amount == "" && opts.series == "" {
		return errNothingToDo
	}

	logger := logging.FromContext(ctx)

	resource, err := feed.ParseResource(cfg.FeedURL, cfg.FeedFormat)
	if err != nil {
		return fmt.Errorf("feed resource: %w", err)
	}

	hasherFunc, err := hasherFor(opts.hash)
	if err != nil {
		return err
	}

	source, err := feed.NewSource(
		httputil.NewDefaultClient(cfg.RequestTimeout),
		feed.WithResources(resource),
		feed.WithHasher(hasherFunc),
	)
	if err != nil {
		return fmt.Errorf("new source: %w", err)
	}

	a := app.New(
		source,
		app.WithLogger(logger),
		app.WithRetryNum(cfg.RetryNum),
		app.WithRetryDuration(cfg.RetryDuration),
		app.WithRequestTimeout(cfg.RequestTimeout),
		app.WithBaseCurrency(cfg.BaseCurrency),
	)

	report, err := a.Refresh(ctx)
	if err != nil {
		return err
	}

	_ = level.Debug(logger).Log("msg", "refresh", "resource", report.Resource, "took", report.Took)

	if opts.list {
		if err := printRates(w, a, report.Latest); err != nil {
			return err
		}
	}

	if opts.amount != "" {
		if err := printConversion(w, a, opts); err != nil {
			return err
		}
	}

	if opts.series != "" {
		if err := printSeries(ctx, w, a, opts.series); err != nil {
			return err
		}
	}

	return nil
}

// hasherFor maps the -hash flag to a hasher, md5 when the flag is empty
func hasherFor(name string) (func() hash.Hash, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "md5":
		return hashio.MD5(), nil
	case "sha1":
		return hashio.SHA1(), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownHash, name)
	}
}

func printRates(w io.Writer, a *app.App, latest time.Time) error {
	records, err := a.Currencies()
	if err != nil {
		return fmt.Errorf("currencies: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	_, _ = fmt.Fprintf(tw, "%s\t%s\n", latest.Format(eurofx.DateLayout), headerFunc("1 "+a.Table().Base()))
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", r.Code(), strconv.FormatFloat(r.Rate(), 'f', -1, 64))
	}

	return tw.Flush()
}

func printConversion(w io.Writer, a *app.App, opts cliOptions) error {
	amount, err := strconv.ParseFloat(strings.TrimSpace(opts.amount), 64)
	if err != nil {
		return fmt.Errorf("%w: %q", eurofx.ErrInvalidAmount, opts.amount)
	}

	conv, err := a.Exchange(app.ExchangeRequest{Amount: &amount, From: opts.from, To: opts.to})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s %s = %s %s\n",
		strconv.FormatFloat(amount, 'f', -1, 64),
		strings.ToUpper(opts.from),
		headerFunc(conv.Display()),
		strings.ToUpper(opts.to),
	)

	return err
}

func printSeries(ctx context.Context, w io.Writer, a *app.App, code string) error {
	points, err := a.SelectCurrency(ctx, code)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	for _, p := range points {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n",
			time.Unix(p.Timestamp, 0).UTC().Format(eurofx.DateLayout),
			strconv.FormatFloat(p.Value, 'f', -1, 64),
		)
	}

	return tw.Flush()
}
