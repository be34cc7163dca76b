// Command kpi-export renders KPI reports to files, from exported order and
// member files or from the dashboard API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	reportapp "github.com/kpidash/backend/internal/application/report"
	"github.com/kpidash/backend/internal/domain/kpi"
	"github.com/kpidash/backend/internal/domain/report"
	"github.com/kpidash/backend/internal/infrastructure/config"
	"github.com/kpidash/backend/internal/infrastructure/export"
	csvimport "github.com/kpidash/backend/internal/infrastructure/import"
	"github.com/kpidash/backend/internal/infrastructure/logger"
	"github.com/kpidash/backend/internal/infrastructure/storage"
	"github.com/kpidash/backend/internal/infrastructure/upstream"
)

// errUsage marks flag errors; the usage text has already been printed
var errUsage = errors.New("invalid arguments")

type options struct {
	configPath  string
	ordersPath  string
	membersPath string
	token       string
	query       reportapp.ReportQuery
	format      export.Format
	outDir      string
	reports     []report.Kind
	logLevel    string
	quiet       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "kpi-export:", err)
		}
		os.Exit(1)
	}
}

func parseOptions(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("kpi-export", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	var start, end, format, reports string
	fs.StringVar(&opts.configPath, "config", "", "config file (default: ./config.toml if present)")
	fs.StringVar(&opts.ordersPath, "orders", "", "order CSV export; when empty the upstream API is used")
	fs.StringVar(&opts.membersPath, "members", "", "member JSON export")
	fs.StringVar(&opts.token, "token", os.Getenv("KPI_UPSTREAM_TOKEN"), "bearer token for the upstream API")
	fs.StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	fs.StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	fs.StringVar(&opts.query.Store, "store", "", "store name filter")
	fs.StringVar(&opts.query.User, "user", "", "user name filter")
	fs.StringVar(&format, "format", "csv", "csv or xlsx")
	fs.StringVar(&opts.outDir, "out", ".", "output directory")
	fs.StringVar(&reports, "reports", string(report.KindAll), "comma separated report kinds, one file each")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")
	fs.BoolVar(&opts.quiet, "quiet", false, "hide the progress bar")

	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}

	for _, d := range []string{start, end} {
		if d == "" {
			continue
		}
		if _, ok := kpi.AddDays(d, 0); !ok {
			return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", d)
		}
	}
	if start != "" && end != "" && start > end {
		return nil, fmt.Errorf("-start %s is after -end %s", start, end)
	}
	opts.query.Range = kpi.DateRange{StartDate: start, EndDate: end}

	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	opts.format = f

	seen := make(map[report.Kind]bool)
	for _, part := range strings.Split(reports, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		kind, err := report.ParseKind(part)
		if err != nil {
			return nil, err
		}
		if !seen[kind] {
			seen[kind] = true
			opts.reports = append(opts.reports, kind)
		}
	}
	if len(opts.reports) == 0 {
		return nil, errors.New("no reports selected")
	}
	return opts, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	logCfg := logger.CLIConfig(opts.logLevel)
	log, err := logger.New(logCfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	zone, err := cfg.Business.Zone()
	if err != nil {
		return err
	}
	pricing, err := cfg.Business.Pricing()
	if err != nil {
		return err
	}
	calculator := kpi.NewCalculator(kpi.WithZone(zone), kpi.WithPricing(pricing))

	source, err := newSource(ctx, cfg, opts, log)
	if err != nil {
		return err
	}

	out, err := storage.NewLocalExportStorage(opts.outDir)
	if err != nil {
		return err
	}

	service := reportapp.NewKPIReportService(source, calculator, log)

	bar := progressbar.NewOptions(len(opts.reports),
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSetDescription("exporting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(!opts.quiet),
		progressbar.OptionClearOnFinish(),
	)

	written := make([]string, 0, len(opts.reports))
	for _, kind := range opts.reports {
		bar.Describe(kind.Name())
		file, err := service.Export(ctx, opts.query, kind, opts.format)
		if err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		if err := out.Upload(ctx, file.FileName, file.Data, file.ContentType); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		path, err := out.Path(file.FileName)
		if err != nil {
			return err
		}
		written = append(written, path)
		log.Info("Report written", zap.String("report", string(kind)), zap.String("path", path))
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	for _, path := range written {
		fmt.Fprintln(stdout, path)
	}
	return nil
}

// newSource reads from files when -orders is given, otherwise from the
// upstream API in the configuration.
func newSource(ctx context.Context, cfg *config.Config, opts *options, log *zap.Logger) (reportapp.DataSource, error) {
	if opts.ordersPath != "" {
		return csvimport.NewFileSource(opts.ordersPath, opts.membersPath, log), nil
	}
	if cfg.UsesFiles() {
		return csvimport.NewFileSource(cfg.Data.OrdersFile, cfg.Data.MembersFile, log), nil
	}
	if cfg.Upstream.BaseURL == "" {
		return nil, errors.New("no data source: pass -orders or set upstream.base_url")
	}

	token := cfg.Upstream.Token
	if opts.token != "" {
		token = opts.token
	}
	client, err := upstream.NewClient(upstream.Config{
		BaseURL:          cfg.Upstream.BaseURL,
		Token:            token,
		Timeout:          cfg.Upstream.Timeout,
		MaxResponseBytes: cfg.Upstream.MaxResponseBytes,
	}, upstream.WithLogger(log.Named("upstream")))
	if err != nil {
		return nil, err
	}
	return &snapshotSource{client: client}, nil
}

// snapshotSource fetches each collection once per run so that every report
// in a batch sees the same data.
type snapshotSource struct {
	client  reportapp.DataSource
	orders  []kpi.Order
	members []kpi.Member
}

func (s *snapshotSource) ListOrders(ctx context.Context) ([]kpi.Order, error) {
	if s.orders == nil {
		orders, err := s.client.ListOrders(ctx)
		if err != nil {
			return nil, err
		}
		s.orders = orders
	}
	return s.orders, nil
}

func (s *snapshotSource) ListMembers(ctx context.Context) ([]kpi.Member, error) {
	if s.members == nil {
		members, err := s.client.ListMembers(ctx)
		if err != nil {
			return nil, err
		}
		s.members = members
	}
	return s.members, nil
}
