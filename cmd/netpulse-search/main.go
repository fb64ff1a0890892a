package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/netpulse/webclient/internal/apiclient"
	"github.com/netpulse/webclient/internal/config"
	"github.com/netpulse/webclient/internal/search"
	"github.com/netpulse/webclient/internal/tui"
	"github.com/netpulse/webclient/internal/util"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	logPath := flag.String("log", "netpulse-search.log", "log file; the terminal belongs to the UI")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, *logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metrics := util.NewMetrics("netpulse")
	client := apiclient.NewClient(apiclient.ConfigFromAPI(cfg.API), logger, metrics)

	nav := &tui.Navigation{}
	notifier := tui.NewNotifier()
	session := search.NewSession(client, nav,
		search.WithOptions(search.Options{
			DebounceDelay:  cfg.Search.DebounceDelay,
			MinQueryLength: cfg.Search.MinQueryLength,
			SuggestLimit:   cfg.Search.SuggestLimit,
			SearchLimit:    cfg.Search.SearchLimit,
		}),
		search.WithLogger(logger),
		search.WithMetrics(metrics),
		search.WithListener(notifier.Notify),
	)
	defer session.Close()

	logger.Infow("Search client started", "api", client.BaseURL())

	p := tea.NewProgram(tui.New(session, nav, notifier), tea.WithMouseCellMotion())
	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}

	if m, ok := final.(tui.Model); ok && m.Route() != "" {
		session.RouteChanged()
		fmt.Println(m.Route())
	}
}
