package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/llehouerou/scrubber/internal/audit"
	"github.com/llehouerou/scrubber/internal/cache"
	"github.com/llehouerou/scrubber/internal/config"
	"github.com/llehouerou/scrubber/internal/errmsg"
	"github.com/llehouerou/scrubber/internal/events"
	"github.com/llehouerou/scrubber/internal/lastfm"
	"github.com/llehouerou/scrubber/internal/musicbrainz"
	"github.com/llehouerou/scrubber/internal/provider"
	"github.com/llehouerou/scrubber/internal/rewrite"
	"github.com/llehouerou/scrubber/internal/scrubber"
	"github.com/llehouerou/scrubber/internal/source"
	"github.com/llehouerou/scrubber/internal/state"
	"github.com/llehouerou/scrubber/internal/storage"
)

// Runner holds the dependencies shared by CLI commands and provides a
// method per command action.
type Runner struct {
	cfg    *config.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts configures a Runner.
type RunnerOpts struct {
	Config *config.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = &config.Config{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{
		cfg:    opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		runCommand, authCommand, artistCommand, cacheCommand, pendingCommand, auditCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func (r *Runner) writePlainln(format string, args ...any) {
	fmt.Fprintf(r.output, format+"\n", args...)
}

// storageDir resolves the state document directory: configured path or
// the XDG data dir.
func (r *Runner) storageDir() string {
	if r.cfg.StorageDir != "" {
		return r.cfg.StorageDir
	}
	return filepath.Join(xdg.DataHome, "scrubber")
}

func (r *Runner) openStore() (*storage.FileStore, error) {
	return storage.NewFileStore(r.storageDir(), r.logger)
}

// apiClient builds the Last.fm API client, attaching the stored
// session when one exists. A stored session that fails validation is
// cleared, forcing re-auth; history reads fall back to the configured
// username.
func (r *Runner) apiClient(ctx context.Context, stateMgr *state.Manager) (*lastfm.Client, error) {
	if !r.cfg.HasLastfmConfig() {
		return nil, fmt.Errorf("lastfm api_key and api_secret are not configured")
	}
	client := lastfm.New(r.cfg.Lastfm.APIKey, r.cfg.Lastfm.APISecret)

	sess, err := stateMgr.GetSession()
	if err != nil {
		return nil, fmt.Errorf("%s", errmsg.Format(errmsg.OpSessionLoad, err))
	}
	if sess != nil {
		client.SetSession(sess.Username, sess.SessionKey)
		if !client.ValidateSession(ctx) {
			r.logger.Warn("stored session is no longer valid, clearing it")
			if derr := stateMgr.DeleteSession(); derr != nil {
				r.logger.Warn("failed to clear stored session", "err", derr)
			}
			sess = nil
		}
	}
	switch {
	case sess != nil:
	case r.cfg.Lastfm.Username != "":
		// History reads only need a username, not an authenticated
		// session.
		client.SetSession(r.cfg.Lastfm.Username, "")
	default:
		return nil, fmt.Errorf("no Last.fm session: run 'scrubber auth' or set lastfm.username")
	}
	return client, nil
}

// trackSource wraps the API client in the persistent track cache.
func (r *Runner) trackSource(client *lastfm.Client) (*source.CachedSource, error) {
	path, err := cache.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("resolve cache path: %w", err)
	}
	c := cache.Load(path, r.logger)
	return source.NewCachedSource(client, c, path, r.logger), nil
}

// buildProvider assembles the suggestion providers enabled in the
// configuration, merged in priority order.
func (r *Runner) buildProvider(store storage.Store) (provider.Provider, error) {
	var providers []provider.Provider
	var lookup provider.MetadataLookup

	if r.cfg.RulesEnabled() || r.cfg.CanonicalEnabled() {
		lookup = musicbrainz.NewClient()
	}

	if r.cfg.RulesEnabled() {
		rules, err := store.LoadRules()
		if err != nil {
			return nil, fmt.Errorf("%s", errmsg.Format(errmsg.OpRulesLoad, err))
		}
		if len(rules) == 0 {
			rules = rewrite.DefaultRules()
		}
		providers = append(providers, provider.NewRulesProvider(rules, lookup, r.logger))
	}
	if r.cfg.CanonicalEnabled() {
		providers = append(providers, provider.NewCanonicalProvider(lookup, r.logger))
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no suggestion providers enabled")
	}
	return provider.NewMulti(r.logger, providers...), nil
}

// runtime bundles the assembled pipeline for the run and artist
// commands.
type runtime struct {
	stateMgr *state.Manager
	store    *storage.FileStore
	src      *source.CachedSource
	scrub    *scrubber.Scrubber
	hub      *events.Hub
	audit    *audit.Logger
}

// buildRuntime wires config, state, cache, providers and the run loop
// together. Without edit credentials the pipeline is forced into dry
// run.
func (r *Runner) buildRuntime(ctx context.Context, dryRun bool) (*runtime, error) {
	stateMgr, err := state.Open()
	if err != nil {
		return nil, fmt.Errorf("%s", errmsg.Format(errmsg.OpInitialize, err))
	}

	store, err := r.openStore()
	if err != nil {
		stateMgr.Close()
		return nil, err
	}

	client, err := r.apiClient(ctx, stateMgr)
	if err != nil {
		stateMgr.Close()
		return nil, err
	}

	src, err := r.trackSource(client)
	if err != nil {
		stateMgr.Close()
		return nil, err
	}

	prov, err := r.buildProvider(store)
	if err != nil {
		stateMgr.Close()
		return nil, err
	}

	scrubCfg := r.cfg.GetScrubberConfig()
	dryRun = dryRun || scrubCfg.DryRun

	var submitter scrubber.EditSubmitter
	if r.cfg.HasEditSession() {
		submitter = lastfm.NewEditClient(
			r.cfg.Lastfm.Username, r.cfg.Lastfm.CSRFToken, r.cfg.Lastfm.SessionID)
	} else if !dryRun {
		r.logger.Warn("no edit session configured, forcing dry run")
		dryRun = true
	}

	hub := events.NewHub()
	auditLogger := audit.NewLogger(hub, stateMgr, r.logger)
	auditLogger.Start()

	scrub := scrubber.New(scrubber.Config{
		Interval:  intervalDuration(scrubCfg.IntervalSeconds),
		BatchSize: scrubCfg.BatchSize,
		DryRun:    dryRun,
	}, scrubber.Deps{
		// Confirmation toggles from config.toml win over the stored
		// settings document.
		Store: storage.OverrideStore{Store: store, Overrides: r.settingsOverrides()},
		Source:    src,
		Provider:  prov,
		Submitter: submitter,
		Retries:   stateMgr,
		Hub:       hub,
		Logger:    r.logger,
	})

	return &runtime{
		stateMgr: stateMgr,
		store:    store,
		src:      src,
		scrub:    scrub,
		hub:      hub,
		audit:    auditLogger,
	}, nil
}

// close tears the runtime down in reverse order: the audit logger
// drains before the hub and state close.
func (rt *runtime) close() {
	rt.audit.Stop()
	rt.hub.Close()
	rt.stateMgr.Close()
}

// settingsOverrides maps the config confirmation toggles onto the
// stored settings document.
func (r *Runner) settingsOverrides() storage.SettingsOverrides {
	return storage.SettingsOverrides{
		RequireConfirmation:            r.cfg.Scrubber.RequireConfirmation,
		RequireConfirmationForEdits:    r.cfg.Scrubber.RequireConfirmationForEdits,
		RequireConfirmationForNewRules: r.cfg.Scrubber.RequireConfirmationForRules,
	}
}

func intervalDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
