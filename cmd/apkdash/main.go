// apkdash is a terminal client for a remote web-to-APK build server. It
// submits URL and archive builds, keeps their state in a local database so
// an interrupted session can be picked up after a restart, and shows the
// server's stats while running.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"apkdash/internal/api"
	"apkdash/internal/auth"
	"apkdash/internal/buildsession"
	"apkdash/internal/dashboard"
	"apkdash/internal/record"
	"apkdash/internal/restore"
	"apkdash/internal/session"
)

const usage = `usage: apkdash <command>

commands:
  run                 show the dashboard and restored build state
  build <url> [name]  submit a URL build
  build-zip <file>    submit a project archive build
  login <username>    log in (password read from stdin)
  logout              log out
  status              print the saved per-pipeline build state
`

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := parseConfig(os.Environ())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel()}))

	command := "run"
	args := os.Args[1:]
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	a, err := newApp(cfg, log)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer a.Close()

	switch command {
	case "run":
		return a.runDashboard(ctx)
	case "build":
		if len(args) < 1 {
			_, _ = fmt.Fprint(os.Stderr, usage)
			return 2
		}
		appName := ""
		if len(args) > 1 {
			appName = args[1]
		}
		return a.buildURL(ctx, args[0], appName)
	case "build-zip":
		if len(args) < 1 {
			_, _ = fmt.Fprint(os.Stderr, usage)
			return 2
		}
		return a.buildZip(ctx, args[0])
	case "login":
		if len(args) < 1 {
			_, _ = fmt.Fprint(os.Stderr, usage)
			return 2
		}
		return a.login(ctx, args[0])
	case "logout":
		return a.logout(ctx)
	case "status":
		return a.status()
	default:
		_, _ = fmt.Fprint(os.Stderr, usage)
		return 2
	}
}

// app wires the client together: one store, one API client, one controller
// per pipeline.
type app struct {
	log   *slog.Logger
	store *record.Store
	cli   *api.Client
	guard *auth.Guard

	tabs    *tabView
	urlCtrl *buildsession.Controller
	zipCtrl *buildsession.Controller
}

func newApp(cfg *config, log *slog.Logger) (*app, error) {
	dbPath, err := cfg.databasePath()
	if err != nil {
		return nil, err
	}

	store, err := record.Open(dbPath, session.ID(), log)
	if err != nil {
		return nil, err
	}

	// The store doubles as the credential source, so every API call made
	// after login carries the Authorization header.
	cli := api.NewClient(cfg.serverURL(), store, log)

	urlCtrl := buildsession.NewController(record.PipelineURL, store,
		func(ctx context.Context, in buildsession.Input) (*api.BuildResult, error) {
			return cli.SubmitURLBuild(ctx, in.(*buildsession.URLInput).Params())
		},
		newPipelineView(os.Stdout, record.PipelineURL), log)

	zipCtrl := buildsession.NewController(record.PipelineZip, store,
		func(ctx context.Context, in buildsession.Input) (*api.BuildResult, error) {
			return cli.SubmitZipBuild(ctx, in.(*buildsession.ZipInput).Params())
		},
		newPipelineView(os.Stdout, record.PipelineZip), log)

	return &app{
		log:     log,
		store:   store,
		cli:     cli,
		guard:   auth.NewGuard(store, cli, log),
		tabs:    newTabView(os.Stdout),
		urlCtrl: urlCtrl,
		zipCtrl: zipCtrl,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("close store", "err", err)
	}
}

// authenticate runs the auth guard and decides navigation: a rejected check
// sends the user to login, an unreachable server does not.
func (a *app) authenticate(ctx context.Context) bool {
	result := a.guard.Check(ctx)
	if !result.Authenticated() {
		reason := result.Reason
		if reason == "" {
			reason = "session rejected"
		}
		fmt.Printf("not logged in (%s), run: apkdash login <username>\n", reason)
		return false
	}
	if result.Status == auth.StatusUnreachable {
		fmt.Println("server unreachable, continuing with the stored session")
	}
	if result.Session != nil {
		fmt.Printf("logged in as %s\n", result.Session.Username)
	}
	return true
}

func (a *app) runDashboard(ctx context.Context) int {
	if !a.authenticate(ctx) {
		return 1
	}

	// Recover persisted build state before anything touches the network.
	orch := restore.NewOrchestrator(a.store, a.urlCtrl, a.zipCtrl, a.tabs, a.log)
	orch.Run()

	a.syncLogs(ctx)

	poller := dashboard.NewPoller(a.cli, &statsView{out: os.Stdout}, a.log)
	poller.Run(ctx)

	a.urlCtrl.Wait()
	a.zipCtrl.Wait()
	return 0
}

// syncLogs pulls the server-side build log for this session into the local
// buffer, then prints whatever the buffer holds. An unreachable server
// leaves the previously buffered lines in place.
func (a *app) syncLogs(ctx context.Context) {
	lines, err := a.cli.Logs(ctx, session.ID())
	if err != nil {
		a.log.Warn("fetch server logs", "err", err)
	} else if len(lines) > 0 {
		entries := make([]record.LogEntry, 0, len(lines))
		now := time.Now()
		for _, line := range lines {
			entries = append(entries, record.LogEntry{Time: now, Message: line})
		}
		if err = a.store.SaveLogs(session.ID(), entries); err != nil {
			a.log.Error("save log buffer", "err", err)
		}
	}

	entries, err := a.store.Logs(session.ID())
	if err != nil {
		a.log.Error("read log buffer", "err", err)
		return
	}
	for _, entry := range entries {
		fmt.Printf("log: %s\n", entry.Message)
	}
}

func (a *app) buildURL(ctx context.Context, rawURL, appName string) int {
	if !a.authenticate(ctx) {
		return 1
	}

	err := a.urlCtrl.Submit(ctx, &buildsession.URLInput{URL: rawURL, AppName: appName})
	if err != nil {
		a.log.Error("url build failed", "err", err)
		return 1
	}
	return 0
}

func (a *app) buildZip(ctx context.Context, path string) int {
	if !a.authenticate(ctx) {
		return 1
	}

	content, err := os.ReadFile(path)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	err = a.zipCtrl.Submit(ctx, &buildsession.ZipInput{
		Filename: path,
		Content:  content,
	})
	if err != nil {
		a.log.Error("zip build failed", "err", err)
		return 1
	}
	return 0
}

func (a *app) login(ctx context.Context, username string) int {
	fmt.Print("password: ")
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	sess, err := a.guard.Login(ctx, username, strings.TrimSpace(password))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("logged in as %s until %s\n", sess.Username, sess.ExpiresAt.Format("2006-01-02 15:04"))
	return 0
}

func (a *app) logout(ctx context.Context) int {
	if err := a.guard.Logout(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Println("logged out")
	return 0
}

func (a *app) status() int {
	for _, pipeline := range []record.Pipeline{record.PipelineURL, record.PipelineZip} {
		rec, err := a.store.Get(pipeline)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		if rec == nil {
			fmt.Printf("[%s] idle\n", pipeline)
			continue
		}
		switch rec.Status {
		case record.StatusResult:
			fmt.Printf("[%s] result: %s (expires in %ds)\n", pipeline, rec.DownloadURL, rec.RemainingSeconds(time.Now()))
		case record.StatusError:
			fmt.Printf("[%s] error: %s\n", pipeline, rec.Message)
		default:
			fmt.Printf("[%s] %s\n", pipeline, rec.Status)
		}
	}
	return 0
}
