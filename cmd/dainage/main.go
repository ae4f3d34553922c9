// Command dainage is the terminal client: it authenticates against the
// dainage server, lists projects, starts and stops timer sessions, and can
// watch the running timer live.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"dainage/internal/adapter/memory"
	"dainage/internal/adapter/rest"
	"dainage/internal/domain"
	"dainage/internal/ports"
	"dainage/internal/session"
)

const defaultServerURL = "http://localhost:8080"

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cli := &cli{log: logger, serverURL: serverURL()}
	if err := cli.run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: dainage [-v] <command> [args]

commands:
  login -email <email>        authenticate with the server
  demo                        use the seeded demo account (offline by default)
  projects                    list projects
  start -project <id> [-m <description>]
                              start a timer session
  stop                        stop the running session
  status                      show the running session, if any
  watch                       follow the running timer live`)
}

type cli struct {
	log       *slog.Logger
	serverURL string
}

// gateway builds the session source: remote against the server, or local
// in-memory when DAINAGE_DEMO=local is set. The strategy is picked by
// configuration, never by inspecting user ids.
func (c *cli) gateway() (ports.SessionGateway, ports.ProjectDirectory, string, error) {
	if os.Getenv("DAINAGE_DEMO") == "local" {
		gw := seededLocalGateway()
		return gw, gw, "demo-local", nil
	}
	creds, err := loadCreds()
	if err != nil {
		return nil, nil, "", fmt.Errorf("not logged in (run `dainage login` or `dainage demo`): %w", err)
	}
	client := rest.NewClient(c.serverURL, creds.Token, c.log)
	return client, client, creds.UserID, nil
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(ctx, args)
	case "demo":
		return c.demo(ctx)
	case "projects":
		return c.projects(ctx)
	case "start":
		return c.start(ctx, args)
	case "stop":
		return c.stop(ctx)
	case "status":
		return c.status(ctx)
	case "watch":
		return c.watch(ctx)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Account email")
	fs.Parse(args)
	if *email == "" {
		return errors.New("login: -email is required")
	}

	fmt.Fprint(os.Stderr, "password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	client := rest.NewClient(c.serverURL, "", c.log)
	tok, err := client.Login(ctx, *email, string(pw))
	if err != nil {
		return err
	}
	if err := saveCreds(creds{Token: tok.Token, UserID: tok.UserID}); err != nil {
		return err
	}
	fmt.Println("logged in")
	return nil
}

func (c *cli) demo(ctx context.Context) error {
	client := rest.NewClient(c.serverURL, "", c.log)
	tok, err := client.DemoLogin(ctx)
	if err != nil {
		return err
	}
	if err := saveCreds(creds{Token: tok.Token, UserID: tok.UserID}); err != nil {
		return err
	}
	fmt.Println("using demo account")
	return nil
}

func (c *cli) projects(ctx context.Context) error {
	_, dir, userID, err := c.gateway()
	if err != nil {
		return err
	}
	projects, err := dir.ListProjects(ctx, userID)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.Color)
	}
	return nil
}

func (c *cli) start(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	project := fs.String("project", "", "Project id")
	desc := fs.String("m", "", "Description")
	fs.Parse(args)
	if *project == "" {
		return errors.New("start: -project is required")
	}

	gw, _, userID, err := c.gateway()
	if err != nil {
		return err
	}
	store := session.NewStore(gw)
	if err := store.Start(ctx, userID, *project, *desc); err != nil {
		return err
	}
	snap := store.Snapshot()
	fmt.Printf("started %s on %s\n", snap.Current.ID, projectName(snap.Current))
	return nil
}

func (c *cli) stop(ctx context.Context) error {
	gw, _, userID, err := c.gateway()
	if err != nil {
		return err
	}
	store := session.NewStore(gw)
	if err := store.LoadActive(ctx, userID); err != nil {
		return err
	}
	if !store.Snapshot().Running {
		fmt.Println("no active timer")
		return nil
	}
	if err := store.Stop(ctx); err != nil {
		return err
	}
	snap := store.Snapshot()
	fmt.Printf("stopped %s after %s\n", projectName(snap.Current), snap.FormattedTime())
	return nil
}

func (c *cli) status(ctx context.Context) error {
	gw, _, userID, err := c.gateway()
	if err != nil {
		return err
	}
	store := session.NewStore(gw)
	if err := store.LoadActive(ctx, userID); err != nil {
		return err
	}
	snap := store.Snapshot()
	if !snap.Running {
		fmt.Println("no active timer")
		return nil
	}
	fmt.Printf("%s  %s  %s\n", projectName(snap.Current), snap.FormattedTime(), snap.Current.Description)
	return nil
}

func (c *cli) watch(ctx context.Context) error {
	gw, _, userID, err := c.gateway()
	if err != nil {
		return err
	}
	store := session.NewStore(gw)
	if err := store.LoadActive(ctx, userID); err != nil {
		return err
	}
	if !store.Snapshot().Running {
		fmt.Println("no active timer")
		return nil
	}

	ticker := session.NewTicker(store)
	ticker.Start()
	defer ticker.Stop()

	render := time.NewTicker(time.Second)
	defer render.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case <-render.C:
			snap := store.Snapshot()
			fmt.Printf("\r%s  %s  ", projectName(snap.Current), snap.FormattedTime())
		}
	}
}

// projectName resolves the display name, falling back when the join is
// missing.
func projectName(e *domain.TimeEntry) string {
	if e != nil && e.Project != nil && e.Project.Name != "" {
		return e.Project.Name
	}
	return "Unknown Project"
}

// seededLocalGateway builds the offline demo gateway with sample projects.
func seededLocalGateway() *memory.Gateway {
	gw := memory.NewGateway()
	gw.SeedProject(domain.Project{Name: "Website", Color: "#3B82F6"})
	gw.SeedProject(domain.Project{Name: "Mobile App", Color: "#10B981"})
	gw.SeedProject(domain.Project{Name: "Internal Tools", Color: "#F59E0B"})
	return gw
}

type creds struct {
	Token  string
	UserID string
}

func serverURL() string {
	if v := os.Getenv("DAINAGE_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return defaultServerURL
}

func credsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".dainage", "credentials"), nil
}

func saveCreds(c creds) error {
	path, err := credsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(c.Token+"\n"+c.UserID+"\n"), 0o600)
}

func loadCreds() (creds, error) {
	path, err := credsPath()
	if err != nil {
		return creds{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return creds{}, err
	}
	lines := strings.SplitN(strings.TrimSpace(string(b)), "\n", 2)
	if len(lines) != 2 {
		return creds{}, errors.New("malformed credentials file")
	}
	return creds{Token: strings.TrimSpace(lines[0]), UserID: strings.TrimSpace(lines[1])}, nil
}
