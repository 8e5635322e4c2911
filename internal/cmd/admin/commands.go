package admin

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	platformgrpc "github.com/louisbranch/tapestry/internal/platform/grpc"
	adminsvc "github.com/louisbranch/tapestry/internal/services/admin"
	server "github.com/louisbranch/tapestry/internal/services/api/app"
	"github.com/louisbranch/tapestry/internal/services/game/character"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient"
)

const usage = "login, logout, accounts, roles, delete-account, characters, health"

// ErrUnknownCommand is returned for subcommands outside usage.
var ErrUnknownCommand = errors.New("unknown command")

type runner struct {
	session *adminsvc.Session
	cfg     Config
	in      *bufio.Reader
	out     io.Writer
}

// Execute runs cfg.Command against session.
func Execute(ctx context.Context, session *adminsvc.Session, cfg Config, in io.Reader, out io.Writer) error {
	r := &runner{session: session, cfg: cfg, in: bufio.NewReader(in), out: out}
	args := cfg.Args
	switch cfg.Command {
	case "login":
		return r.login(ctx, args)
	case "logout":
		if err := session.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Signed out")
		return nil
	case "accounts":
		return r.accounts(ctx)
	case "roles":
		return r.roles(ctx, args)
	case "delete-account":
		return r.deleteAccount(ctx, args)
	case "characters":
		return r.characters(ctx, args)
	case "health":
		return r.health(ctx, args)
	default:
		return fmt.Errorf("%w %q: expected one of %s", ErrUnknownCommand, cfg.Command, usage)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (r *runner) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	pass := fs.String("password", "", "account password (read from stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	password := *pass
	if password == "" {
		line, err := r.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	profile, err := r.session.Login(ctx, *email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Signed in as %s\n", profile.Email)
	return nil
}

func (r *runner) accounts(ctx context.Context) error {
	profiles, err := r.session.Accounts(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLES\tCREATED")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Email, p.FullName, strings.Join(p.Roles, ","), p.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func (r *runner) roles(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: roles <account-id> <role[,role...]>")
	}
	profile, err := r.session.SetRoles(ctx, args[0], strings.Split(strings.Join(args[1:], ","), ","))
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s roles=%s\n", profile.Email, strings.Join(profile.Roles, ","))
	return nil
}

func (r *runner) deleteAccount(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: delete-account <account-id> -yes")
	}
	fs := newFlagSet("delete-account")
	yes := fs.Bool("yes", false, "confirm deletion")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if !*yes {
		return errors.New("deletion removes the account and its sheets; pass -yes to confirm")
	}
	if err := r.session.DeleteAccount(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Account deleted")
	return nil
}

func (r *runner) characters(ctx context.Context, args []string) error {
	fs := newFlagSet("characters")
	var params apiclient.ListParams
	fs.StringVar(&params.Keyword, "keyword", "", "name match")
	fs.StringVar(&params.Status, "status", "", "active or archived")
	fs.StringVar(&params.Player, "player", "", "owning account id")
	fs.StringVar(&params.Filter, "filter", "", "AIP-160 filter")
	fs.IntVar(&params.Page, "page", 0, "page number")
	fs.IntVar(&params.Limit, "limit", 0, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	page, err := r.session.Characters(ctx, params)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPLAYER\tSTATUS")
	for _, doc := range page.Items {
		sheet, err := character.FromDocument(doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", sheet.ID, sheet.Name, sheet.Player, character.DisplayStatus(sheet.Status))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%d of %d\n", len(page.Items), page.Total)
	return nil
}

// health probes the overall server and each store component.
func (r *runner) health(ctx context.Context, args []string) error {
	components := args
	if len(components) == 0 {
		components = []string{"", server.ComponentAuth, server.ComponentGame}
	}
	var failed bool
	for _, component := range components {
		label := component
		if label == "" {
			label = "server"
		}
		if err := platformgrpc.Probe(ctx, r.cfg.HealthAddr, component, r.cfg.ProbeTimeout, nil); err != nil {
			failed = true
			fmt.Fprintf(r.out, "%s: NOT SERVING (%v)\n", label, err)
			continue
		}
		fmt.Fprintf(r.out, "%s: SERVING\n", label)
	}
	if failed {
		return errors.New("health check failed")
	}
	return nil
}
