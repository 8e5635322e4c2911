package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/louisbranch/tapestry/internal/platform/dotpath"
	"github.com/louisbranch/tapestry/internal/services/game/character"
	playersvc "github.com/louisbranch/tapestry/internal/services/player"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient"
	"github.com/louisbranch/tapestry/internal/services/shared/optimistic"
)

const usage = "login, register, logout, me, sheets, show, new, rename, notes, hp, threads, aspect, set, delete"

// ErrUnknownCommand is returned for subcommands outside usage.
var ErrUnknownCommand = errors.New("unknown command")

type runner struct {
	session *playersvc.Session
	in      *bufio.Reader
	out     io.Writer
}

// Execute runs one subcommand against session.
func Execute(ctx context.Context, session *playersvc.Session, in io.Reader, out io.Writer, command string, args []string) error {
	r := &runner{session: session, in: bufio.NewReader(in), out: out}
	switch command {
	case "login":
		return r.login(ctx, args)
	case "register":
		return r.register(ctx, args)
	case "logout":
		if err := session.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Signed out")
		return nil
	case "me":
		return r.me(ctx)
	case "sheets":
		return r.sheets(ctx, args)
	case "show":
		return r.show(ctx, args)
	case "new":
		return r.create(ctx, args)
	case "rename":
		return r.rename(ctx, args)
	case "notes":
		return r.notes(ctx, args)
	case "hp":
		return r.hp(ctx, args)
	case "threads":
		return r.threads(ctx, args)
	case "aspect":
		return r.aspect(ctx, args)
	case "set":
		return r.set(ctx, args)
	case "delete":
		return r.delete(ctx, args)
	default:
		return fmt.Errorf("%w %q: expected one of %s", ErrUnknownCommand, command, usage)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// password returns the flag value or reads one line from input.
func (r *runner) password(value string) (string, error) {
	if value != "" {
		return value, nil
	}
	line, err := r.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

func (r *runner) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	pass := fs.String("password", "", "account password (read from stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	password, err := r.password(*pass)
	if err != nil {
		return err
	}
	profile, err := r.session.Login(ctx, *email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Signed in as %s\n", profile.Email)
	return nil
}

func (r *runner) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	email := fs.String("email", "", "account email")
	pass := fs.String("password", "", "account password (read from stdin when empty)")
	name := fs.String("name", "", "full name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	password, err := r.password(*pass)
	if err != nil {
		return err
	}
	profile, err := r.session.Register(ctx, apiclient.RegisterInput{Email: *email, Password: password, FullName: *name})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Account created for %s\n", profile.Email)
	return nil
}

func (r *runner) me(ctx context.Context) error {
	profile, err := r.session.Me(ctx)
	if err != nil {
		return err
	}
	if profile == nil {
		fmt.Fprintln(r.out, "Not signed in")
		return nil
	}
	fmt.Fprintf(r.out, "%s <%s> roles=%s\n", profile.FullName, profile.Email, strings.Join(profile.Roles, ","))
	return nil
}

func (r *runner) sheets(ctx context.Context, args []string) error {
	fs := newFlagSet("sheets")
	var params apiclient.ListParams
	fs.StringVar(&params.Keyword, "keyword", "", "name match")
	fs.StringVar(&params.Status, "status", "", "active or archived")
	fs.StringVar(&params.Campaign, "campaign", "", "campaign id")
	fs.StringVar(&params.Filter, "filter", "", "AIP-160 filter")
	fs.IntVar(&params.Page, "page", 0, "page number")
	fs.IntVar(&params.Limit, "limit", 0, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	page, err := r.session.Sheets(ctx, params)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tHP\tTHREADS")
	for _, doc := range page.Items {
		sheet, err := character.FromDocument(doc)
		if err != nil {
			return err
		}
		hp, threads := sheet.Body.Resources.HP, sheet.Body.Resources.Threads
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d/%d\n", sheet.ID, sheet.Name, character.DisplayStatus(sheet.Status), hp.Current, hp.Max, threads.Current, threads.Max)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%d of %d\n", len(page.Items), page.Total)
	return nil
}

func requireArgs(args []string, n int, shape string) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", shape)
	}
	return nil
}

func (r *runner) show(ctx context.Context, args []string) error {
	if err := requireArgs(args, 1, "show <id>"); err != nil {
		return err
	}
	sheet, err := r.session.Sheet(ctx, args[0])
	if err != nil {
		return err
	}
	return r.printJSON(sheet)
}

func (r *runner) printJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *runner) create(ctx context.Context, args []string) error {
	fs := newFlagSet("new")
	name := fs.String("name", "", "character name")
	campaign := fs.String("campaign", "", "campaign id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sheet, err := r.session.CreateCharacter(ctx, apiclient.CreateCharacterInput{Name: *name, Campaign: *campaign})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Created %v (%v)\n", sheet["name"], sheet["_id"])
	return nil
}

// rename and notes go through the autosaver so a one-shot edit takes the
// same path as interactive typing.
func (r *runner) rename(ctx context.Context, args []string) error {
	if err := requireArgs(args, 2, "rename <id> <name>"); err != nil {
		return err
	}
	saver := r.session.Autosaver(ctx, args[0])
	saver.SetName(strings.Join(args[1:], " "))
	saver.Flush()
	if len(saver.Mutations()) == 0 {
		return errors.New("name cannot be blank")
	}
	if err := saver.Wait(ctx); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Name saved")
	return nil
}

func (r *runner) notes(ctx context.Context, args []string) error {
	if err := requireArgs(args, 1, "notes <id> <text>"); err != nil {
		return err
	}
	saver := r.session.Autosaver(ctx, args[0])
	saver.SetNotes(strings.Join(args[1:], " "))
	saver.Flush()
	if err := saver.Wait(ctx); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Notes saved")
	return nil
}

func (r *runner) settle(ctx context.Context, m *optimistic.Mutation) (character.Sheet, error) {
	record, err := m.Wait(ctx)
	if err != nil {
		return character.Sheet{}, err
	}
	return character.FromDocument(record)
}

// optionalInt maps a negative flag value to "not set".
func optionalInt(v int) *int {
	if v < 0 {
		return nil
	}
	return &v
}

func (r *runner) hp(ctx context.Context, args []string) error {
	if err := requireArgs(args, 1, "hp <id> -mode damage|heal|set -amount N"); err != nil {
		return err
	}
	fs := newFlagSet("hp")
	mode := fs.String("mode", string(character.HPDamage), "damage, heal or set")
	amount := fs.Int("amount", 0, "points to apply")
	maxHP := fs.Int("max", -1, "new maximum HP")
	temp := fs.Int("temp", -1, "new temporary HP")
	tempFirst := fs.Bool("temp-first", false, "temporary HP absorbs damage first")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	m, err := r.session.AdjustHP(ctx, args[0], character.HPChange{
		Mode:         character.HPMode(*mode),
		Amount:       *amount,
		Max:          optionalInt(*maxHP),
		Temp:         optionalInt(*temp),
		UseTempFirst: *tempFirst,
	})
	if err != nil {
		return err
	}
	sheet, err := r.settle(ctx, m)
	if err != nil {
		return err
	}
	hp := sheet.Body.Resources.HP
	fmt.Fprintf(r.out, "HP %d/%d (temp %d)\n", hp.Current, hp.Max, hp.TempValue())
	return nil
}

func (r *runner) threads(ctx context.Context, args []string) error {
	if err := requireArgs(args, 1, "threads <id> -mode spend|gain|set -amount N"); err != nil {
		return err
	}
	fs := newFlagSet("threads")
	mode := fs.String("mode", string(character.ThreadsSpend), "spend, gain or set")
	amount := fs.Int("amount", 1, "threads to apply")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	m, err := r.session.AdjustThreads(ctx, args[0], character.ThreadsChange{Mode: character.ThreadsMode(*mode), Amount: *amount})
	if err != nil {
		return err
	}
	sheet, err := r.settle(ctx, m)
	if err != nil {
		return err
	}
	threads := sheet.Body.Resources.Threads
	fmt.Fprintf(r.out, "Threads %d/%d\n", threads.Current, threads.Max)
	return nil
}

func (r *runner) aspect(ctx context.Context, args []string) error {
	if err := requireArgs(args, 3, "aspect <id> <group.key> <delta>"); err != nil {
		return err
	}
	group, key, ok := strings.Cut(args[1], dotpath.Separator)
	if !ok {
		return fmt.Errorf("aspect must be group.key, got %q", args[1])
	}
	delta, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("parse delta: %w", err)
	}
	m, err := r.session.StepAspect(ctx, args[0], group, key, delta)
	if err != nil {
		return err
	}
	sheet, err := r.settle(ctx, m)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s.%s = %d\n", group, key, sheet.Body.Aspects.AspectValue(group, key))
	return nil
}

// parseAssignments turns path=value pairs into an ordered patch. Values that
// parse as JSON keep their type; anything else is a string.
func parseAssignments(pairs []string) (dotpath.Patch, error) {
	var patch dotpath.Patch
	for _, pair := range pairs {
		path, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected path=value, got %q", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		patch = patch.Set(strings.TrimSpace(path), value)
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	return patch, nil
}

func (r *runner) set(ctx context.Context, args []string) error {
	if err := requireArgs(args, 2, "set <id> path=value..."); err != nil {
		return err
	}
	patch, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}
	if _, err := r.session.UpdateSheet(ctx, args[0], patch).Wait(ctx); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Saved %s\n", strings.Join(patch.Paths(), ", "))
	return nil
}

func (r *runner) delete(ctx context.Context, args []string) error {
	if err := requireArgs(args, 1, "delete <id> -yes"); err != nil {
		return err
	}
	fs := newFlagSet("delete")
	yes := fs.Bool("yes", false, "confirm deletion")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if !*yes {
		return errors.New("deletion is permanent; pass -yes to confirm")
	}
	if err := r.session.DeleteCharacter(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Character deleted")
	return nil
}
