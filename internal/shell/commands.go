package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/alphabot-ai/commons/internal/forum"
	"github.com/alphabot-ai/commons/internal/model"
)

// Execute runs one parsed command line. Forum rejections are printed, not
// returned. Usage mistakes come back as errors.
func (s *Shell) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("no command provided")
	}
	cmd, rest := strings.ToLower(args[0]), args[1:]

	var err error
	switch cmd {
	case "signup":
		err = s.handleSignUp(ctx, rest)
	case "login":
		if len(rest) != 2 {
			return usage(cmd)
		}
		err = s.forum.LogIn(ctx, rest[0], rest[1])
		s.ok(err, "welcome back, %s", rest[0])
	case "logout":
		err = s.forum.LogOut(ctx)
		s.ok(err, "logged out")
	case "whoami":
		s.handleWhoAmI()
	case "mood":
		err = s.forum.SetMood(ctx, strings.Join(rest, " "))
		s.ok(err, "mood updated")
	case "avatar":
		if len(rest) != 1 {
			return usage(cmd)
		}
		err = s.forum.SetAvatar(ctx, rest[0])
		s.ok(err, "avatar updated")
	case "name":
		err = s.forum.SetDisplayName(ctx, strings.Join(rest, " "))
		s.ok(err, "display name updated")
	case "user":
		if len(rest) != 1 {
			return usage(cmd)
		}
		s.handleUser(rest[0])
	case "communities":
		s.handleCommunities()
	case "create":
		err = s.handleCreate(ctx, rest)
	case "join", "leave", "verify":
		if len(rest) != 1 {
			return usage(cmd)
		}
		err = s.handleMembership(ctx, cmd, rest[0])
	case "show":
		err = s.handleShow(rest)
	case "post":
		if len(rest) < 2 {
			return usage(cmd)
		}
		var c model.Comment
		c, err = s.forum.Post(ctx, rest[0], strings.Join(rest[1:], " "))
		s.ok(err, "posted %s", shortID(c.ID))
	case "up", "down":
		err = s.handleVote(ctx, cmd, rest)
	case "recent":
		err = s.handleRecent(rest)
	case "report":
		if len(rest) < 1 {
			return usage(cmd)
		}
		var r model.Report
		r, err = s.forum.SubmitReport(ctx, rest[0], strings.Join(rest[1:], " "))
		s.ok(err, "report %s filed", shortID(r.ID))
	case "reports":
		s.handleReports(len(rest) > 0 && rest[0] == "all")
	case "ban", "warn", "ignore":
		err = s.handleResolve(ctx, cmd, rest)
	case "clear":
		err = s.forum.ClearAll(ctx)
		s.ok(err, "all comments cleared")
	case "theme":
		if len(rest) == 0 {
			fmt.Fprintf(s.out, "theme: %s\n", orDash(s.forum.Theme()))
			return nil
		}
		err = s.forum.SetTheme(ctx, rest[0])
		s.ok(err, "theme set to %s", rest[0])
	case "check":
		if cerr := s.forum.CheckConsistency(); cerr != nil {
			fmt.Fprintln(s.out, cerr)
		} else {
			fmt.Fprintln(s.out, "scores match the vote ledger")
		}
	case "help":
		s.printHelp(rest)
	case "exit", "quit":
		fmt.Fprintln(s.out, "bye")
		return ErrExit
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}

	if errors.Is(err, errUsage) {
		return err
	}
	if err != nil {
		fmt.Fprintln(s.out, describe(err))
	}
	return nil
}

func (s *Shell) ok(err error, format string, a ...any) {
	if err == nil {
		fmt.Fprintf(s.out, format+"\n", a...)
	}
}

func (s *Shell) handleSignUp(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return usage("signup")
	}
	avatar := ""
	if len(args) == 3 {
		avatar = args[2]
	}
	err := s.forum.SignUp(ctx, args[0], args[1], avatar)
	s.ok(err, "welcome, %s", strings.TrimSpace(args[0]))
	return err
}

func (s *Shell) handleWhoAmI() {
	acc, ok := s.forum.ActiveAccount()
	if !ok {
		fmt.Fprintln(s.out, "not logged in")
		return
	}
	s.handleUser(acc.Username)
}

func (s *Shell) handleUser(username string) {
	acc, ok := s.forum.Account(username)
	if !ok {
		fmt.Fprintln(s.out, describe(forum.ErrNoSuchAccount))
		return
	}
	line := fmt.Sprintf("%s %s", acc.Avatar, acc.Display())
	if acc.Display() != acc.Username {
		line += fmt.Sprintf(" (%s)", acc.Username)
	}
	if acc.IsAdmin() {
		line += " [admin]"
	}
	fmt.Fprintln(s.out, line)
	if acc.Mood != "" {
		fmt.Fprintf(s.out, "  mood: %s\n", acc.Mood)
	}
	fmt.Fprintf(s.out, "  joined %s\n", humanize.Time(acc.CreatedAt))
	if n := s.forum.Warnings(username); n > 0 {
		fmt.Fprintf(s.out, "  warnings: %d\n", n)
	}
	if s.forum.IsCurrentlyBanned(username) {
		ban, _ := s.forum.Ban(username)
		fmt.Fprintf(s.out, "  %s\n", banText(ban.Until))
	}
	fmt.Fprintf(s.out, "  comments: %s\n", humanize.Comma(int64(len(s.forum.ByUser(username)))))
}

func (s *Shell) handleCommunities() {
	list := s.forum.Communities()
	if len(list) == 0 {
		fmt.Fprintln(s.out, "no communities yet")
		return
	}
	acc, _ := s.forum.ActiveAccount()
	for _, c := range list {
		marks := ""
		if c.Verified {
			marks += " ✓"
		}
		if acc.Username != "" && c.HasMember(acc.Username) {
			marks += " (member)"
		}
		fmt.Fprintf(s.out, "%s %s [%s]%s - %s, %s\n", c.Icon, c.Name, c.Slug, marks,
			c.Description, plural(len(c.Members), "member"))
	}
}

func (s *Shell) handleCreate(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 3 {
		return usage("create")
	}
	var description, icon string
	if len(args) > 1 {
		description = args[1]
	}
	if len(args) > 2 {
		icon = args[2]
	}
	slug, err := s.forum.CreateCommunity(ctx, args[0], description, icon)
	s.ok(err, "created %s", slug)
	return err
}

func (s *Shell) handleMembership(ctx context.Context, cmd, slug string) error {
	var err error
	switch cmd {
	case "join":
		err = s.forum.Join(ctx, slug)
		s.ok(err, "joined %s", slug)
	case "leave":
		err = s.forum.Leave(ctx, slug)
		s.ok(err, "left %s", slug)
	case "verify":
		err = s.forum.ToggleVerified(ctx, slug)
		if err == nil {
			c, _ := s.forum.Community(slug)
			fmt.Fprintf(s.out, "%s verified: %t\n", slug, c.Verified)
		}
	}
	return err
}

func (s *Shell) handleShow(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usage("show")
	}
	mode := forum.SortHot
	if len(args) == 2 {
		mode = forum.SortMode(args[1])
	}
	list, err := s.forum.ListSortedBy(args[0], mode)
	if err != nil {
		fmt.Fprintln(s.out, describe(err))
		return nil
	}
	c, _ := s.forum.Community(args[0])
	fmt.Fprintf(s.out, "%s %s (%s)\n", c.Icon, c.Name, mode)
	if len(list) == 0 {
		fmt.Fprintln(s.out, "  no comments yet")
	}
	for _, cm := range list {
		s.printComment(cm)
	}
	return nil
}

func (s *Shell) handleVote(ctx context.Context, cmd string, args []string) error {
	if len(args) != 2 {
		return usage(cmd)
	}
	id, err := s.findComment(args[0], args[1])
	if err == nil {
		dir := 1
		if cmd == "down" {
			dir = -1
		}
		err = s.forum.Vote(ctx, id, args[0], dir)
	}
	if err == nil {
		acc, _ := s.forum.ActiveAccount()
		fmt.Fprintf(s.out, "your vote: %+d\n", s.forum.VoteOf(acc.Username, id))
	}
	return err
}

func (s *Shell) handleRecent(args []string) error {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return usage("recent")
		}
		limit = n
	}
	for _, c := range s.forum.RecentGlobal(limit) {
		s.printComment(c)
	}
	return nil
}

func (s *Shell) handleReports(all bool) {
	acc, ok := s.forum.ActiveAccount()
	if !ok || !acc.IsAdmin() {
		fmt.Fprintln(s.out, describe(forum.ErrNotAdmin))
		return
	}
	reports := s.forum.OpenReports()
	if all {
		reports = s.forum.Reports()
	}
	if len(reports) == 0 {
		fmt.Fprintln(s.out, "no reports")
		return
	}
	for _, r := range reports {
		status := "open"
		if r.Resolved {
			status = string(r.Action)
		}
		fmt.Fprintf(s.out, "%s %-6s %s reported %s %s: %s\n", shortID(r.ID), status,
			r.Reporter, r.Target, humanize.Time(r.Time), r.Reason)
	}
}

func (s *Shell) handleResolve(ctx context.Context, cmd string, args []string) error {
	var want int
	switch cmd {
	case "ban":
		want = 3
	case "warn":
		want = 2
	default:
		want = 1
	}
	if len(args) != want {
		return usage(cmd)
	}
	id, err := s.findReport(args[0])
	if err != nil {
		return err
	}
	switch cmd {
	case "ban":
		minutes, perr := strconv.Atoi(args[2])
		if perr != nil {
			return usage(cmd)
		}
		err = s.forum.ResolveBan(ctx, id, args[1], minutes)
		if err == nil {
			ban, _ := s.forum.Ban(args[1])
			fmt.Fprintf(s.out, "%s %s\n", args[1], banText(ban.Until))
		}
	case "warn":
		err = s.forum.ResolveWarn(ctx, id, args[1])
		s.ok(err, "%s now has %s", args[1], plural(s.forum.Warnings(args[1]), "warning"))
	default:
		err = s.forum.ResolveIgnore(ctx, id)
		s.ok(err, "report ignored")
	}
	return err
}

func (s *Shell) printComment(c model.Comment) {
	mood := ""
	if c.Mood != "" {
		mood = " (" + c.Mood + ")"
	}
	if comm, ok := s.forum.Community(c.Community); ok && comm.HasMod(c.User) {
		mood = " [mod]" + mood
	}
	fmt.Fprintf(s.out, "  [%s] %+d %s %s%s in %s, %s\n      %s\n", shortID(c.ID), c.Score,
		c.Avatar, c.User, mood, c.Community, humanize.Time(c.Time), c.Text)
}

// findComment resolves the short id printed by show to a full comment id.
func (s *Shell) findComment(slug, short string) (string, error) {
	list, err := s.forum.ListSortedBy(slug, forum.SortNew)
	if err != nil {
		return "", err
	}
	var ids []string
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	return matchID(ids, short, forum.ErrNoSuchComment)
}

func (s *Shell) findReport(short string) (string, error) {
	var ids []string
	for _, r := range s.forum.Reports() {
		ids = append(ids, r.ID)
	}
	return matchID(ids, short, forum.ErrNoSuchReport)
}

func matchID(ids []string, short string, missing error) (string, error) {
	var found []string
	for _, id := range ids {
		if id == short || strings.HasSuffix(id, short) {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return "", missing
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("%w: %q matches %d ids", forum.ErrInvalid, short, len(found))
}

// shortID keeps the random tail of an id, which is what users type back.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

func describe(err error) string {
	var banErr *forum.BanError
	if errors.As(err, &banErr) {
		return fmt.Sprintf("%s is %s", banErr.Username, banText(banErr.Until))
	}
	return err.Error()
}

func banText(until *time.Time) string {
	if until == nil {
		return "banned permanently"
	}
	return fmt.Sprintf("banned until %s (%s)", until.Format("2006-01-02 15:04"), humanize.Time(*until))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return humanize.Comma(int64(n)) + " " + word + "s"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
