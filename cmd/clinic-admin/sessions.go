package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	domainauth "github.com/target/clinic-portal/internal/domain/auth"
)

// sessionAdmin is the part of the session store the admin commands use.
type sessionAdmin interface {
	List(ctx context.Context) ([]domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

type sessionsListOptions struct {
	UserID string
}

type sessionsClearOptions struct {
	ID     string
	UserID string
	All    bool
	DryRun bool
	Yes    bool
}

func (o sessionsClearOptions) IsDryRun() bool { return o.DryRun }
func (o sessionsClearOptions) IsYes() bool    { return o.Yes }
func (o sessionsClearOptions) GetWarning() string {
	return "WARNING: this will sign out every portal user."
}

func (o sessionsClearOptions) GetTarget() string {
	switch {
	case o.ID != "":
		return fmt.Sprintf("session %q", o.ID)
	case o.UserID != "":
		return fmt.Sprintf("user %q", o.UserID)
	default:
		return ""
	}
}

func runSessionsList(cmdCtx *commandContext, args []string) error {
	opts, err := parseSessionsListFlags(args)
	if err != nil {
		return err
	}
	store, client, err := openSessionStore(cmdCtx)
	if err != nil {
		return err
	}
	defer closeRedis(cmdCtx, client)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	return listSessions(ctx, cmdCtx.Stdout, store, opts, time.Now())
}

func runSessionsClear(cmdCtx *commandContext, args []string) error {
	opts, err := parseSessionsClearFlags(args)
	if err != nil {
		return err
	}
	if confirmErr := confirmAction(cmdCtx.Stdin, cmdCtx.Stdout, opts, "sign out sessions"); confirmErr != nil {
		return confirmErr
	}
	store, client, err := openSessionStore(cmdCtx)
	if err != nil {
		return err
	}
	defer closeRedis(cmdCtx, client)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	n, err := clearSessions(ctx, store, opts)
	if err != nil {
		return err
	}
	verb := "signed out"
	if opts.DryRun {
		verb = "would sign out"
	}
	return writef(cmdCtx.Stdout, "%s %d session(s)\n", verb, n)
}

func parseSessionsListFlags(args []string) (sessionsListOptions, error) {
	fs := flag.NewFlagSet("sessions-list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts sessionsListOptions
	fs.StringVar(&opts.UserID, "user", "", "Only sessions of this user ID")
	if err := fs.Parse(args); err != nil {
		return sessionsListOptions{}, err
	}
	opts.UserID = strings.TrimSpace(opts.UserID)
	return opts, nil
}

func parseSessionsClearFlags(args []string) (sessionsClearOptions, error) {
	fs := flag.NewFlagSet("sessions-clear", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts sessionsClearOptions
	fs.StringVar(&opts.ID, "id", "", "Session ID to sign out")
	fs.StringVar(&opts.UserID, "user", "", "Sign out every session of this user ID")
	fs.BoolVar(&opts.All, "all", false, "Sign out every session")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return sessionsClearOptions{}, err
	}

	opts.ID = strings.TrimSpace(opts.ID)
	opts.UserID = strings.TrimSpace(opts.UserID)
	selectors := 0
	for _, set := range []bool{opts.ID != "", opts.UserID != "", opts.All} {
		if set {
			selectors++
		}
	}
	if selectors != 1 {
		return sessionsClearOptions{}, errors.New("exactly one of --id, --user or --all is required")
	}
	return opts, nil
}

func listSessions(ctx context.Context, w io.Writer, store sessionAdmin, opts sessionsListOptions, now time.Time) error {
	all, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	var rows []domainauth.Session
	for _, s := range all {
		if opts.UserID == "" || sessionUserID(s) == opts.UserID {
			rows = append(rows, s)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ExpiresAt.Before(rows[j].ExpiresAt) })

	if len(rows) == 0 {
		return writeln(w, "No sessions found.")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "SESSION\tUSER\tROLE\tTOKEN\tEXPIRES IN\n"); err != nil {
		return err
	}
	for _, s := range rows {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			dash(sessionUserID(s)),
			dash(string(s.Role)),
			tokenState(s, now),
			s.ExpiresAt.Sub(now).Round(time.Second),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func clearSessions(ctx context.Context, store sessionAdmin, opts sessionsClearOptions) (int, error) {
	var ids []string
	if opts.ID != "" {
		ids = []string{opts.ID}
	} else {
		all, err := store.List(ctx)
		if err != nil {
			return 0, fmt.Errorf("list sessions: %w", err)
		}
		for _, s := range all {
			if opts.All || sessionUserID(s) == opts.UserID {
				ids = append(ids, s.ID)
			}
		}
	}
	if opts.DryRun {
		return len(ids), nil
	}
	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			return 0, fmt.Errorf("delete session %s: %w", id, err)
		}
	}
	return len(ids), nil
}

func sessionUserID(s domainauth.Session) string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

func tokenState(s domainauth.Session, now time.Time) string {
	switch {
	case !s.HasToken():
		return "none"
	case !s.TokenExpiresAt.IsZero() && !s.TokenExpiresAt.After(now):
		return "expired"
	default:
		return "valid"
	}
}
