package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/clinic-portal/internal/data"
	"github.com/target/clinic-portal/internal/domain/model"
)

type auditListOptions struct {
	UserID  string
	Action  string
	Since   time.Duration
	Limit   int
	RawJSON bool
}

func runAuditList(cmdCtx *commandContext, args []string) error {
	opts, err := parseAuditListFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx, db)

	events, err := data.NewAuditRepo(db).List(ctx, opts.listOptions(time.Now()))
	if err != nil {
		return fmt.Errorf("list audit events: %w", err)
	}
	return renderAuditEvents(cmdCtx.Stdout, events, opts.RawJSON)
}

func parseAuditListFlags(args []string) (auditListOptions, error) {
	fs := flag.NewFlagSet("audit-list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts auditListOptions
	fs.StringVar(&opts.UserID, "user", "", "Only events of this user ID")
	fs.StringVar(&opts.Action, "action", "", "Only events of this action (e.g. login, patient_view)")
	fs.DurationVar(&opts.Since, "since", 0, "Only events newer than this duration (e.g. 24h)")
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum number of events")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print events as JSON lines")

	if err := fs.Parse(args); err != nil {
		return auditListOptions{}, err
	}

	opts.UserID = strings.TrimSpace(opts.UserID)
	opts.Action = strings.ToLower(strings.TrimSpace(opts.Action))
	if opts.Limit <= 0 {
		return auditListOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.Since < 0 {
		return auditListOptions{}, errors.New("--since must not be negative")
	}
	return opts, nil
}

func (o auditListOptions) listOptions(now time.Time) model.AuditListOptions {
	out := model.AuditListOptions{
		UserID: o.UserID,
		Action: model.AuditAction(o.Action),
		Limit:  o.Limit,
	}
	if o.Since > 0 {
		out.Since = now.Add(-o.Since)
	}
	return out
}

func renderAuditEvents(w io.Writer, events []model.AuditEvent, rawJSON bool) error {
	if rawJSON {
		enc := json.NewEncoder(w)
		for i := range events {
			if err := enc.Encode(events[i]); err != nil {
				return fmt.Errorf("encode audit event: %w", err)
			}
		}
		return nil
	}

	if len(events) == 0 {
		return writeln(w, "No audit events found.")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "TIME\tACTION\tOUTCOME\tUSER\tROLE\tRESOURCE\tREMOTE\n"); err != nil {
		return err
	}
	for _, ev := range events {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.CreatedAt.UTC().Format(time.RFC3339),
			ev.Action,
			ev.Outcome,
			dash(ev.UserID),
			dash(ev.Role),
			dash(ev.Resource),
			dash(ev.RemoteAddr),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
