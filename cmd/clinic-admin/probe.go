package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/target/clinic-portal/config"
	"github.com/target/clinic-portal/internal/bootstrap"
	"github.com/target/clinic-portal/internal/domain/model"
	"golang.org/x/term"
)

type probeOptions struct {
	NID     string
	Refresh bool
	Timeout time.Duration
}

func runProbe(cmdCtx *commandContext, args []string) error {
	opts, err := parseProbeFlags(args)
	if err != nil {
		return err
	}
	password, err := readPassword(cmdCtx.Stdin, cmdCtx.Stdout)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	return probe(ctx, cmdCtx, opts, password)
}

func parseProbeFlags(args []string) (probeOptions, error) {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts probeOptions
	fs.StringVar(&opts.NID, "nid", "", "National ID to log in with (required)")
	fs.BoolVar(&opts.Refresh, "refresh", false, "Run a silent refresh after logging in")
	fs.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Overall deadline")
	if err := fs.Parse(args); err != nil {
		return probeOptions{}, err
	}

	opts.NID = strings.TrimSpace(opts.NID)
	if opts.NID == "" {
		return probeOptions{}, errors.New("--nid is required")
	}
	if opts.Timeout <= 0 {
		return probeOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if err := writef(out, "Password: "); err != nil {
			return "", err
		}
		b, err := term.ReadPassword(int(f.Fd()))
		if lnErr := writeln(out); lnErr != nil && err == nil {
			err = lnErr
		}
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

// probe signs in through the same services the portal uses, backed by
// throwaway in-process session and cache stores.
func probe(ctx context.Context, cmdCtx *commandContext, opts probeOptions, password string) error {
	cfg := cmdCtx.Config
	cfg.Session.Store = config.SessionStoreMemory
	cfg.Cache.Backend = config.CacheBackendNone
	cfg.Audit.Enabled = false

	svc, err := bootstrap.NewServices(&bootstrap.ServiceDeps{Config: &cfg, Logger: cmdCtx.Logger})
	if err != nil {
		return err
	}
	out := cmdCtx.Stdout

	st, err := svc.Auth.Login(ctx, model.LoginRequest{NID: opts.NID, Password: password})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	user, _ := st.User()
	if err = writef(out, "logged in as %s (%s), session %s\n", dash(user.FullName()), dash(string(st.Role())), st.ID()); err != nil {
		return err
	}

	if opts.Refresh {
		start := time.Now()
		if err = svc.API.Refresher().Refresh(ctx, st); err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		if err = writef(out, "refresh ok in %s\n", time.Since(start).Round(time.Millisecond)); err != nil {
			return err
		}
	}

	profile, err := svc.Profile.ProfileID(ctx, st)
	if err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	if err = writef(out, "profile %s (%s)\n", dash(profile.ProfileID), dash(string(profile.Role))); err != nil {
		return err
	}

	list, err := svc.Prescriptions.List(ctx, st)
	if err != nil {
		return fmt.Errorf("prescriptions: %w", err)
	}
	return writef(out, "prescriptions: %d (%d completed, %d open)\n",
		len(list.Prescriptions), list.Completed, list.NotCompleted)
}
