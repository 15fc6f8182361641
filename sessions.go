package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"voxscribe/config"
	"voxscribe/session"
)

const sessionsUsage = `Usage: voxscribe sessions [-config path] <command>

Commands:
  list                 list saved sessions, newest first
  show <id>            print a session transcript
  export <id> [dir]    write voxscribe-<id>.txt into dir (default: current dir)
  delete <id>          delete a session

<id> may be any unique prefix of the session id.
`

func runSessions(args []string) int {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	configFlag := fs.String("config", "", "path to config.yaml")
	storageFlag := fs.String("storage", "", "Session storage backend: file or sqlite")
	fs.Usage = func() { fmt.Fprint(os.Stderr, sessionsUsage) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *storageFlag != "" {
		cfg.Storage.Backend = *storageFlag
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	store, err := openStore(cfg.Storage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	if err := sessionsCommand(store, fs.Args(), os.Stdout, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, sessionsUsage)
			return 2
		}
		return 1
	}
	return 0
}

var errUsage = errors.New("bad usage")

func sessionsCommand(store *session.Store, args []string, out io.Writer, now time.Time) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	cmd, rest := args[0], args[1:]

	if cmd == "list" {
		list := store.List()
		if len(list) == 0 {
			fmt.Fprintln(out, "no sessions")
			return nil
		}
		for _, s := range list {
			fmt.Fprintf(out, "%s  %s\n", s.ID[:8], sessionLine(s, now))
			fmt.Fprintf(out, "          %s\n", session.Preview(s.FullText, session.PreviewLength))
		}
		return nil
	}

	if len(rest) == 0 {
		return fmt.Errorf("%w: %s needs a session id", errUsage, cmd)
	}
	sess, err := store.Find(rest[0])
	if err != nil {
		return err
	}

	switch cmd {
	case "show":
		return store.WriteExport(out, sess)
	case "export":
		dir := "."
		if len(rest) > 1 {
			dir = rest[1]
		}
		path, err := store.ExportToDir(dir, sess)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, path)
		return nil
	case "delete":
		if err := store.Delete(sess.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", sess.ID)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}
