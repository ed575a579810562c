// Command autobib maintains a local, versioned database of
// bibliographic records keyed by stable identifiers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/autobib/autobib"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var exitCode autobib.ExitCode
	switch cmd {
	case "get":
		exitCode = cmdGet(ctx, args)
	case "resolve":
		exitCode = cmdResolve(ctx, args)
	case "source":
		exitCode = cmdSource(ctx, args)
	case "hist":
		exitCode = cmdHist(ctx, args)
	case "log":
		exitCode = cmdLog(ctx, args)
	case "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		os.Exit(int(autobib.ExitUserError))
	}
	os.Exit(int(exitCode))
}

func usage() {
	fmt.Println(`autobib - a local, versioned bibliographic record store

Usage: autobib <command> [options]

Commands:
  get      <identifier>            Resolve an identifier and print its BibTeX entry
  resolve  <identifier>            Resolve an identifier and print its outcome
  source   <file>                  Resolve every identifier in a file, in order
  hist     <undo|redo|void|revive> <identifier>   Edit-tree history operations
  log      <identifier>            Print a tree's revision history

Environment:
  AUTOBIB_DATABASE_PATH       Database file (default: $XDG_DATA_HOME/autobib/records.db)
  AUTOBIB_CONFIG_PATH         Config file (default: $XDG_CONFIG_HOME/autobib/config.yaml)
  AUTOBIB_RESPONSE_CACHE_PATH Response cache file, test builds only`)
}

// openStore is the shared setup every subcommand performs: load config,
// resolve paths, build the provider registry, open the database.
func openStore() (*autobib.Store, *autobib.Config, error) {
	paths := autobib.ResolvePaths()
	if err := paths.EnsureDirs(); err != nil {
		return nil, nil, err
	}

	cfg, err := autobib.LoadConfig(paths.Config)
	if err != nil {
		return nil, nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{})

	reg := autobib.NewRegistry(autobib.RegistryOptions{
		Timeout:  cfg.ProviderTimeouts(),
		OnInsert: cfg.OnInsert,
	})

	store, err := autobib.Open(paths.Database, autobib.OpenOptions{
		Logger:   logger,
		Registry: reg,
		Config:   cfg,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func exitCodeOf(err error) autobib.ExitCode {
	type hasExitCode interface{ ExitCode() autobib.ExitCode }
	if ec, ok := err.(hasExitCode); ok {
		return ec.ExitCode()
	}
	return autobib.ExitUserError
}

func cmdGet(ctx context.Context, args []string) autobib.ExitCode {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: autobib get <identifier>")
		return autobib.ExitUserError
	}

	store, cfg, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeOf(err)
	}
	defer store.Close()

	rules, err := cfg.ResolvedAliasRules()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeOf(err)
	}

	outcome := store.Resolve(ctx, fs.Arg(0), rules)
	if outcome.Kind != autobib.OutcomeEntry {
		fmt.Fprintln(os.Stderr, describeOutcome(outcome))
		return exitCodeForOutcome(outcome)
	}

	entry, err := autobib.RenderRecord(outcome)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeOf(err)
	}
	fmt.Print(entry)
	return autobib.ExitSuccess
}

func cmdResolve(ctx context.Context, args []string) autobib.ExitCode {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: autobib resolve <identifier>")
		return autobib.ExitUserError
	}

	store, cfg, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeOf(err)
	}
	defer store.Close()

	rules, err := cfg.ResolvedAliasRules()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeOf(err)
	}

	outcome := store.Resolve(ctx, fs.Arg(0), rules)
	fmt.Println(describeOutcome(outcome))
	return exitCodeForOutcome(outcome)
}

func cmdSource(ctx context.Context, args []string) autobib.ExitCode {
	fs := flag.NewFlagSet("source", flag.ExitOnError)
	skipFrom := fs.String("skip-from", "", "file of identifiers to skip, one per line")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: autobib source [-skip-from FILE] <file>")
		return autobib.ExitUserError
	}

	store, cfg, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeOf(err)
	}
	defer store.Close()

	rules, err := cfg.ResolvedAliasRules()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeOf(err)
	}

	opts := autobib.BatchOptions{AliasRules: rules}
	if *skipFrom != "" {
		f, err := os.Open(*skipFrom)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return autobib.ExitUserError
		}
		skip, err := autobib.ReadSkipList(f)
		f.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return autobib.ExitUserError
		}
		opts.Skip = skip
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return autobib.ExitUserError
	}
	defer f.Close()

	entries, err := store.RunBatch(ctx, f, opts)
	for _, e := range entries {
		fmt.Printf("%-40s %s\n", e.Input, describeOutcome(e.Outcome))
	}
	summary := autobib.Summarize(entries)
	fmt.Printf("\n%d resolved, %d absent, %d errors\n",
		summary.Entries, summary.NullRemote+summary.NullAlias+summary.Deleted,
		summary.BadIdentifier+summary.NetworkErrors)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeOf(err)
	}
	return autobib.ExitSuccess
}

func cmdHist(ctx context.Context, args []string) autobib.ExitCode {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: autobib hist <undo|redo|void|revive> <identifier>")
		return autobib.ExitUserError
	}
	sub, identifier := args[0], args[1]

	store, _, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeOf(err)
	}
	defer store.Close()

	var rec *autobib.Record
	switch sub {
	case "undo":
		rec, err = store.Undo(identifier, false)
	case "redo":
		rec, err = store.Redo(identifier, nil, false)
	case "void":
		rec, err = store.Void(identifier)
	case "revive":
		rec, err = store.Revive(identifier, autobib.NewEntryData("misc"))
	default:
		fmt.Fprintf(os.Stderr, "unknown hist subcommand: %s\n", sub)
		return autobib.ExitUserError
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeOf(err)
	}
	fmt.Printf("active revision is now #%s (modified %s)\n",
		autobib.RevisionHex(rec.Key), humanize.Time(rec.Modified))
	return autobib.ExitSuccess
}

func cmdLog(ctx context.Context, args []string) autobib.ExitCode {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: autobib log <identifier>")
		return autobib.ExitUserError
	}

	store, _, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeOf(err)
	}
	defer store.Close()

	records, err := store.Tree(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeOf(err)
	}
	for _, rec := range records {
		fmt.Printf("#%-8s %-8s %s\n", autobib.RevisionHex(rec.Key), rec.Variant, humanize.Time(rec.Modified))
	}
	return autobib.ExitSuccess
}

func describeOutcome(o autobib.Outcome) string {
	switch o.Kind {
	case autobib.OutcomeEntry:
		return "entry (" + o.CiteKey + ")"
	case autobib.OutcomeNullRemote:
		return "no record found at the provider"
	case autobib.OutcomeNullAlias:
		return "alias is not bound to any record"
	case autobib.OutcomeDeleted:
		if o.Replacement != "" {
			return "deleted, replaced by " + o.Replacement
		}
		return "deleted"
	case autobib.OutcomeBadIdentifier:
		return "bad identifier: " + o.Err.Error()
	case autobib.OutcomeNetworkError:
		return "network error: " + o.Err.Error()
	default:
		return "database error: " + o.Err.Error()
	}
}

func exitCodeForOutcome(o autobib.Outcome) autobib.ExitCode {
	switch o.Kind {
	case autobib.OutcomeEntry, autobib.OutcomeDeleted, autobib.OutcomeNullRemote, autobib.OutcomeNullAlias:
		return autobib.ExitSuccess
	case autobib.OutcomeBadIdentifier:
		return autobib.ExitUserError
	case autobib.OutcomeNetworkError:
		return autobib.ExitNetworkError
	default:
		return autobib.ExitDatabaseError
	}
}
