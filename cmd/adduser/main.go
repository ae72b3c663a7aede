package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"expense-ledger/internal/ledger"
	"expense-ledger/internal/storage"

	"golang.org/x/term"
)

const defaultDBPath = "expenses.db"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	nameFlag := fs.String("name", "", "User name (optional, will prompt if omitted)")
	driver := fs.String("driver", storage.DriverSQLite, "Database driver: sqlite or postgres")
	dbPath := fs.String("db", defaultDBPath, "Path to database file, or a DSN for postgres")
	force := fs.Bool("force", false, "Create the user even if the name is already taken")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stdout, "Usage: adduser [-name <name>] [-driver sqlite|postgres] [-db <db_path>] [-force]")
		fs.PrintDefaults()
		return fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	name := *nameFlag
	if name == "" {
		var err error
		name, err = readName(stdin, stdout)
		if err != nil {
			return fmt.Errorf("failed to read name: %w", err)
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	// Allow overriding db path via env var if not explicitly set via flag (flag default is used)
	if *dbPath == defaultDBPath {
		if *driver == storage.DriverPostgres {
			*dbPath = os.Getenv("DATABASE_URL")
		} else if path := os.Getenv("DB_PATH"); path != "" {
			*dbPath = path
		}
	}

	db, err := storage.Open(*driver, *dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	svc := ledger.NewService(db, nil)

	if !*force {
		users, err := svc.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		for _, u := range users {
			if strings.EqualFold(u.Name, name) {
				return fmt.Errorf("user %s already exists with ID %d (use -force to add anyway)", name, u.ID)
			}
		}
	}

	user, err := svc.CreateUser(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %d\n", user.Name, user.ID)
	return nil
}

func readName(stdin io.Reader, stdout io.Writer) (string, error) {
	// Give terminals line editing
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return "", err
		}
		defer term.Restore(int(f.Fd()), state)

		t := term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{f, stdout}, "Name: ")
		return t.ReadLine()
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	fmt.Fprint(stdout, "Name: ")
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		fmt.Fprintln(stdout)
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
