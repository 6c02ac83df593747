package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/atinyakov/GophAuth/internal/client/account"
)

var (
	version   string
	buildDate string
)

// session holds what the interactive commands need.
type session struct {
	client     *account.Client
	loginField string
	reader     *bufio.Reader
	out        io.Writer
}

func (s *session) register(ctx context.Context) error {
	username, err := account.ReadLine(s.reader, "Username: ", s.out)
	if err != nil {
		return err
	}
	email, err := account.ReadLine(s.reader, "Email: ", s.out)
	if err != nil {
		return err
	}
	password, err := account.ReadPassword("Password: ", s.out)
	if err != nil {
		return err
	}
	defer account.Wipe(password)
	confirm, err := account.ReadPassword("Confirm password: ", s.out)
	if err != nil {
		return err
	}
	defer account.Wipe(confirm)

	msg, err := s.client.Register(ctx, username, email, password, confirm)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, "✅ "+msg)
	return nil
}

func (s *session) login(ctx context.Context) error {
	prompt := "Email: "
	if s.loginField == "UserName" {
		prompt = "Username: "
	}
	identifier, err := account.ReadLine(s.reader, prompt, s.out)
	if err != nil {
		return err
	}
	password, err := account.ReadPassword("Password: ", s.out)
	if err != nil {
		return err
	}
	defer account.Wipe(password)

	location, err := s.client.Login(ctx, s.loginField, identifier, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "✅ Login successful, redirected to %s\n", location)
	return nil
}

// repl runs the interactive shell loop.
func (s *session) repl(ctx context.Context) {
	for {
		fmt.Fprint(s.out, "gophauth> ")
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Fprintln(s.out, "Available commands: help, register, login, exit")
		case "register":
			if err := s.register(ctx); err != nil {
				fmt.Fprintln(s.out, err)
			}
		case "login":
			if err := s.login(ctx); err != nil {
				fmt.Fprintln(s.out, err)
			}
		case "exit":
			fmt.Fprintln(s.out, "Bye")
			return
		default:
			fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
		}
	}
}

// main parses command-line flags and dispatches to the register, login or
// shell commands.
func main() {
	var (
		cmd        string
		baseURL    string
		caFile     string
		loginByUse bool
		showVer    bool
	)

	flag.StringVar(&cmd, "cmd", "shell", "command: register | login | shell")
	flag.StringVar(&baseURL, "url", "http://localhost:8080", "server base URL")
	flag.StringVar(&caFile, "ca", "", "path to CA cert for https servers")
	flag.BoolVar(&loginByUse, "login-by-username", false, "log in with the username instead of the email")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("GophAuth Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	client, err := account.NewClient(baseURL, caFile)
	if err != nil {
		log.Fatal(err)
	}

	s := &session{
		client:     client,
		loginField: "Email",
		reader:     bufio.NewReader(os.Stdin),
		out:        os.Stdout,
	}
	if loginByUse {
		s.loginField = "UserName"
	}

	ctx := context.Background()
	switch cmd {
	case "register":
		if err := s.register(ctx); err != nil {
			log.Fatal(err)
		}
	case "login":
		if err := s.login(ctx); err != nil {
			log.Fatal(err)
		}
	case "shell":
		s.repl(ctx)
	default:
		log.Fatalf("unknown command: %s", cmd)
	}
}
