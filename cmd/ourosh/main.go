// Command ourosh is the REPL/CLI entry point: run a script file, execute an
// inline snippet, or drop into an interactive shell backed by a
// sessionmgr.Manager. It is a urfave/cli/v3 root command with
// -interactive/-i, -code/-c and -version/-v flags, an optional script-file
// argument, and subcommands, using github.com/chzyer/readline for
// interactive history and multi-line continuation.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/parcadei/ouros-go/object"
	"github.com/parcadei/ouros-go/session"
	"github.com/parcadei/ouros-go/sessionmgr"
	"github.com/parcadei/ouros-go/version"
)

func main() {
	app := &cli.Command{
		Name:  "ourosh",
		Usage: "A sandboxed, embeddable Python interpreter",
		Commands: []*cli.Command{
			sessionCommand,
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Run as interactive shell",
			},
			&cli.StringFlag{
				Name:    "code",
				Aliases: []string{"c"},
				Usage:   "Run <code> directly instead of reading a file or stdin",
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "Show version",
			},
		},
		Action: runRoot,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ourosh: %v\n", err)
		os.Exit(1)
	}
}

func runRoot(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("version") {
		fmt.Println(version.Version())
		return nil
	}
	if cmd.Bool("interactive") {
		return runREPL()
	}
	if code := cmd.String("code"); code != "" {
		return runSource(code)
	}
	if args := cmd.Args(); args.Len() > 0 {
		data, err := os.ReadFile(args.First())
		if err != nil {
			return err
		}
		return runSource(string(data))
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	return runSource(string(data))
}

// runSource executes one program to completion in a throwaway session.
// Servicing OS/external suspensions is out of scope for the plain CLI
// entry point: the sandbox package is the embedding surface for a host
// that wants to supply external_functions, while ourosh only exercises the
// REPL session layer directly.
func runSource(source string) error {
	s, err := session.New(session.Options{Host: stdoutHost{}})
	if err != nil {
		return err
	}
	result, err := s.Execute(source)
	if err != nil {
		return err
	}
	if result.Kind == session.KindSuspended {
		return fmt.Errorf("ourosh: program suspended on %q; run it through the sandbox API to supply a result", result.Pending.Name)
	}
	return nil
}

// stdoutHost is the minimal vm.Host a bare CLI run needs: print() output
// goes to stdout, input() reads a line from stdin.
type stdoutHost struct{}

func (stdoutHost) WriteOutput(s string) { fmt.Print(s) }

func (stdoutHost) ReadInput(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\n"), nil
}

// runREPL drives a single named session interactively, one statement per
// line with readline-backed history and a bracket/quote continuation
// heuristic.
func runREPL() error {
	mgr, err := sessionmgr.New("")
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ouros> ",
		HistoryFile:     historyFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println(version.Version())
	var buffer strings.Builder
	for {
		prompt := "ouros> "
		if buffer.Len() > 0 {
			prompt = "....> "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				buffer.Reset()
				continue
			}
			return nil
		}

		trimmed := strings.TrimSpace(line)
		if buffer.Len() == 0 && (trimmed == "exit" || trimmed == "quit") {
			return nil
		}

		buffer.WriteString(line)
		buffer.WriteByte('\n')
		if needsContinuation(buffer.String()) {
			continue
		}

		src := buffer.String()
		buffer.Reset()
		if strings.TrimSpace(src) == "" {
			continue
		}

		result, err := mgr.Execute(sessionmgr.DefaultSessionID, src)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		reportResult(result)
	}
}

func reportResult(result session.Result) {
	switch result.Kind {
	case session.KindComplete:
		if result.Value.Kind != object.KindNone {
			fmt.Println(reprObject(result.Value))
		}
	case session.KindSuspended:
		fmt.Printf("<suspended on %s>\n", result.Pending.Name)
	}
}

// reprObject is a minimal display form, not a full Python repr; good enough
// for a REPL echoing immediates and simple containers.
func reprObject(o object.Object) string {
	switch o.Kind {
	case object.KindStr:
		return fmt.Sprintf("%q", o.Str)
	case object.KindInt:
		return fmt.Sprintf("%d", o.Int)
	case object.KindFloat:
		return fmt.Sprintf("%g", o.Float)
	case object.KindBool:
		if o.Bool {
			return "True"
		}
		return "False"
	case object.KindNone:
		return "None"
	default:
		return fmt.Sprintf("%+v", o)
	}
}

// needsContinuation applies a bracket/quote-balance heuristic for Python's
// continuation rule: an unbalanced `(`/`[`/`{`, an open quote, or a
// trailing `:` all ask for another line here.
func needsContinuation(code string) bool {
	depth := 0
	inSingle, inDouble := false, false
	escaped := false
	trimmed := strings.TrimRight(code, "\n")

	for _, ch := range code {
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if !inSingle && !inDouble {
			switch ch {
			case '\'':
				inSingle = true
			case '"':
				inDouble = true
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
			}
		} else if inSingle && ch == '\'' {
			inSingle = false
		} else if inDouble && ch == '"' {
			inDouble = false
		}
	}
	if depth > 0 || inSingle || inDouble {
		return true
	}
	return strings.HasSuffix(trimmed, ":")
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ourosh_history"
	}
	return home + "/.ourosh_history"
}
