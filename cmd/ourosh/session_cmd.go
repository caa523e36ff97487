package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/parcadei/ouros-go/session"
	"github.com/parcadei/ouros-go/sessionmgr"
)

// sessionCommand exposes sessionmgr as "ourosh session ..." via a grouped
// urfave/cli subcommand.
var sessionCommand = &cli.Command{
	Name:  "session",
	Usage: "Operate on persisted sessions under a root directory",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "root",
			Usage: "Directory session files are saved to/loaded from",
			Value: "./ourosh-sessions",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "run",
			Usage:     "Execute a script against a named session and save it",
			ArgsUsage: "<session-id> <file>",
			Action:    sessionRun,
		},
		{
			Name:   "list",
			Usage:  "List every session id recorded in the root's manifest",
			Action: sessionList,
		},
	},
}

// openManager reads "root" off the session command's own flag set; urfave/
// cli/v3 resolves a flag defined on an ancestor command from any of its
// subcommands, so this sees the same value whether "ourosh session run" or
// "ourosh session list" is invoked.
func openManager(cmd *cli.Command) (*sessionmgr.Manager, error) {
	return sessionmgr.New(cmd.String("root"))
}

func sessionRun(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	if args.Len() < 2 {
		return fmt.Errorf("usage: ourosh session run <session-id> <file>")
	}
	id := args.Get(0)
	path := args.Get(1)

	mgr, err := openManager(cmd)
	if err != nil {
		return err
	}
	if _, err := mgr.Create(id, session.Options{}); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	result, err := mgr.Execute(id, string(data))
	if err != nil {
		return err
	}
	if result.Kind == session.KindSuspended {
		return fmt.Errorf("ourosh: session %q suspended; the CLI cannot service external calls", id)
	}
	return mgr.Save(id)
}

func sessionList(ctx context.Context, cmd *cli.Command) error {
	mgr, err := openManager(cmd)
	if err != nil {
		return err
	}
	ids, err := mgr.PersistedSessions()
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
