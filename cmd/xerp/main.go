// Command xerp is the CLI surface named in spec.md §6: index, query, mark,
// train, outline, terms. Grounded on the teacher's cmd/lci/main.go — one
// *cli.App, one file per command in this same package, each command's
// Flags mirroring the flag list spec.md §6 gives it literally.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/trans/xerp-sub001/internal/config"
	"github.com/trans/xerp-sub001/internal/store"
	"github.com/trans/xerp-sub001/internal/version"
	"github.com/trans/xerp-sub001/internal/xerrors"
)

func main() {
	app := &cli.App{
		Name:    "xerp",
		Usage:   "structure-aware local code and text search",
		Version: version.Version,
		Commands: []*cli.Command{
			indexCommand(),
			queryCommand(),
			markCommand(),
			trainCommand(),
			outlineCommand(),
			termsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "xerp: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// loadConfig resolves a command's --root flag (cwd when unset; a set
// XERP_ROOT overrides either)
// into a Config (spec.md §6: `<root>/.config/xerp.yaml`, env overrides
// XERP_ROOT/XERP_DB_PATH applied inside config.Load). --config, when set,
// points at an explicit YAML file instead of the computed
// `<root>/.config/xerp.yaml`.
func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.LoadFrom(c.String("root"), c.String("config"))
}

// rootConfigFlags are the two flags every command accepts ahead of its own
// verb-specific flags (SPEC_FULL.md ambient stack: --root/--config on every
// command).
func rootConfigFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "root", Usage: "project root (default: cwd; $XERP_ROOT overrides)"},
		&cli.StringFlag{Name: "config", Usage: "explicit config file path (default: <root>/.config/xerp.yaml)"},
	}
}

// openStore opens the store at cfg's configured DB path, creating the cache
// directory first since store.Open doesn't create parent directories.
func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.Project.CacheDir, 0o755); err != nil {
		return nil, xerrors.NewStoreError("mkdir-cache", err)
	}
	return store.Open(cfg.Project.DBPath)
}

// exitCodeFor maps the error taxonomy in spec.md §7 onto the exit codes
// spec.md §6 fixes: 1 for usage/input errors, 2 for everything else a
// command surfaces (store/vector/logic/runtime failures).
func exitCodeFor(err error) int {
	if ec, ok := err.(cli.ExitCoder); ok {
		return ec.ExitCode()
	}
	var inputErr *xerrors.InputError
	if asInputError(err, &inputErr) {
		return 1
	}
	return 2
}

func asInputError(err error, target **xerrors.InputError) bool {
	for err != nil {
		if ie, ok := err.(*xerrors.InputError); ok {
			*target = ie
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
