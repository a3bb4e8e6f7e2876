// Package cli implements the adjbacklight command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cptspacemanspiff/adjbacklight/internal/adjust"
	"github.com/cptspacemanspiff/adjbacklight/internal/config"
)

// Terminal is the controlling terminal as seen by interactive mode.
type Terminal interface {
	// IsInteractive reports whether standard input is a terminal.
	IsInteractive() bool
	// Width returns the terminal width in columns.
	Width() int
	// RunRaw runs fn with the terminal in raw mode and restores it on return.
	RunRaw(fn func() error) error
}

// Env is the process environment the command runs against.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Term   Terminal
}

// errUsage is returned after usage has already been printed.
var errUsage = errors.New("usage")

const longHelp = `Adjust the backlight of your monitors.

With neither --get nor --set, the brightness is adjusted interactively when
standard input is a terminal; otherwise each line of standard input is read
as an adjustment and applied in turn.

ADJUSTMENTS:
  [+|-|=]LEVEL     raise, lower or set by device units
  [+|-|=]LEVEL%    ... by percentage points of the maximum
  [+|-|=]LEVEL%%   ... by percent of the current brightness

An adjustment may also be given directly as an argument, e.g. "adjbacklight -5%".

KEYBOARD:
  up, right        brighten
  down, left       darken
  q, enter, C-d    continue to the next device, or quit at the last`

type options struct {
	get     bool
	set     string
	all     bool
	root    string
	cfgPath string
	list    bool
	verbose bool
}

// NewRootCommand builds the adjbacklight command bound to env.
func NewRootCommand(env Env) *cobra.Command {
	var opts options
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "adjbacklight [flags] [DEVICE...]",
		Short:         "Adjust the backlight of laptop displays",
		Long:          longHelp,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.get && opts.set != "") || (len(args) > 0 && cmd.Flags().Changed("all")) || (opts.list && (opts.get || opts.set != "")) {
				cmd.SetOut(env.Stderr)
				_ = cmd.Usage()
				return errUsage
			}
			if opts.set != "" {
				if _, err := adjust.Parse(opts.set); err != nil {
					cmd.SetOut(env.Stderr)
					_ = cmd.Usage()
					return errUsage
				}
			}

			cfg, err := loadConfig(opts.cfgPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			v.SetDefault("root", cfg.Devices.Root)
			v.SetDefault("all", cfg.Devices.All)

			r := &runner{
				env:    env,
				logger: newLogger(env.Stderr, opts.verbose),
				root:   v.GetString("root"),
				all:    v.GetBool("all"),
			}
			switch {
			case opts.list:
				return r.list(args)
			case opts.get:
				return r.get(args)
			case opts.set != "":
				return r.set(args, opts.set)
			case env.Term != nil && env.Term.IsInteractive():
				return r.interactive(args)
			default:
				return r.batch(args)
			}
		},
	}
	cmd.SetIn(env.Stdin)
	cmd.SetOut(env.Stdout)
	cmd.SetErr(env.Stderr)

	flags := cmd.Flags()
	flags.BoolVarP(&opts.get, "get", "g", false, "print the average brightness of the devices")
	flags.StringVarP(&opts.set, "set", "s", "", "apply an adjustment to the devices")
	flags.BoolVarP(&opts.all, "all", "a", false, "act on every device instead of only the first found")
	flags.StringVar(&opts.root, "root", "", "device root directory (default /sys/class/backlight)")
	flags.StringVar(&opts.cfgPath, "config", "", "config file (default $XDG_CONFIG_HOME/adjbacklight/config.toml)")
	flags.BoolVar(&opts.list, "list", false, "list the devices and their brightness")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log per-device details")

	v.SetEnvPrefix("adjbacklight")
	v.AutomaticEnv()
	_ = v.BindPFlag("root", flags.Lookup("root"))
	_ = v.BindPFlag("all", flags.Lookup("all"))

	return cmd
}

// Run executes the command with args and returns the process exit code.
func Run(env Env, args []string) int {
	cmd := NewRootCommand(env)
	cmd.SetArgs(expandShorthand(args))
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(env.Stderr, "adjbacklight: %v\n", err)
		}
		return 1
	}
	return 0
}

// Execute runs the command against the real process environment.
func Execute(term Terminal) int {
	return Run(Env{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr, Term: term}, os.Args[1:])
}

// expandShorthand turns bare adjustments such as "-5%" into --set so they
// are not mistaken for flags.
func expandShorthand(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		if a == "--" {
			return append(out, args[i:]...)
		}
		prevIsSet := i > 0 && (args[i-1] == "-s" || args[i-1] == "--set")
		if !prevIsSet && len(a) > 1 && strings.ContainsRune("+-=", rune(a[0])) {
			if _, err := adjust.Parse(a); err == nil {
				out = append(out, "--set="+a)
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

func loadConfig(path string, explicit bool) (*config.Config, error) {
	if explicit {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		return cfg, nil
	}
	path, err := config.DefaultPath()
	if err != nil {
		return config.DefaultConfig(), nil
	}
	return config.LoadOrDefault(path)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:   level,
		NoColor: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
}
