// Package cli wires the tcplb binary's command line: starting the load
// balancer from a config file, and the --version/--help-config informational
// exits, using spf13/cobra the way the wider library wires its CLI commands.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	"github.com/spf13/cobra"

	"github.com/nabbar/tcplb/config"
	"github.com/nabbar/tcplb/logger"
	"github.com/nabbar/tcplb/supervisor"
	"github.com/nabbar/tcplb/version"
)

// sectionHeader highlights an INI section name ("[mappings]", "[options]")
// the way the wider library highlights section headers in its own
// help/usage rendering. color.NoColor is set globally by the fatih/color
// package itself when stdout isn't a terminal, so this degrades to plain
// text automatically under redirection or in CI.
var sectionHeader = color.New(color.FgCyan, color.Bold).SprintFunc()

var helpConfigText = fmt.Sprintf(`tcplb configuration file (INI format)

%s
pre_resolve_workers = true|false   resolve worker hostnames once at load time (default true)
buffer_size         = <bytes>      relay read/write chunk size (default 4096)

%s
<listen_addr>:<listen_port> = <worker_addr>:<worker_port>[,<worker_addr>:<worker_port>...]
<listen_port>                = <worker_addr>:<worker_port>[,...]   (listen_addr defaults to 0.0.0.0)

Malformed mapping or worker entries are skipped with a warning rather than
treated as fatal; a missing [mappings] section or an unreadable file is fatal.
`, sectionHeader("[options]"), sectionHeader("[mappings]"))

// New builds the root cobra.Command for the tcplb binary. Stdout/stderr are
// wrapped with mattn/go-colorable so fatih/color escape sequences render
// correctly on every platform cobra might run on, matching how the wider
// library wraps its own stdout/stderr hooks.
func New() *cobra.Command {
	var showHelpConfig bool

	root := &cobra.Command{
		Use:           "tcplb <config-file>",
		Short:         color.New(color.Bold).Sprint("tcplb") + " is a layer-4 TCP load balancer",
		Version:       version.Get().Header(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if showHelpConfig {
				fmt.Fprint(cmd.OutOrStdout(), helpConfigText)
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("exactly one config file argument is required")
			}

			return run(cmd.OutOrStdout(), args[0])
		},
	}

	root.SetOut(colorable.NewColorable(os.Stdout))
	root.SetErr(colorable.NewColorable(os.Stderr))

	root.Flags().BoolVar(&showHelpConfig, "help-config", false, "print the configuration file reference and exit")
	root.SetVersionTemplate("{{.Version}}\n")

	return root
}

func run(out io.Writer, configPath string) error {
	log := logger.New("tcplb")

	cfg, cerr := config.Load(configPath, log)
	if cerr != nil {
		return fmt.Errorf("%s", cerr.Error())
	}

	s := supervisor.New(cfg, log)
	s.Run(nil)

	return nil
}
