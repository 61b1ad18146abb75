// cmd/formctl/main.go
//
// formctl – command-line companion to the portal forms.
//
//	formctl check                                    lint every definition
//	formctl validate crop-yield --set area=2 ...     run client validation
//	formctl submit crop-yield --set ... --base-url   run the full pipeline
//	formctl calendar --crop Wheat                    print calendar rows
//
// Definitions come from --forms (repeatable, earlier wins).  Logs go to
// stderr so stdout stays machine-readable.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yanizio/agriportal/internal/form"
	"github.com/yanizio/agriportal/internal/logger"
)

type options struct {
	forms    []string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "formctl",
		Short:         "Inspect, validate, and submit portal forms",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, err := logger.NewConsole(opts.logLevel)
			return err
		},
	}
	root.PersistentFlags().StringSliceVar(&opts.forms, "forms", []string{"conf/forms"},
		"form definition directories, in precedence order")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn",
		"debug, info, warn, or error")

	root.AddCommand(
		newCheckCmd(opts),
		newValidateCmd(opts),
		newSubmitCmd(opts),
		newCalendarCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "formctl:", err)
		os.Exit(1)
	}
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func (o *options) registry() (*form.Registry, error) {
	reg := form.NewRegistry()
	if err := reg.LoadDirs(o.forms...); err != nil {
		return nil, err
	}
	return reg, nil
}

func (o *options) definition(id string) (*form.Definition, error) {
	reg, err := o.registry()
	if err != nil {
		return nil, err
	}
	def, ok := reg.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown form %q (have %s)", id, strings.Join(reg.IDs(), ", "))
	}
	return def, nil
}

// parseSets turns ["a=1", "b=x=y"] into Values.
func parseSets(sets []string) (form.Values, error) {
	vals := make(form.Values, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--set %q: want name=value", s)
		}
		vals[k] = v
	}
	return vals, nil
}
