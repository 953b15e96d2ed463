// Command objdiff prints the structural difference between two JSON or YAML
// documents.
//
//	objdiff [flags] <source> <target>
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/qri-io/objdiff"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	stats          bool
	color          string
	hashEquality   bool
	slicesAsArrays bool
	verify         bool
	verbosity      int
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "objdiff [flags] <source> <target>",
		Short: "print the structural difference between two documents",
		Long: `objdiff reads two JSON or YAML documents and prints the changes that turn
source into target, one line per changed value:

  +key: value        added
  -key: value        removed
  ~key: prev -> next updated
  #key: prev -> next resized`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(o, args[0], args[1], out, errOut)
			if err != nil {
				fmt.Fprintln(errOut, color.RedString("error:"), err)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&o.stats, "stats", false, "print change counts after the diff")
	cmd.Flags().StringVar(&o.color, "color", "auto", "colorize output. One of: (auto | always | never)")
	cmd.Flags().BoolVar(&o.hashEquality, "hash-equality", false, "compare values by structural hash")
	cmd.Flags().BoolVar(&o.slicesAsArrays, "slices-as-arrays", false, "diff lists as fixed-length arrays")
	cmd.Flags().BoolVar(&o.verify, "verify", false, "check that applying the diff to source reproduces target")
	cmd.Flags().CountVarP(&o.verbosity, "verbose", "v", "log diff internals to stderr, repeat for more detail")
	return cmd
}

func run(o *options, srcPath, targetPath string, out, errOut io.Writer) error {
	colorTTY, err := useColor(o.color, out)
	if err != nil {
		return err
	}

	src, err := readDocument(srcPath)
	if err != nil {
		return err
	}
	target, err := readDocument(targetPath)
	if err != nil {
		return err
	}

	stats := &objdiff.Stats{}
	opts := []objdiff.Option{
		objdiff.OptionSetStats(stats),
		objdiff.OptionSetLogger(newLogger(errOut, o.verbosity)),
	}
	if o.hashEquality {
		opts = append(opts, objdiff.OptionEnable(objdiff.EqualityUseHash))
	}
	if o.slicesAsArrays {
		opts = append(opts, objdiff.OptionEnable(objdiff.SlicesAsArrays))
	}
	m := objdiff.New(opts...)

	node, err := m.Diff(src, target)
	if err != nil {
		return err
	}
	if err := objdiff.FormatPretty(out, node, colorTTY); err != nil {
		return err
	}

	if o.stats {
		if colorTTY {
			fmt.Fprint(out, objdiff.FormatPrettyStatsColor(stats))
		} else {
			fmt.Fprint(out, objdiff.FormatPrettyStats(stats))
		}
	}

	if o.verify {
		return verify(m, src, target, node)
	}
	return nil
}

// verify applies node to a copy of src & checks nothing separates the result
// from target
func verify(m *objdiff.Mapper, src, target interface{}, node *objdiff.DiffNode) error {
	merged, err := m.ApplyDiff(src, node, objdiff.CloneFullObject)
	if err != nil {
		return errors.Wrap(err, "verifying diff")
	}
	rest, err := m.Diff(merged, target)
	if err != nil {
		return errors.Wrap(err, "verifying diff")
	}
	if !rest.IsEmpty() {
		s, _ := objdiff.FormatPrettyString(rest, false)
		return errors.Errorf("applying the diff doesn't reproduce target, remaining changes:\n%s", s)
	}
	return nil
}

// readDocument decodes a JSON or YAML file. YAML is a superset of JSON, so
// one decoder handles both
func readDocument(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return doc, nil
}

func useColor(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
			return false, nil
		}
		f, ok := w.(*os.File)
		return ok && isatty.IsTerminal(f.Fd()), nil
	}
	return false, errors.Errorf("invalid color mode %q", mode)
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	if verbosity == 0 {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}
