package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/raymyers/p4c-of/pkg/cfg"
	"github.com/raymyers/p4c-of/pkg/ddlog"
	"github.com/raymyers/p4c-of/pkg/ddloggen"
	"github.com/raymyers/p4c-of/pkg/frontend"
	"github.com/raymyers/p4c-of/pkg/p4"
	"github.com/raymyers/p4c-of/pkg/resources"
)

var version = "0.1.0"

// Debug flags for dumping intermediate results
var (
	dP4    bool
	dCFG   bool
	dFlows bool
	dDecls bool
)

var (
	outputFile string
	targetFile string
	verbose    bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "p4c-of: %v\n", err)
		return 1
	}
	return 0
}

// debugFlagNames lists the debug flags also accepted with a single dash.
var debugFlagNames = []string{"dp4", "dcfg", "dflows", "ddecls"}

// normalizeFlags converts single-dash debug flags like -dcfg to --dcfg
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range debugFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

// flagAliases maps spelled-out names to the debug flags.
var flagAliases = map[string]string{
	"dump-p4":    "dp4",
	"dump-cfg":   "dcfg",
	"dump-flows": "dflows",
	"dump-decls": "ddecls",
}

func aliasFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if alias, ok := flagAliases[name]; ok {
		name = alias
	}
	return pflag.NormalizedName(name)
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "p4c-of [file]",
		Short: "p4c-of compiles a pipeline program to OpenFlow flows in DDlog",
		Long: `p4c-of compiles a match-action pipeline program into a DDlog
program whose Flow relation holds the OpenFlow flows implementing it.
Tables become input relations the control plane fills at run time.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(errOut)

			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			filename := args[0]

			target, err := loadTarget(targetFile)
			if err != nil {
				return err
			}
			prog, err := frontend.LoadFile(filename)
			if err != nil {
				return err
			}

			// Handle -dp4: dump the resolved program
			if dP4 {
				p4.NewPrinter(out).PrintProgram(prog)
				return nil
			}

			log.Infof("compiling %s", filename)
			compiled, err := ddloggen.Compile(prog, target)
			if err != nil {
				return fmt.Errorf("%s: %w", filename, err)
			}

			switch {
			case dCFG:
				doCFG(compiled, out)
				return nil
			case dFlows:
				printDecls(out, compiled.Flows)
				return nil
			case dDecls:
				printDecls(out, compiled.Helpers)
				printDecls(out, compiled.Declarations)
				return nil
			}

			output := outputFile
			if output == "" {
				output = defaultOutputFilename(filename)
			}
			if err := writeProgram(output, compiled.Program()); err != nil {
				return err
			}
			log.Infof("wrote %d flows to %s", len(compiled.Flows), output)
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.Flags().SetNormalizeFunc(aliasFlags)

	// Add debug flags
	rootCmd.Flags().BoolVarP(&dP4, "dp4", "", false, "Dump the resolved program")
	rootCmd.Flags().BoolVarP(&dCFG, "dcfg", "", false, "Dump the control flow graph of each control")
	rootCmd.Flags().BoolVarP(&dFlows, "dflows", "", false, "Dump the flow rules only")
	rootCmd.Flags().BoolVarP(&dDecls, "ddecls", "", false, "Dump the helpers and declarations only")

	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default <input>.dl)")
	rootCmd.Flags().StringVar(&targetFile, "target", "", "YAML file overriding the switch constants")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every compilation step")

	return rootCmd
}

// configureLogging sends logs to errOut, colored when it is a terminal.
func configureLogging(errOut io.Writer) {
	log.SetOutput(errOut)
	color := false
	if f, ok := errOut.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	log.SetFormatter(&log.TextFormatter{ForceColors: color, DisableColors: !color, DisableTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

func loadTarget(filename string) (resources.Target, error) {
	if filename == "" {
		return resources.DefaultTarget(), nil
	}
	f, err := os.Open(filename)
	if err != nil {
		return resources.Target{}, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer f.Close()
	t, err := resources.LoadTarget(f)
	if err != nil {
		return resources.Target{}, fmt.Errorf("%s: %w", filename, err)
	}
	return t, nil
}

// defaultOutputFilename returns the output filename: input.yaml -> input.dl
func defaultOutputFilename(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".dl"
}

func writeProgram(filename string, prog *ddlog.Program) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", filename, err)
	}
	ddlog.NewPrinter(f).PrintProgram(prog)
	if err := f.Close(); err != nil {
		return fmt.Errorf("error writing %s: %w", filename, err)
	}
	return nil
}

func printDecls(out io.Writer, decls []ddlog.Decl) {
	p := ddlog.NewPrinter(out)
	for _, d := range decls {
		p.PrintDecl(d)
	}
}

// doCFG prints the ingress graph, the multicast stage and the egress graph.
func doCFG(compiled *ddloggen.Output, out io.Writer) {
	p := cfg.NewPrinter(out)
	for i, g := range compiled.Graphs {
		if i > 0 {
			fmt.Fprintln(out)
		}
		p.PrintGraph(g)
		if i == 0 {
			fmt.Fprintf(out, "\nmulticast: %d\n", compiled.Stages.Multicast)
		}
	}
}
