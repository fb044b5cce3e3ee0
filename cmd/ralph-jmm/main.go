package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/raymyers/ralph-jmm/pkg/config"
	"github.com/raymyers/ralph-jmm/pkg/jasmin"
	"github.com/raymyers/ralph-jmm/pkg/ollir"
	"github.com/raymyers/ralph-jmm/pkg/regalloc"
	"github.com/raymyers/ralph-jmm/pkg/report"
)

var version = "0.1.0"

// Debug flags for dumping intermediate output
var (
	dOllir    bool
	dLiveness bool
	dRegalloc bool
	dJasmin   bool
)

// Compilation flags
var (
	registers  int
	configFile string
	strict     bool
	outputFile string
)

// ErrCompilation is returned when strict mode sees an error report
var ErrCompilation = errors.New("compilation failed")

// debugFlagNames lists the flags accepted with a single dash, CompCert style
var debugFlagNames = []string{"dollir", "dliveness", "dregalloc", "djasmin"}

func resetFlags() {
	dOllir = false
	dLiveness = false
	dRegalloc = false
	dJasmin = false
	registers = config.SkipAllocation
	configFile = ""
	strict = false
	outputFile = ""
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// normalizeFlags converts single-dash debug flags (-dollir) to double-dash (--dollir)
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		result[i] = arg
		for _, name := range debugFlagNames {
			if arg == "-"+name {
				result[i] = "--" + name
				break
			}
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ralph-jmm [file]",
		Short: "Register allocator and Jasmin generator for OLLIR",
		Long: `ralph-jmm reads a class in OLLIR, assigns JVM local registers to its
variables and writes the class as Jasmin assembly.

The -r option selects the allocation mode: -1 keeps the sequential numbering,
0 uses as few registers as possible and n > 0 is a hard limit on the registers
used by the locals of each method.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd.Flags(), args)
			if err != nil {
				fmt.Fprintf(errOut, "ralph-jmm: %v\n", err)
				return err
			}
			if opts.Input == "" {
				return cmd.Help()
			}
			return doCompile(opts, out, errOut)
		},
	}

	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().IntVarP(&registers, "registers", "r", config.SkipAllocation, "Register budget for locals (-1 skip, 0 minimise)")
	rootCmd.Flags().StringVar(&configFile, "config", "", "Read options from a YAML file")
	rootCmd.Flags().BoolVar(&strict, "strict", false, "Fail when an error report is raised")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write Jasmin to this file instead of <input>.j")

	// Add debug flags
	rootCmd.Flags().BoolVarP(&dOllir, "dollir", "", false, "Dump the parsed OLLIR")
	rootCmd.Flags().BoolVarP(&dLiveness, "dliveness", "", false, "Dump liveness sets")
	rootCmd.Flags().BoolVarP(&dRegalloc, "dregalloc", "", false, "Dump interference graphs and registers")
	rootCmd.Flags().BoolVarP(&dJasmin, "djasmin", "", false, "Dump the generated Jasmin")

	return rootCmd
}

// loadOptions reads the config file, if any, and applies the flags that were
// set explicitly on top of it
func loadOptions(flags *pflag.FlagSet, args []string) (*config.Options, error) {
	opts := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		opts = loaded
	}

	if len(args) > 0 {
		opts.Input = args[0]
	}
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "registers":
			opts.RegisterAllocation = registers
		case "strict":
			opts.Strict = strict
		case "output":
			opts.Output = outputFile
		case "dollir":
			opts.Dumps = appendDump(opts.Dumps, "ollir", dOllir)
		case "dliveness":
			opts.Dumps = appendDump(opts.Dumps, "liveness", dLiveness)
		case "dregalloc":
			opts.Dumps = appendDump(opts.Dumps, "regalloc", dRegalloc)
		case "djasmin":
			opts.Dumps = appendDump(opts.Dumps, "jasmin", dJasmin)
		}
	})

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func appendDump(dumps []string, name string, on bool) []string {
	kept := dumps[:0:0]
	for _, d := range dumps {
		if d != name {
			kept = append(kept, d)
		}
	}
	if on {
		kept = append(kept, name)
	}
	return kept
}

// jasminOutputFilename returns the output filename: input.ollir -> input.j
func jasminOutputFilename(filename string) string {
	ext := ".ollir"
	if strings.HasSuffix(filename, ext) {
		return filename[:len(filename)-len(ext)] + ".j"
	}
	return filename + ".j"
}

// doCompile runs parse, allocation and generation on opts.Input
func doCompile(opts *config.Options, out, errOut io.Writer) error {
	content, err := os.ReadFile(opts.Input)
	if err != nil {
		fmt.Fprintf(errOut, "ralph-jmm: error reading %s: %v\n", opts.Input, err)
		return err
	}

	class, err := ollir.Parse(string(content))
	if err != nil {
		fmt.Fprintf(errOut, "ralph-jmm: %v\n", err)
		return err
	}

	if opts.Dump("ollir") {
		ollir.NewPrinter(out).PrintClass(class)
	}

	reports, err := allocate(class, opts, out)
	if err != nil {
		fmt.Fprintf(errOut, "ralph-jmm: %v\n", err)
		return err
	}

	code, genReports := jasmin.Generate(class)
	reports = append(reports, genReports...)
	for _, r := range reports {
		fmt.Fprintf(errOut, "ralph-jmm: %s\n", r)
	}
	if opts.Strict && report.HasErrors(reports) {
		return ErrCompilation
	}

	if opts.Dump("jasmin") {
		fmt.Fprint(out, code)
	}

	outputFilename := opts.Output
	if outputFilename == "" {
		outputFilename = jasminOutputFilename(opts.Input)
	}
	if err := os.WriteFile(outputFilename, []byte(code), 0644); err != nil {
		fmt.Fprintf(errOut, "ralph-jmm: error creating %s: %v\n", outputFilename, err)
		return err
	}
	return nil
}

// allocate assigns registers to every method of class and prints the
// requested allocation dumps
func allocate(class *ollir.Class, opts *config.Options, out io.Writer) ([]report.Report, error) {
	var reports []report.Report
	printer := ollir.NewPrinter(out)

	for _, m := range class.Methods {
		if !opts.AllocationEnabled() {
			ollir.AssignSequentialRegisters(m)
			if opts.Dump("liveness") {
				lv, err := regalloc.AnalyzeLiveness(m)
				if err != nil {
					return nil, fmt.Errorf("liveness for %s: %w", m.Name, err)
				}
				lv.Print(out, m)
			}
			if opts.Dump("regalloc") {
				printer.PrintRegisters(m)
			}
			continue
		}

		alloc, err := regalloc.AllocateMethod(m, opts.Limit())
		if err != nil {
			return nil, err
		}
		reports = append(reports, alloc.Reports...)
		if opts.Dump("liveness") {
			alloc.Liveness.Print(out, m)
		}
		if opts.Dump("regalloc") {
			fmt.Fprintf(out, "%s interference (%d colours):\n", m.Name, alloc.Coloring.NumColors())
			alloc.Graph.Print(out)
			printer.PrintRegisters(m)
		}
	}
	return reports, nil
}
