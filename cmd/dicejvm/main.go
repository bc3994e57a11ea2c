// Command dicejvm compiles and runs dice-roll expressions, either on the
// legacy stack VM or by generating and interpreting real JVM bytecode.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tangled-dice/dicejvm/internal/analyzer"
	"github.com/tangled-dice/dicejvm/internal/stackvm"
	"github.com/tangled-dice/dicejvm/pkg/classfile"
	"github.com/tangled-dice/dicejvm/pkg/codegen"
	"github.com/tangled-dice/dicejvm/pkg/vm"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "dicejvm",
		Short: "Compile and run dice-roll expressions against a JVM-compatible bytecode engine",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "report byte/instruction counts on stderr")

	root.AddCommand(newRunCommand(), newCompileCommand(), newExecuteCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCommand() *cobra.Command {
	var useJVM bool
	cmd := &cobra.Command{
		Use:   "run <EXPR>",
		Short: "Execute a dice expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := args[0]
			if useJVM {
				return runOnJVM(expr)
			}
			return runOnStackVM(expr)
		},
	}
	cmd.Flags().BoolVar(&useJVM, "jvm", false, "interpret generated JVM bytecode instead of the stack VM")
	return cmd
}

func runOnStackVM(expr string) error {
	machine := stackvm.New(os.Stdout, os.Stderr, time.Now().UnixNano())
	return machine.Run(expr)
}

func runOnJVM(expr string) error {
	a, err := analyzer.New(expr)
	if err != nil {
		return err
	}
	prog, err := a.Analyze()
	if err != nil {
		return err
	}

	cf, err := codegen.GenerateClass(prog, "DiceRoll")
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "generated %s instructions for %s\n",
			humanize.Comma(int64(len(cf.MainMethod.Bytecode))), expr)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	machine := vm.New(cf, os.Stdout, os.Stderr, rng)
	if verbose {
		machine.Trace = func(format string, args ...interface{}) { fmt.Fprintf(os.Stderr, format, args...) }
	}
	_, _, err = machine.ExecuteMain()
	return err
}

func newCompileCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "compile <EXPR>",
		Short: "Compile a dice expression to a .class file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := args[0]
			if out == "" {
				out = "DiceRoll"
			}

			a, err := analyzer.New(expr)
			if err != nil {
				return err
			}
			prog, err := a.Analyze()
			if err != nil {
				return err
			}

			cf, err := codegen.GenerateClass(prog, out)
			if err != nil {
				return err
			}

			path := out + ".class"
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()

			if err := classfile.Write(f, cf); err != nil {
				return err
			}

			if verbose {
				info, statErr := os.Stat(path)
				if statErr == nil {
					fmt.Fprintf(os.Stderr, "wrote %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
				}
			}
			fmt.Printf("Generated: %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "base name for the generated .class file (default DiceRoll)")
	return cmd
}

func newExecuteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute <CLASS_FILE>",
		Short: "Read and run a .class file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			cf, warnings, err := classfile.ParseFile(path)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				fmt.Fprintln(os.Stderr, w)
			}
			if cf.MainMethod == nil {
				return fmt.Errorf("%s: no usable main method found", path)
			}

			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			machine := vm.New(cf, os.Stdout, os.Stderr, rng)
			if verbose {
				machine.Trace = func(format string, args ...interface{}) { fmt.Fprintf(os.Stderr, format, args...) }
				fmt.Fprintf(os.Stderr, "executing %s, %s instructions\n",
					path, humanize.Comma(int64(len(cf.MainMethod.Bytecode))))
			}
			_, _, err = machine.ExecuteMain()
			return err
		},
	}
	return cmd
}
