package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ezrec/malbolge/cipher"
	"github.com/ezrec/malbolge/debugger"
	"github.com/ezrec/malbolge/emulator"
	"github.com/ezrec/malbolge/loader"
	"github.com/ezrec/malbolge/metrics"
	"github.com/ezrec/malbolge/script"
	"github.com/ezrec/malbolge/translate"
)

var (
	rootCmd = &cobra.Command{
		Use:          "malbolge",
		Short:        "Malbolge virtual machine and debugger",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.Printf("malbolge: locale %v", translate.Languages())
			}
		},
	}
	verbose    bool
	normalised loader.Hint

	runCmd = &cobra.Command{
		Use:   "run [program]",
		Short: "Run a program, with the tape on stdin and stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	inputPath   string
	outputPath  string
	timeout     time.Duration
	metricsPath string

	debugCmd = &cobra.Command{
		Use:   "debug [program]",
		Short: "Run a program under a debugger script",
		Args:  cobra.ExactArgs(1),
		RunE:  runDebug,
	}
	scriptPath string

	normaliseCmd = &cobra.Command{
		Use:   "normalise [program]",
		Short: "Rewrite a program in normalised form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transform(cmd, args[0], cipher.Normalise)
		},
	}

	denormaliseCmd = &cobra.Command{
		Use:   "denormalise [program]",
		Short: "Rewrite a normalised program in executable form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transform(cmd, args[0], cipher.Denormalise)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().Var(&normalised, "normalised", "Program is normalised: auto, on or off")

	runCmd.Flags().StringVarP(&inputPath, "input", "i", "-", "Tape input")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Tape output")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "Stop the program after this long")
	runCmd.Flags().StringVar(&metricsPath, "metrics", "", "Write Prometheus metrics to this text file")
	rootCmd.AddCommand(runCmd)

	debugCmd.Flags().StringVarP(&scriptPath, "script", "s", "", "Debugger script")
	debugCmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Program output")
	debugCmd.Flags().DurationVar(&timeout, "timeout", 0, "Stop the script after this long")
	debugCmd.Flags().StringVar(&metricsPath, "metrics", "", "Write Prometheus metrics to this text file")
	_ = debugCmd.MarkFlagRequired("script")
	rootCmd.AddCommand(debugCmd)

	rootCmd.AddCommand(normaliseCmd)
	rootCmd.AddCommand(denormaliseCmd)
}

func commandContext(cmd *cobra.Command) (ctx context.Context, cancel context.CancelFunc) {
	ctx = cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// newMetrics creates collectors on a private registry, if a metrics file
// was requested.
func newMetrics() (m *metrics.Metrics, reg *prometheus.Registry, err error) {
	if metricsPath == "" {
		return
	}

	reg = prometheus.NewRegistry()
	m, err = metrics.New(reg)
	return
}

func writeMetrics(reg *prometheus.Registry) (err error) {
	if reg == nil {
		return
	}

	return prometheus.WriteToTextfile(metricsPath, reg)
}

func openOutput(cmd *cobra.Command) (w io.Writer, closer func() error, err error) {
	if outputPath == "-" {
		w = cmd.OutOrStdout()
		closer = func() error { return nil }
		return
	}

	ouf, err := os.Create(outputPath)
	if err != nil {
		return
	}

	w = ouf
	closer = ouf.Close
	return
}

func runRun(cmd *cobra.Command, args []string) (err error) {
	mem, err := loader.LoadFile(args[0], normalised)
	if err != nil {
		return
	}

	m, reg, err := newMetrics()
	if err != nil {
		return
	}

	emu := emulator.NewEmulator(mem)
	emu.Verbose = verbose
	emu.Metrics = m

	if inputPath == "-" {
		emu.Tape.Input = cmd.InOrStdin()
	} else {
		var inf *os.File
		inf, err = os.Open(inputPath)
		if err != nil {
			return
		}
		defer inf.Close()
		emu.Tape.Input = inf
	}

	w, closer, err := openOutput(cmd)
	if err != nil {
		return
	}
	defer func() {
		if cerr := closer(); err == nil {
			err = cerr
		}
	}()
	emu.Tape.Output = w

	ctx, cancel := commandContext(cmd)
	defer cancel()

	err = emu.Run(ctx)
	if err != nil {
		return
	}

	err = writeMetrics(reg)
	return
}

func runDebug(cmd *cobra.Command, args []string) (err error) {
	mem, err := loader.LoadFile(args[0], normalised)
	if err != nil {
		return
	}

	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return
	}

	m, reg, err := newMetrics()
	if err != nil {
		return
	}

	w, closer, err := openOutput(cmd)
	if err != nil {
		return
	}
	defer func() {
		if cerr := closer(); err == nil {
			err = cerr
		}
	}()

	stdout := cmd.OutOrStdout()
	runner := &script.Runner{
		Verbose: verbose,
		Metrics: m,
		Output:  w,
		Print:   cmd.ErrOrStderr(),
		OnRegisterValue: func(data debugger.RegisterData) {
			if data.Pointer {
				fmt.Fprintf(stdout, "\n%v: %v [%v]\n", data.Register, data.Value, data.Target)
			} else {
				fmt.Fprintf(stdout, "\n%v: %v\n", data.Register, data.Value)
			}
		},
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	err = runner.Run(ctx, mem, scriptPath, src)
	if err != nil {
		return
	}

	err = writeMetrics(reg)
	return
}

func transform(cmd *cobra.Command, path string, fn func([]byte) ([]byte, error)) (err error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return
	}

	result, err := fn(source)
	if err != nil {
		err = fmt.Errorf("%v: %w", path, err)
		return
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(result))
	return
}
