package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/andewx/dieselsss"
	"github.com/andewx/dieselsss/kernel"
	"github.com/andewx/dieselsss/render"
)

func init() {
	//glfw and the Vulkan surface must stay on the main thread
	runtime.LockOSThread()
}

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dieselsss",
		Short:        "Real-time screen space subsurface scattering renderer",
		SilenceUsage: true,
	}
	root.AddCommand(runCmd(), kernelCmd(), configCmd())
	return root
}

func loadUsage(path string) (dieselsss.Usage, error) {
	if path == "" {
		return dieselsss.DefaultUsage(), nil
	}
	return dieselsss.LoadUsage(path)
}

func runCmd() *cobra.Command {
	var config string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the window and render the skin demo",
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := loadUsage(config)
			if err != nil {
				return err
			}
			return run(cmd.Context(), usage, config, verbose)
		},
	}
	cmd.Flags().StringVarP(&config, "config", "c", "", "TOML or YAML configuration file, watched for kernel changes")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also write the info log to stderr")
	return cmd
}

func run(parent context.Context, usage dieselsss.Usage, config string, verbose bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	if err := dieselsss.InitDisplay(); err != nil {
		return err
	}
	defer dieselsss.TerminateDisplay()

	core, err := dieselsss.NewBaseCore(usage, dieselsss.NewSkinDemo(), dieselsss.CoreOptions{Verbose: verbose})
	if err != nil {
		return err
	}
	defer core.Close()

	if config != "" {
		go func() {
			err := dieselsss.Watch(ctx, config, func(u dieselsss.Usage, err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "config reload: %v\n", err)
					return
				}
				core.SetKernel(u)
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "config watch: %v\n", err)
			}
		}()
	}

	err = core.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if render.IsFatal(err) {
		dieselsss.Fatal(err, func() { core.Close() }, dieselsss.TerminateDisplay)
	}
	return err
}

func kernelCmd() *cobra.Command {
	var config string
	var samples int
	cmd := &cobra.Command{
		Use:   "kernel",
		Short: "Print the separable diffusion kernel",
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := loadUsage(config)
			if err != nil {
				return err
			}
			params := usage.KernelParams()
			if cmd.Flags().Changed("samples") {
				params.Samples = samples
			}
			k, err := params.Kernel()
			if err != nil {
				return err
			}
			printKernel(cmd.OutOrStdout(), k)
			return nil
		},
	}
	cmd.Flags().StringVarP(&config, "config", "c", "", "configuration file with a [kernel] section")
	cmd.Flags().IntVarP(&samples, "samples", "n", 0, "odd sample count overriding the configuration")
	return cmd
}

func printKernel(w io.Writer, k []kernel.Sample) {
	fmt.Fprintf(w, "%-4s %10s %10s %10s %10s\n", "i", "r", "g", "b", "offset")
	for i, s := range k {
		fmt.Fprintf(w, "%-4d %10.6f %10.6f %10.6f %10.6f\n", i, s.Weight[0], s.Weight[1], s.Weight[2], s.Offset)
	}
}

func configCmd() *cobra.Command {
	var config string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := loadUsage(config)
			if err != nil {
				return err
			}
			data, err := usage.EncodeTOML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&config, "config", "c", "", "configuration file to merge over the defaults")
	return cmd
}
