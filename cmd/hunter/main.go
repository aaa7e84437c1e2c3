package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tlslibhunter/tlslibhunter-go/internal/hunter"
	"github.com/tlslibhunter/tlslibhunter-go/internal/output"
)

var (
	flagListOnly bool
	flagOutput   string
	flagFormat   string
	flagMobile   bool
	flagSerial   string
	flagHost     string
	flagSpawn    bool
	flagDebug    bool
	flagVerbose  bool
	flagTimeout  int
)

var rootCmd = &cobra.Command{
	Use:   "hunter <target>",
	Short: "Identify and extract TLS/SSL libraries from a running process",
	Long: `Attaches to a running process (or spawns one), scans its loaded modules
for TLS/SSL library signatures (OpenSSL, BoringSSL, GnuTLS, wolfSSL,
mbedTLS, NSS and others) and optionally extracts the matched libraries.

The target can be a process name, a PID, or an application identifier
such as an Android package name.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().BoolVarP(&flagListOnly, "list-only", "l", false, "only list detected libraries, do not extract")
	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output directory for extracted libraries (overrides --list-only)")
	rootCmd.Flags().StringVarP(&flagFormat, "format", "f", "table", "output format: table, json, plain")
	rootCmd.Flags().BoolVarP(&flagMobile, "mobile", "m", false, "connect to the first USB device")
	rootCmd.Flags().StringVar(&flagSerial, "serial", "", "connect to the device with the given serial (implies --mobile)")
	rootCmd.Flags().StringVar(&flagHost, "host", "", "connect to a remote frida-server at ip:port")
	rootCmd.Flags().BoolVarP(&flagSpawn, "spawn", "s", false, "spawn the target instead of attaching")
	rootCmd.Flags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug logging")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "also check export symbols for modules without name matches")
	rootCmd.Flags().IntVar(&flagTimeout, "timeout", 10, "attach timeout in seconds")
}

func run(cmd *cobra.Command, args []string) error {
	target := args[0]

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if flagDebug {
		logger.SetLevel(logrus.DebugLevel)
	}

	formatter, err := output.GetFormatter(flagFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h, err := hunter.New(hunter.Options{
		Target:    target,
		Mobile:    flagMobile || flagSerial != "",
		Serial:    flagSerial,
		Host:      flagHost,
		Spawn:     flagSpawn,
		Timeout:   time.Duration(flagTimeout) * time.Second,
		Verbose:   flagVerbose,
		OutputDir: flagOutput,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer h.Close()

	result, err := h.Scan(ctx)
	if err != nil {
		return err
	}

	fmt.Println(formatter.FormatScan(result))

	if result.TLSLibraryCount() == 0 {
		fmt.Fprintln(os.Stderr, "No TLS/SSL libraries detected.")
		return nil
	}

	// -o 指定输出目录时即使带 -l 也执行提取
	if flagListOnly && flagOutput == "" {
		return nil
	}

	outputDir := hunter.Options{Target: target, OutputDir: flagOutput}.EffectiveOutputDir()
	extractions, err := h.Extract(ctx, result, outputDir)
	if err != nil {
		return err
	}

	fmt.Println(formatter.FormatExtractions(extractions))

	extracted := 0
	for _, ext := range extractions {
		if ext.Success {
			extracted++
		}
	}
	fmt.Fprintf(os.Stderr, "Extracted %d/%d libraries to %s\n", extracted, len(extractions), outputDir)

	return nil
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if errors.Is(err, context.Canceled) {
		os.Exit(130)
	}
	os.Exit(1)
}
