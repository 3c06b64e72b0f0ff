// Command shamclient is the active-open half of the sample sham driver:
// it dials a shamserver and either starts a chat session or pushes a
// file, reporting upload progress on a terminal progress bar.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/datawire/dlib/dlog"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SriHarsha2608/SHAM/pkg/sham"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var chat bool
	cmd := &cobra.Command{
		Use:   "shamclient <host> <port> (--chat [loss] | <in_file> <out_name> [loss])",
		Short: "Connect to a sham server and either chat or push a file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := args[0]
			port, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", args[1], err)
			}
			rest := args[2:]

			if chat {
				lossRate, err := optionalLoss(rest, 0)
				if err != nil {
					return err
				}
				return runChat(host, port, lossRate)
			}

			if len(rest) < 2 {
				return fmt.Errorf("expected <in_file> <out_name> [loss_rate]")
			}
			lossRate, err := optionalLoss(rest, 2)
			if err != nil {
				return err
			}
			return runSendFile(host, port, rest[0], rest[1], lossRate)
		},
	}
	cmd.Flags().BoolVar(&chat, "chat", false, "start an interactive chat session instead of pushing a file")
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show shamclient's version number and exit",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println("shamclient", version)
			return nil
		},
	})
	return cmd
}

// optionalLoss parses the loss_rate positional argument at idx, if present.
func optionalLoss(args []string, idx int) (float64, error) {
	if idx >= len(args) {
		return 0, nil
	}
	v, err := strconv.ParseFloat(args[idx], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid loss_rate %q: %w", args[idx], err)
	}
	return v, nil
}

func dial(host string, port int, lossRate float64) (context.Context, *sham.Connection, error) {
	logger := logrus.StandardLogger()
	ctx := dlog.WithLogger(context.Background(), dlog.WrapLogrus(logger))

	cfg := sham.DefaultConfig()
	cfg.LossRate = lossRate

	trace, err := sham.OpenTrace("client", cfg.VerboseLog)
	if err != nil {
		return nil, nil, fmt.Errorf("opening trace log: %w", err)
	}

	metrics := sham.NewMetrics(nil)
	conn, err := sham.CreateConnectionWith(cfg, trace, metrics)
	if err != nil {
		trace.Close()
		return nil, nil, fmt.Errorf("create connection: %w", err)
	}

	dlog.Infof(ctx, "connecting to %s:%d (loss=%.2f)", host, port, lossRate)
	if err := sham.Connect(ctx, conn, host, port); err != nil {
		trace.Close()
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return ctx, conn, nil
}

func runChat(host string, port int, lossRate float64) error {
	ctx, conn, err := dial(host, port, lossRate)
	if err != nil {
		return err
	}
	stream := sham.NewStream(ctx, conn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 4096)
		for {
			n, err := stream.Read(buf)
			if n > 0 {
				os.Stdout.Write(buf[:n])
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				dlog.Errorf(ctx, "chat read: %v", err)
				return
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := append(scanner.Bytes(), '\n')
		if _, err := stream.Write(line); err != nil {
			return fmt.Errorf("chat write: %w", err)
		}
	}
	return stream.Close()
}

func runSendFile(host string, port int, inFile, outName string, lossRate float64) error {
	ctx, conn, err := dial(host, port, lossRate)
	if err != nil {
		return err
	}

	f, err := os.Open(inFile)
	if err != nil {
		return fmt.Errorf("opening %q: %w", inFile, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %q: %w", inFile, err)
	}

	bar := progressbar.DefaultBytes(stat.Size(), fmt.Sprintf("sending %s", outName))
	reader := io.TeeReader(f, bar)

	n, err := sham.SendFile(ctx, conn, outName, stat.Size(), reader)
	if err != nil {
		return fmt.Errorf("sending file: %w", err)
	}
	dlog.Infof(ctx, "sent %d bytes as %q", n, outName)

	return sham.Close(ctx, conn)
}
