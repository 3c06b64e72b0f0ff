// Command shamserver is the accepting half of the sample sham driver: it
// accepts a single connection and either runs a chat session (printing
// what arrives, sending stdin lines) or receives a file and reports its
// MD5 digest.
package main

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/datawire/dlib/dlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "shamserver <port> [loss_rate]",
		Short: "Accept one sham connection and either chat or receive a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", args[0], err)
			}
			lossRate := 0.0
			if len(args) == 2 {
				lossRate, err = strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("invalid loss_rate %q: %w", args[1], err)
				}
			}
			return run(port, chat, lossRate, metricsAddr)
		},
	}
	cmd.Flags().BoolVar(&chat, "chat", false, "run an interactive chat session instead of receiving a file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show shamserver's version number and exit",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println("shamserver", version)
			return nil
		},
	})
	return cmd
}

func run(port int, chat bool, lossRate float64, metricsAddr string) error {
	logger := logrus.StandardLogger()
	ctx := dlog.WithLogger(context.Background(), dlog.WrapLogrus(logger))

	cfg := sham.DefaultConfig()
	cfg.LossRate = lossRate

	trace, err := sham.OpenTrace("server", cfg.VerboseLog)
	if err != nil {
		return fmt.Errorf("opening trace log: %w", err)
	}
	defer trace.Close()

	reg := prometheus.NewRegistry()
	metrics := sham.NewMetrics(reg)
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				dlog.Errorf(ctx, "metrics server: %v", err)
			}
		}()
		dlog.Infof(ctx, "serving metrics on %s/metrics", metricsAddr)
	}

	listener, err := sham.ListenUDP(port, cfg, trace, metrics)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer listener.Close()

	dlog.Infof(ctx, "listening on port %d (loss=%.2f, chat=%v)", port, lossRate, chat)
	conn, err := listener.Accept(ctx)
	if err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	dlog.Infof(ctx, "accepted connection %s", conn.ID())

	stream := sham.NewStream(ctx, conn)
	if chat {
		return runChat(ctx, stream)
	}
	return runRecvFile(ctx, conn)
}

func runChat(ctx context.Context, stream *sham.Stream) error {
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

func runRecvFile(ctx context.Context, conn *sham.Connection) error {
	hdr, err := sham.RecvFileHeader(ctx, conn)
	if err != nil {
		return fmt.Errorf("receiving file header: %w", err)
	}
	dlog.Infof(ctx, "receiving %q (%d bytes)", hdr.Name, hdr.Size)

	out, err := os.Create(hdr.Name)
	if err != nil {
		return fmt.Errorf("creating %q: %w", hdr.Name, err)
	}
	defer out.Close()

	hasher := md5.New()
	n, err := sham.RecvFile(ctx, conn, hdr, io.MultiWriter(out, hasher))
	if err != nil {
		return fmt.Errorf("receiving file body: %w", err)
	}
	dlog.Infof(ctx, "received %d bytes, md5=%s", n, hex.EncodeToString(hasher.Sum(nil)))

	if err := sham.Close(ctx, conn); err != nil {
		return fmt.Errorf("closing: %w", err)
	}
	fmt.Printf("received %q (%d bytes), md5=%s\n", hdr.Name, n, hex.EncodeToString(hasher.Sum(nil)))
	return nil
}
