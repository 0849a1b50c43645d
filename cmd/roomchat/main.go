package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ledzpl/roomchat/internal/chat"
	"github.com/ledzpl/roomchat/internal/config"
	"github.com/ledzpl/roomchat/internal/logx"
	"github.com/ledzpl/roomchat/pkg/lineserver"
	"github.com/ledzpl/roomchat/pkg/sshserver"
	"github.com/ledzpl/roomchat/pkg/wsserver"
)

func main() {
	if err := config.LoadDotenv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := logx.Init(cfg.LogLevel, cfg.LogConsole); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := logx.Logger()

	svc := chat.NewService(
		chat.WithServerName(cfg.ServerName),
		chat.WithSendQueue(cfg.SendQueue),
		chat.WithRooms(cfg.DefaultRooms...),
		chat.WithLogger(logx.Component("chat")),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var transports []func(context.Context) error

	if cfg.TCPAddr != "" {
		srv := lineserver.New(cfg.TCPAddr, logx.Component("tcp"))
		transports = append(transports, func(ctx context.Context) error {
			return srv.ListenAndServe(ctx, func(ctx context.Context, conn *lineserver.Conn) {
				svc.Serve(ctx, conn)
			})
		})
	}

	if cfg.SSHAddr != "" {
		signer, err := sshserver.LoadOrGenerateSigner(cfg.HostKeyPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to prepare host key.")
		}
		srv := sshserver.New(cfg.SSHAddr, signer, logx.Component("ssh"))
		srv.Status = func() string {
			return fmt.Sprintf("%s | Users online: %d", cfg.ServerName, svc.UserCount())
		}
		transports = append(transports, func(ctx context.Context) error {
			return srv.ListenAndServe(ctx, func(ctx context.Context, term *sshserver.Terminal) {
				svc.Serve(ctx, term)
			})
		})
	}

	if cfg.WSAddr != "" {
		srv := wsserver.New(cfg.WSAddr, logx.Component("ws"))
		srv.Users = svc.UserCount
		transports = append(transports, func(ctx context.Context) error {
			return srv.ListenAndServe(ctx, func(ctx context.Context, conn *wsserver.Conn) {
				svc.Serve(ctx, conn)
			})
		})
	}

	if err := runAll(ctx, cancel, transports); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped with error.")
	}
	logger.Info().Msg("Server stopped.")
}

// runAll runs every transport until ctx ends. The first transport failure
// cancels the rest and is returned.
func runAll(ctx context.Context, cancel context.CancelFunc, transports []func(context.Context) error) error {
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)

	for _, run := range transports {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := run(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			once.Do(func() {
				firstErr = err
				cancel()
			})
		}()
	}

	wg.Wait()
	return firstErr
}
