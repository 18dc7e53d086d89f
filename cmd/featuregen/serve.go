package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/yourorg/featuregen/internal/mcptools"
	"github.com/yourorg/featuregen/internal/report"
	"github.com/yourorg/featuregen/internal/server"
)

func newServeCmd(g *globals) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer a.Close()
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if err := a.cfg.ValidateServe(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gen := a.controller(ctx)
			a.logger.Info("generation tiers", "tiers", gen.Tiers(), "primary", gen.Caps.Report().PrimaryMethod)

			opts := []server.Option{server.WithLogger(a.logger)}
			if a.cfg.Report.S3.Bucket != "" {
				pub, err := report.NewS3Publisher(a.cfg.Report.S3, a.logger)
				if err != nil {
					return fmt.Errorf("report publisher: %w", err)
				}
				opts = append(opts, server.WithPublisher(pub))
			}
			srv, err := server.New(a.cfg, gen, a.engine(), a.store, opts...)
			if err != nil {
				return err
			}
			addr := net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port))
			if err := srv.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "server host")
	cmd.Flags().IntVar(&port, "port", 8000, "server port")
	return cmd
}

func newMCPCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pipeline as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer a.Close()
			tools := &mcptools.Tools{Gen: a.controller(cmd.Context()), Engine: a.engine()}
			return mcptools.NewServer(tools, version).Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
