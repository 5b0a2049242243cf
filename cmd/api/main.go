package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	_ "audio-job-service/docs"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool   `help:"Enable debug logging with console output."`
		EnvFile string `help:"Load environment variables from this file first." type:"path"`
		Version kong.VersionFlag

		Serve ServeCmd `cmd:"" default:"1" help:"Serve the HTTP API (default)."`
		Token TokenCmd `cmd:"" help:"Print an access token for a user (development)."`
	}
)

type Globals struct {
	Debug   bool
	EnvFile string
	Version string
}

// @title Audio Job Service API
// @version 1.0
// @description Submits audio generation jobs and streams their status.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Description("Audio generation API with live job status streams."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&Globals{Debug: cli.Debug, EnvFile: cli.EnvFile, Version: version})
	cmd.FatalIfErrorf(err)
}
