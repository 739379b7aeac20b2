package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"webhook-proxy-go/internal/apigw"
	"webhook-proxy-go/internal/app"
	"webhook-proxy-go/internal/config"
	"webhook-proxy-go/internal/handler"
)

// Set by goreleaser ldflags.
var version = "dev"

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("webhook-proxy-lambda"),
		kong.Description("API Gateway entry point for the webhook proxy."),
	)

	var (
		e      *echo.Echo
		logger *slog.Logger
	)
	fxApp := fx.New(
		app.Module(&cli, handler.Version(version)),
		fx.Populate(&e, &logger),
	)
	if err := fxApp.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "webhook-proxy-lambda: %v\n", err)
		os.Exit(1)
	}

	logger.Info("lambda ready", "version", version)
	lambda.Start(apigw.New(e, logger).Handle)
}
