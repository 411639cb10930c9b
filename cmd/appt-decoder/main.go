package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/appointments/internal/config"
	"github.com/ehr/appointments/internal/domain/appointment"
	"github.com/ehr/appointments/internal/platform/batchfile"
	"github.com/ehr/appointments/internal/platform/hl7v2"
	"github.com/ehr/appointments/internal/platform/middleware"
	"github.com/ehr/appointments/internal/platform/telemetry"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "appt-decoder",
		Short:        "Decode HL7 SIU scheduling batches into appointment records",
		SilenceUsage: true,
	}

	root.AddCommand(decodeCmd())
	root.AddCommand(serveCmd())
	return root
}

func decodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <input.hl7>",
		Short: "Decode a batch file and print the accepted appointments",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: %s", cmd.UseLine())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			if format == "" {
				format = cfg.OutputFormat
			}

			logger := newLogger(cfg, cmd.ErrOrStderr())
			return runDecode(cmd.OutOrStdout(), args[0], format, cfg.DecodeWorkers, logger)
		},
	}
	cmd.Flags().String("format", "", "Output format: json or yaml (default from OUTPUT_FORMAT)")
	return cmd
}

// runDecode reads path, decodes it and writes the accepted records to out.
func runDecode(out io.Writer, path, format string, workers int, logger zerolog.Logger) error {
	raw := batchfile.Read(path, logger)
	decoder := appointment.NewDecoder(logger, appointment.WithWorkers(workers))
	return appointment.Encode(out, decoder.Decode(raw), format)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP decode API and the optional MLLP listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port, _ := cmd.Flags().GetString("port"); port != "" {
				cfg.Port = port
			}
			if addr, _ := cmd.Flags().GetString("mllp-addr"); addr != "" {
				cfg.MLLPAddr = addr
			}
			return runServer(cfg, newLogger(cfg, os.Stdout))
		},
	}
	cmd.Flags().String("port", "", "HTTP port (default from PORT)")
	cmd.Flags().String("mllp-addr", "", "MLLP listen address (default from MLLP_ADDR)")
	return cmd
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	metrics := telemetry.NewMetrics()
	decoder := appointment.NewDecoder(logger,
		appointment.WithWorkers(cfg.DecodeWorkers),
		appointment.WithRecorder(metrics),
	)

	e := newServer(decoder, metrics, cfg, logger)

	var mllp *hl7v2.MLLPServer
	if cfg.MLLPAddr != "" {
		mllp = hl7v2.NewMLLPServer(cfg.MLLPAddr, mllpHandler(decoder), logger)
		if err := mllp.Start(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting appointment decoder")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("http server failed")
	}

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if mllp != nil {
		if err := mllp.Stop(); err != nil {
			logger.Error().Err(err).Msg("mllp shutdown failed")
		}
	}
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	return runErr
}

// newServer wires the echo instance with middleware and routes.
func newServer(decoder *appointment.Decoder, metrics *telemetry.Metrics, cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(metrics.Middleware())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")
	appointment.NewHandler(decoder).RegisterRoutes(apiV1)

	return e
}

// mllpHandler ACKs a frame with AA when every message in it was accepted
// and AE otherwise.
func mllpHandler(decoder *appointment.Decoder) hl7v2.MessageHandler {
	return func(payload []byte) string {
		report := decoder.DecodeReport(string(payload))
		if report.Rejected > 0 || report.Accepted == 0 {
			return hl7v2.AckError
		}
		return hl7v2.AckAccept
	}
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}
