package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stageq/internal/dummy"
	"stageq/internal/logging"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run internal dummy server",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		noDelay, _ := cmd.Flags().GetBool("no-delay")

		logger, err := logging.New(logging.DefaultLevel, "")
		if err != nil {
			return err
		}
		defer logger.Sync()

		srv, err := dummy.Start(dummy.ServerConfig{Port: port, NoDelay: noDelay}, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		fmt.Println("\n👋 Shutting down dummy server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "Port to run dummy server on")
	dummyCmd.Flags().Bool("no-delay", false, "Answer without simulated latency")
}
