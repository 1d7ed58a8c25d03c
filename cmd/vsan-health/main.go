package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kubev2v/vsan-health/internal/cli"
	"github.com/kubev2v/vsan-health/pkg/log"
)

func main() {
	logger := log.InitLog(zap.NewAtomicLevelAt(zapcore.InfoLevel))
	undo := zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	command := NewVsanHealthCommand()
	err := command.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	_ = logger.Sync()
	undo()
	os.Exit(cli.ExitCode(err))
}

func NewVsanHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vsan-health [flags] [options]",
		Short: "vsan-health reports the health and capacity of a vSAN cluster.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdCheck())
	cmd.AddCommand(cli.NewCmdVersion())

	return cmd
}
