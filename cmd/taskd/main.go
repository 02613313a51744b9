package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"taskd/internal/fsops"
	"taskd/internal/interp"
	"taskd/internal/obslog"
	"taskd/internal/queue"
	"taskd/internal/regfile"
	"taskd/internal/server"
	"taskd/internal/transport"
)

var (
	port       int
	registers  int
	logLevel   string
	randSeed   int64
	jobBacklog int
)

var serveCmd = &cobra.Command{
	Use:   "serve [port]",
	Short: "Run the task daemon, accepting recipes over a TCP listener",
	Long: `serve starts the daemon's accept loop. The deployment target is a
guest microVM talking to its host over a VSOCK stream; this build listens on
TCP loopback instead so it is independently runnable and testable, behind
the same transport.Listener seam a VSOCK listener would satisfy.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			if _, err := fmt.Sscanf(args[0], "%d", &port); err != nil {
				return fmt.Errorf("invalid port argument %q: %w", args[0], err)
			}
		}
		if registers != regfile.NumRegisters {
			return fmt.Errorf("--registers must be %d in this build", regfile.NumRegisters)
		}
		return runServe()
	},
}

func runServe() error {
	if port <= 0 {
		return fmt.Errorf("invalid port %d: must be a positive TCP port", port)
	}

	log := obslog.New(os.Stderr, logLevel)

	fs := fsops.New(log)
	vm := interp.New(fs, log, randSeed)
	q := queue.New(vm, log, jobBacklog)
	defer q.Close()

	h := server.New(q, log)

	addr := fmt.Sprintf(":%d", port)
	listener, err := transport.Listen(addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer listener.Close()

	log.WithFields(map[string]any{"addr": listener.Addr().String()}).Info("daemon listening")

	ctx := context.Background()
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.WithFields(map[string]any{"err": err.Error()}).Warn("accept failed")
			return err
		}
		// One client session runs to completion before the next is
		// accepted, matching the daemon's one-at-a-time connection
		// contract; the job queue behind it already serializes execution,
		// but the accept loop itself must not let two clients be mid
		// handshake/recipe concurrently.
		h.HandleConn(ctx, conn)
	}
}

func init() {
	flags := pflag.NewFlagSet("serve", pflag.ExitOnError)
	flags.IntVar(&port, "port", 7777, "TCP port to listen on (also accepted as a positional argument)")
	flags.IntVar(&registers, "registers", regfile.NumRegisters, "register file width (fixed at the canonical value)")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.Int64Var(&randSeed, "rand-seed", 1, "initial PRNG seed, overridden by a RAND_SEED opcode at runtime")
	flags.IntVar(&jobBacklog, "job-backlog", 16, "max pending jobs before Submit blocks")
	serveCmd.Flags().AddFlagSet(flags)
}

var rootCmd = &cobra.Command{
	Use:   "taskd",
	Short: "taskd runs recipe jobs against a register-machine interpreter",
}

func main() {
	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
