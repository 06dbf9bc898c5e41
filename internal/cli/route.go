package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietddude/mcroute/internal/control"
	"github.com/vietddude/mcroute/internal/core/domain"
	"github.com/vietddude/mcroute/internal/routing"
)

var routeOp string

var routeCmd = &cobra.Command{
	Use:   "route <key>",
	Short: "Show which routes and pools a key could reach, without sending anything",
	Args:  cobra.ExactArgs(1),
	Run:   runRoute,
}

func init() {
	routeCmd.Flags().StringVar(&routeOp, "op", "get", "operation to route (get, set, delete, incr, ...)")
	rootCmd.AddCommand(routeCmd)
}

func runRoute(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	op, err := domain.ParseOperation(routeOp)
	if err != nil {
		slog.Error("Invalid operation", "error", err)
		os.Exit(1)
	}

	root, cleanup, err := control.BuildRoot(cfg)
	if err != nil {
		slog.Error("Failed to build routing tree", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	PrintTree(os.Stdout, root, domain.NewRequest(args[0]), op)
}

// PrintTree writes an indented couldRouteTo tree for req and op.
func PrintTree(w io.Writer, root routing.Handle, req domain.Request, op domain.Operation) {
	_, _ = fmt.Fprintf(w, "%s %s\n", op, req.Key)
	routing.Traverse(root, req, op, func(depth int, h routing.Handle) {
		_, _ = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth+1), h.Name())
	})

	dests := routing.Destinations(root, req, op)
	names := make([]string, len(dests))
	for i, d := range dests {
		names[i] = d.Name()
	}
	_, _ = fmt.Fprintf(w, "destinations: %s\n", strings.Join(names, ", "))
}
