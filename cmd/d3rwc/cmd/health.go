package cmd

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	health "google.golang.org/grpc/health/grpc_health_v1"
)

var healthWatch bool

// errUnreachable makes a one-shot check exit non-zero for scripts.
var errUnreachable = errors.New("d3 target is unreachable")

type healthLine struct {
	Time      time.Time `json:"time"`
	Status    string    `json:"status"`
	Reachable bool      `json:"upstream_reachable"`
}

func printHealth(st health.HealthCheckResponse_ServingStatus) error {
	return printJSON([]healthLine{{
		Time:      time.Now().UTC(),
		Status:    st.String(),
		Reachable: st == health.HealthCheckResponse_SERVING,
	}})
}

// healthCmd represents the health command.
var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Report whether d3rw can reach its d3 target",
	Example: "d3rwc --grpc localhost:42113 health -w",
	Run: func(cmd *cobra.Command, args []string) {
		conn := connectGRPC()
		defer conn.Close()
		ctx := context.Background()

		if !healthWatch {
			resp, err := conn.Check(ctx, &health.HealthCheckRequest{})
			if err != nil {
				log.Fatal(err)
			}
			if err := printHealth(resp.Status); err != nil {
				log.Fatal(err)
			}
			if resp.Status != health.HealthCheckResponse_SERVING {
				log.Fatal(errUnreachable)
			}
			return
		}

		w, err := conn.Watch(ctx, &health.HealthCheckRequest{})
		if err != nil {
			log.Fatal(err)
		}
		for {
			resp, err := w.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				log.Fatal(err)
			}
			if err := printHealth(resp.Status); err != nil {
				log.Fatal(err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.PersistentFlags().BoolVarP(&healthWatch, "watch", "w", false, "print every change of reachability")
}
