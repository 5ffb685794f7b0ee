package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"

	"github.com/seuros/scout/internal/config"
)

const healthcheckTimeout = 2 * time.Second

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check if the server is healthy",
	Long:  "Performs an HTTP request to the /up endpoint to verify the server and database are operational",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := flagPort
		if port == "" {
			if cfg, err := config.Load(); err == nil {
				port = cfg.Port
			}
		}
		if port == "" {
			port = "3000"
		}

		if err := probe(fmt.Sprintf("http://localhost:%s/up", port), healthcheckTimeout); err != nil {
			fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
			return err
		}
		return nil
	},
}

// probe issues a GET and fails unless the server answers 200.
func probe(url string, timeout time.Duration) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := fasthttp.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("healthcheck failed: status %d", resp.StatusCode())
	}
	return nil
}
