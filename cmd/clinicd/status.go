// AngelaMos | 2026
// status.go

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/clinic-session/internal/api"
	"github.com/carterperez-dev/clinic-session/internal/config"
	"github.com/carterperez-dev/clinic-session/internal/core"
)

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session held by a running clinicd",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: 5 * time.Second}
			url := "http://" + cfg.Server.Address() + "/v1/session"

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, http.NoBody)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}

			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("clinicd not reachable at %s: %w", cfg.Server.Address(), err)
			}
			defer resp.Body.Close()

			var body struct {
				core.Response
				Data api.SessionResponse `json:"data"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("decode session: %w", err)
			}

			out := cmd.OutOrStdout()
			s := body.Data
			fmt.Fprintf(out, "phase:         %s\n", s.Phase)
			fmt.Fprintf(out, "authenticated: %t\n", s.IsAuthenticated)
			fmt.Fprintf(out, "loading:       %t\n", s.Loading)
			if s.User != nil {
				fmt.Fprintf(out, "user:          %s <%s> (%s)\n", s.User.Name, s.User.Email, s.User.Role)
			}
			if s.Tenant != nil {
				fmt.Fprintf(out, "clinic:        %s [%s]\n", s.Tenant.Name, s.Tenant.SubscriptionStatus)
			}
			return nil
		},
	}
}
