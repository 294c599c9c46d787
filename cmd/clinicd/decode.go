// AngelaMos | 2026
// decode.go

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/clinic-session/internal/claims"
	"github.com/carterperez-dev/clinic-session/internal/permission"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [token]",
		Short: "Print the permission matrix carried by a bearer token",
		Long: `Decode reads the permissions claim of a token without verifying it and
prints what a staff member holding it would be allowed to do. With no
argument the token is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			m := claims.Decode(token)
			ev := permission.New(nil, m)

			summaries := make([]permission.Summary, 0, len(m))
			for _, module := range m.Modules() {
				summaries = append(summaries, ev.Summary(module))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summaries)
		},
	}
}

func readToken(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}

	if f, ok := stdin.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", fmt.Errorf("no token given")
		}
	}

	raw, err := io.ReadAll(io.LimitReader(stdin, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
