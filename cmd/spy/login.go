package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/spyglass-cli/spyglass/internal/store"
	"github.com/spyglass-cli/spyglass/internal/types"
	"github.com/spyglass-cli/spyglass/internal/ui"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with an API token",
	Long: `Store an API token for subsequent commands. The token is read from
--token, from stdin when piped, or from an interactive prompt.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "API token (prompted for when omitted)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	token := strings.TrimSpace(loginToken)
	if token == "" {
		var err error
		token, err = readToken()
		if err != nil {
			return err
		}
	}
	if token == "" {
		return types.NewValidationError("no token provided", "pass --token or paste a token at the prompt")
	}

	client, s, err := newClient(ctx)
	if err != nil {
		return err
	}
	if err := s.SetCredentials(ctx, store.Credentials{
		AccessToken: token,
		TokenType:   "Bearer",
		Manual:      true,
	}); err != nil {
		return err
	}

	// Verify the token works before declaring success.
	orgs, err := client.ListOrganizations(ctx)
	if err != nil {
		_ = s.ClearAuth(ctx)
		return &types.AuthError{Reason: "token rejected by the service"}
	}

	if jsonOutput {
		return outputJSON(map[string]any{"authenticated": true, "organizations": len(orgs)})
	}
	fmt.Printf("%s Logged in (%d organization(s) accessible)\n", ui.RenderGood("✓"), len(orgs))
	return nil
}

// readToken reads a token from a tty without echo, or from piped stdin.
func readToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Token: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}
