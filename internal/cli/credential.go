package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/plannerd/internal/credential"
)

var credentialKeys = []string{credential.KeyRunnerToken, credential.KeyJWTSecret}

// NewCredentialCommand creates the credential command group.
func NewCredentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage secrets in the system keyring",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret (value read from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !isCredentialKey(key) {
				return fmt.Errorf("unknown credential key %q: must be one of %v", key, credentialKeys)
			}
			fmt.Fprintf(os.Stderr, "Enter value for %s: ", key)
			reader := bufio.NewReader(os.Stdin)
			value, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading value: %w", err)
			}
			value = strings.TrimSpace(value)
			if value == "" {
				return fmt.Errorf("value must not be empty")
			}
			if err := credential.Set(key, value); err != nil {
				return err
			}
			fmt.Printf("Stored %s.\n", key)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <key>",
		Short: "Remove a secret from the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !isCredentialKey(key) {
				return fmt.Errorf("unknown credential key %q: must be one of %v", key, credentialKeys)
			}
			if err := credential.Delete(key); err != nil {
				return err
			}
			fmt.Printf("Cleared %s.\n", key)
			return nil
		},
	})

	return cmd
}

func isCredentialKey(key string) bool {
	for _, k := range credentialKeys {
		if k == key {
			return true
		}
	}
	return false
}
