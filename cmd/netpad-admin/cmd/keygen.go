package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a data source encryption key",
	Long: `Generates a random 32-byte AES-256 key, base64-encoded for use as
APP_ENCRYPTION_KEY (with APP_ENCRYPTION_KEY_FORMAT=base64).`,
	RunE: func(_ *cobra.Command, _ []string) error {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		fmt.Println(base64.StdEncoding.EncodeToString(key))
		return nil
	},
}
