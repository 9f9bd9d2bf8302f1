package commands

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
)

const (
	secretLength = 64
	// Shell-safe characters only, so the value can be pasted into an
	// env file unquoted.
	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789" + "$%*,-./:=>?@^_~"
)

var createSecretCmd = &cobra.Command{
	Use:   "create-secret",
	Short: "Generate a signing secret for authentication",
	Long: `Generate a random secret suitable for THREADLINE_AUTH_SECRET, which
signs bearer tokens and the client-side session cookie.`,
	RunE: runCreateSecret,
}

func runCreateSecret(cmd *cobra.Command, args []string) error {
	secret, err := randomSecret(secretLength)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Copy the following line to your .env file:\n\nTHREADLINE_AUTH_SECRET=%s\n", secret)
	return nil
}

func randomSecret(length int) (string, error) {
	max := big.NewInt(int64(len(secretAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = secretAlphabet[n.Int64()]
	}
	return string(out), nil
}
