package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/layer-3/sudomode/adapters/password"
	"github.com/spf13/cobra"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for use in the members file",
	Long:  "Hashes the password given as argument, or the first line of standard input.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var plain string
		if len(args) == 1 {
			plain = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read password: %w", err)
			}
			plain = strings.TrimRight(line, "\r\n")
		}
		if plain == "" {
			return errors.New("password must not be empty")
		}

		hash, err := password.Hash(plain)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
