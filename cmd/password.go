// File: cmd/password.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/eSupun-real/Fake-Signup-Helper/internal/identity"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/network"
	"github.com/eSupun-real/Fake-Signup-Helper/internal/observability"
)

// newPasswordCmd creates the `password` command. It needs no state, so it
// wires only the password generator.
func newPasswordCmd() *cobra.Command {
	var (
		length int
		local  bool

		noUpper, noLower, noNumbers, noSymbols bool
	)
	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Generates a password and rates its strength",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			pwCfg := cfg.Password()
			if local {
				pwCfg.UseRemote = false
			}
			opts := identity.PasswordOptionsFrom(pwCfg)
			if cmd.Flags().Changed("length") {
				opts.Length = length
			}
			opts.Uppercase = opts.Uppercase && !noUpper
			opts.Lowercase = opts.Lowercase && !noLower
			opts.Numbers = opts.Numbers && !noNumbers
			opts.Symbols = opts.Symbols && !noSymbols

			gen := identity.NewPasswordGenerator(pwCfg, network.NewFetcher(nil, cfg.Network(), nil), observability.Component("password"))
			pw, err := gen.Generate(ctx, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printField(out, "Password", pw)
			printField(out, "Strength", string(identity.Strength(pw)))
			return nil
		},
	}
	passwordCmd.Flags().IntVarP(&length, "length", "l", identity.DefaultPasswordLength, "password length")
	passwordCmd.Flags().BoolVar(&noUpper, "no-upper", false, "leave out upper-case letters")
	passwordCmd.Flags().BoolVar(&noLower, "no-lower", false, "leave out lower-case letters")
	passwordCmd.Flags().BoolVar(&noNumbers, "no-numbers", false, "leave out digits")
	passwordCmd.Flags().BoolVar(&noSymbols, "no-symbols", false, "leave out symbols")
	passwordCmd.Flags().BoolVar(&local, "local", false, "generate locally without calling the password service")
	return passwordCmd
}
