package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	tokens "github.com/catalystwells/grantd/internal/security/token"
)

// hash-secret imprime el valor a guardar en developer_applications.client_secret_hash.
func newHashSecretCmd() *cobra.Command {
	var generate bool
	cmd := &cobra.Command{
		Use:   "hash-secret [secret]",
		Short: "Imprime SHA-256 hex de un client secret (o genera uno con --generate)",
		Args: func(cmd *cobra.Command, args []string) error {
			if generate {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if generate {
				secret, err := tokens.GenerateOpaqueToken("cw_cs_", 32)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "secret: %s\nhash:   %s\n", secret, tokens.HashToken(secret))
				return nil
			}
			secret := strings.TrimSpace(args[0])
			if secret == "" {
				return errors.New("secret must not be empty")
			}
			fmt.Fprintln(out, tokens.HashToken(secret))
			return nil
		},
	}
	cmd.Flags().BoolVar(&generate, "generate", false, "genera un secret nuevo e imprime secret + hash")
	return cmd
}

// inspect verifica un token emitido por este servicio (misma config de firma)
// e imprime sus claims.
func newInspectCmd(f *rootFlags) *cobra.Command {
	var noVerify bool
	cmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Verifica un JWT con la clave configurada e imprime los claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.TrimSpace(args[0])

			var claims jwtv5.MapClaims
			if noVerify {
				tk, _, err := jwtv5.NewParser().ParseUnverified(raw, jwtv5.MapClaims{})
				if err != nil {
					return fmt.Errorf("decode: %w", err)
				}
				claims = tk.Claims.(jwtv5.MapClaims)
			} else {
				cfg, err := loadConfig(f)
				if err != nil {
					return err
				}
				iss, err := buildIssuer(cfg)
				if err != nil {
					return err
				}
				claims, err = iss.Parse(raw)
				if err != nil {
					return fmt.Errorf("verify: %w", err)
				}
			}

			b, err := json.MarshalIndent(claims, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "solo decodifica, sin verificar firma ni exp")
	return cmd
}
