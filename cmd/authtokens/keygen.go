// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authtokens/internal/auth/bearer"
	"github.com/holomush/authtokens/internal/xdg"
)

const (
	privateKeyFile = "bearer.key.pem"
	publicKeyFile  = "bearer.pub.pem"
)

func newKeygenCmd() *cobra.Command {
	var (
		alg, outDir string
		save        bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an access token signing key pair",
		Long: `Generate a PEM key pair for asymmetric access tokens. Point
bearer.private_key_file at the private key on the issuing service and hand
the public key to verifying services. Without --out or --save the keys are
printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, pub, err := bearer.GenerateKeyPair(alg)
			if err != nil {
				return err
			}
			if outDir == "" && save {
				if outDir, err = xdg.KeysDir(); err != nil {
					return err
				}
			}
			if outDir == "" {
				cmd.Print(string(priv))
				cmd.Print(string(pub))
				return nil
			}

			if err := os.MkdirAll(outDir, 0o700); err != nil {
				return oops.Code("KEYGEN_WRITE_FAILED").With("dir", outDir).Wrap(err)
			}
			privPath := filepath.Join(outDir, privateKeyFile)
			pubPath := filepath.Join(outDir, publicKeyFile)
			if err := os.WriteFile(privPath, priv, 0o600); err != nil {
				return oops.Code("KEYGEN_WRITE_FAILED").With("path", privPath).Wrap(err)
			}
			//nolint:gosec // G306: public key is meant to be readable
			if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
				return oops.Code("KEYGEN_WRITE_FAILED").With("path", pubPath).Wrap(err)
			}
			cmd.Printf("Wrote %s and %s\n", privPath, pubPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&alg, "alg", bearer.AlgEd25519, "key algorithm (ed25519 or rsa)")
	cmd.Flags().StringVar(&outDir, "out", "", "directory to write the key files to")
	cmd.Flags().BoolVar(&save, "save", false, "write the key files to $XDG_CONFIG_HOME/authtokens/keys")

	return cmd
}
