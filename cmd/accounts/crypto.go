// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/config"
)

// NewCryptoCmd creates the crypto subcommand for the reversible secret cipher.
func NewCryptoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crypto",
		Short: "Encrypt or decrypt values with the configured crypto.key",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "encrypt <plaintext>",
		Short: "Encrypt a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCipher(cmd)
			if err != nil {
				return err
			}
			out, err := c.Encrypt(args[0])
			if err != nil {
				return oops.With("operation", "encrypt").Wrap(err)
			}
			cmd.Println(out)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "decrypt <ciphertext>",
		Short: "Decrypt a value produced by encrypt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCipher(cmd)
			if err != nil {
				return err
			}
			out, err := c.Decrypt(args[0])
			if err != nil {
				return oops.With("operation", "decrypt").Wrap(err)
			}
			cmd.Println(out)
			return nil
		},
	})
	return cmd
}

func loadCipher(cmd *cobra.Command) (*auth.SecretCipher, error) {
	cfg, err := config.Decode(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.Crypto.Key == "" {
		return nil, oops.Code("CONFIG_INVALID").
			With("key", "crypto.key").
			Errorf("crypto.key is required (set it in the config file or ACCOUNTS_CRYPTO_KEY)")
	}
	c, err := auth.NewSecretCipher(cfg.Crypto.Key)
	if err != nil {
		return nil, oops.With("operation", "create cipher").Wrap(err)
	}
	return c, nil
}
