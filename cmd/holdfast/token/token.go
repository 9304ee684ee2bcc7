// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package token implements "holdfast token": minting and checking the
// join tokens an authority with a join secret requires in each hello.
package token

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/holdfast/cmd/holdfast/cli"
	"github.com/bureau-foundation/holdfast/lib/clock"
	"github.com/bureau-foundation/holdfast/lib/config"
	"github.com/bureau-foundation/holdfast/lib/jointoken"
	"github.com/bureau-foundation/holdfast/lib/ref"
)

// Command returns the "token" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "token",
		Summary: "Mint and verify join tokens",
		Description: `Join tokens are HS256 JWTs whose subject is the peer id. An
authority configured with join_secret_file rejects any hello without a
valid token for the announced peer.

The secret is read from --secret-file, or from the join_secret_file of
the config named by HOLDFAST_CONFIG.`,
		Subcommands: []*cli.Command{
			mintCommand(),
			verifyCommand(),
		},
	}
}

// SecretSource is embedded in the params of subcommands that need the
// join secret.
type SecretSource struct {
	SecretFile string `json:"secret_file" flag:"secret-file" desc:"file holding the join secret (default: join_secret_file from HOLDFAST_CONFIG)"`
}

func (s SecretSource) signer() (*jointoken.Signer, error) {
	secret, err := s.load()
	if err != nil {
		return nil, err
	}
	signer, err := jointoken.NewSigner(secret, clock.Real())
	if errors.Is(err, jointoken.ErrSecretTooWeak) {
		return nil, cli.Validation("%v", err).
			WithHint(fmt.Sprintf("Generate one with: head -c %d /dev/urandom | base64 > join.secret", jointoken.MinSecretLength*2))
	}
	if err != nil {
		return nil, cli.Internal("%w", err)
	}
	return signer, nil
}

func (s SecretSource) load() ([]byte, error) {
	authorityConfig := config.AuthorityConfig{JoinSecretFile: s.SecretFile}
	if s.SecretFile == "" {
		if os.Getenv(config.EnvConfig) == "" {
			return nil, cli.Validation("no join secret: pass --secret-file or set %s", config.EnvConfig)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, cli.Validation("%v", err)
		}
		if cfg.Authority.JoinSecretFile == "" {
			return nil, cli.Validation("%s sets no authority.join_secret_file", os.Getenv(config.EnvConfig)).
				WithHint("The authority accepts peers without tokens; no token is needed.")
		}
		authorityConfig = cfg.Authority
	}
	secret, err := authorityConfig.JoinSecret()
	if err != nil {
		return nil, cli.NotFound("%v", err)
	}
	return secret, nil
}

type mintParams struct {
	SecretSource
	cli.JSONOutput
	TTL time.Duration `json:"ttl" flag:"ttl" desc:"how long the token stays valid" default:"12h"`
}

type mintResult struct {
	Peer    ref.PeerID `json:"peer"`
	Token   string     `json:"token"`
	Expires time.Time  `json:"expires"`
}

func mintCommand() *cli.Command {
	var params mintParams

	return &cli.Command{
		Name:    "mint",
		Summary: "Mint a join token for a peer",
		Usage:   "holdfast token mint <peer> [--ttl <duration>] [--secret-file <file>]",
		Examples: []cli.Example{
			{
				Description: "Mint a token for tonight's session",
				Command:     "holdfast token mint headset-1 --ttl 8h --secret-file /etc/holdfast/join.secret",
			},
		},
		Flags: func() *pflag.FlagSet { return cli.FlagsFromParams("mint", &params) },
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("usage: holdfast token mint <peer>")
			}
			return runMint(params, args[0])
		},
	}
}

func runMint(params mintParams, raw string) error {
	peer, err := ref.ParsePeerID(raw)
	if err != nil {
		return cli.Validation("invalid peer id: %v", err)
	}
	if params.TTL <= 0 {
		return cli.Validation("--ttl must be positive")
	}
	signer, err := params.signer()
	if err != nil {
		return err
	}
	minted, err := signer.Mint(peer, params.TTL)
	if err != nil {
		return cli.Internal("%w", err)
	}

	result := mintResult{Peer: peer, Token: minted, Expires: time.Now().Add(params.TTL).UTC().Truncate(time.Second)}
	if done, err := params.EmitJSON(result); done {
		return err
	}
	fmt.Fprintln(os.Stdout, minted)
	return nil
}

type verifyParams struct {
	SecretSource
	cli.JSONOutput
	Peer string `json:"peer" flag:"peer" desc:"require the token to name this peer"`
}

type verifyResult struct {
	Peer     ref.PeerID `json:"peer"`
	IssuedAt time.Time  `json:"issued_at"`
	Expires  time.Time  `json:"expires"`
}

func verifyCommand() *cli.Command {
	var params verifyParams

	return &cli.Command{
		Name:    "verify",
		Summary: "Check a join token against the secret",
		Usage:   "holdfast token verify <token> [--peer <peer>] [--secret-file <file>]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("verify", &params) },
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("usage: holdfast token verify <token>")
			}
			return runVerify(params, args[0])
		},
	}
}

func runVerify(params verifyParams, raw string) error {
	var peer ref.PeerID
	if params.Peer != "" {
		parsed, err := ref.ParsePeerID(params.Peer)
		if err != nil {
			return cli.Validation("invalid peer id: %v", err)
		}
		peer = parsed
	}
	signer, err := params.signer()
	if err != nil {
		return err
	}
	claims, err := signer.Verify(raw, peer)
	if err != nil {
		return cli.Validation("%w", err)
	}

	result := verifyResult{Peer: claims.Peer, IssuedAt: claims.IssuedAt, Expires: claims.ExpiresAt}
	if done, err := params.EmitJSON(result); done {
		return err
	}
	fmt.Fprintf(os.Stdout, "valid token for %s, expires %s\n", claims.Peer, claims.ExpiresAt.Format(time.RFC3339))
	return nil
}
