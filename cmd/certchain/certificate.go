// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/blinklabs-io/certchain"
	"github.com/blinklabs-io/certchain/api"
	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/internal/config"
	"github.com/blinklabs-io/certchain/internal/node"
	"github.com/blinklabs-io/certchain/reconstruct"
	"github.com/blinklabs-io/certchain/registry"
	"github.com/spf13/cobra"
)

// withNode opens the local database for a one-shot command
func withNode(
	cmd *cobra.Command,
	fn func(context.Context, *certchain.Node) error,
) error {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errors.New("no config found in context")
	}
	logger := commonRun()
	n, err := node.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	return errors.Join(fn(cmd.Context(), n), n.Stop())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func callerFlag(cmd *cobra.Command) (cert.Address, error) {
	s, _ := cmd.Flags().GetString("caller")
	if s == "" {
		return cert.Address{}, errors.New("--caller is required")
	}
	return cert.ParseAddress(s)
}

func issueCommand() *cobra.Command {
	var hash, name, classification, studentID, studentName, dob string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a certificate",
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := callerFlag(cmd)
			if err != nil {
				return err
			}
			req := registry.IssueRequest{
				Content: cert.Content{
					Name:           name,
					Classification: cert.Classification(classification),
					StudentID:      studentID,
					StudentName:    studentName,
				},
			}
			if hash != "" {
				if req.Hash, err = cert.ParseHash(hash); err != nil {
					return err
				}
			}
			if req.Content.DateOfBirth, err = cert.ParseDate(dob); err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *certchain.Node) error {
				result, err := n.Registry().Issue(ctx, caller, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"hash":         result.Hash,
					"block_number": result.Receipt.Block.Number,
					"block_hash":   result.Receipt.Block.Hash,
					"issued_at":    result.Record.IssuedTime(),
				})
			})
		},
	}
	cmd.Flags().String("caller", "", "address of the calling account")
	cmd.Flags().StringVar(&hash, "hash", "", "certificate hash (derived from the content when empty)")
	cmd.Flags().StringVar(&name, "name", "", "certificate name")
	cmd.Flags().StringVar(&classification, "classification", "", "classification (excellent, veryGood, good)")
	cmd.Flags().StringVar(&studentID, "student-id", "", "student identifier")
	cmd.Flags().StringVar(&studentName, "student-name", "", "student name")
	cmd.Flags().StringVar(&dob, "dob", "", "student date of birth (YYYY-MM-DD)")
	return cmd
}

func revokeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <hash>",
		Short: "Revoke a certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := callerFlag(cmd)
			if err != nil {
				return err
			}
			hash, err := cert.ParseHash(args[0])
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *certchain.Node) error {
				receipt, err := n.Registry().Revoke(ctx, caller, hash)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"hash":         hash,
					"block_number": receipt.Block.Number,
					"block_hash":   receipt.Block.Hash,
					"revoked_at":   receipt.Block.Timestamp.UTC(),
				})
			})
		},
	}
	cmd.Flags().String("caller", "", "address of the calling account")
	return cmd
}

func verifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <hash>",
		Short: "Show the current state of a certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := cert.ParseHash(args[0])
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *certchain.Node) error {
				res, err := n.Reconstructor().VerifyByHash(ctx, hash)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	return cmd
}

func findCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <student-id>",
		Short: "List the certificates issued to a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(ctx context.Context, n *certchain.Node) error {
				found, err := n.Reconstructor().FindByStudentID(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), found)
			})
		},
	}
	return cmd
}

func historyCommand() *cobra.Command {
	var actions string
	var filter reconstruct.HistoryFilter
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the state transition log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actions != "" {
				for _, s := range strings.Split(actions, ",") {
					action, err := cert.ParseAction(s)
					if err != nil {
						return err
					}
					filter.Actions = append(filter.Actions, action)
				}
			}
			return withNode(cmd, func(ctx context.Context, n *certchain.Node) error {
				entries, err := n.Reconstructor().History(ctx, filter)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().StringVar(&actions, "action", "", "comma separated actions to include (issued, revoked)")
	cmd.Flags().BoolVar(&filter.Descending, "desc", false, "newest events first")
	cmd.Flags().Uint64Var(&filter.FromPosition, "from", 0, "first log position")
	cmd.Flags().Uint64Var(&filter.ToPosition, "to", 0, "last log position")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum number of events")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "number of events to skip")
	return cmd
}

func verifyChainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-chain",
		Short: "Recompute block hashes and check the event log is contiguous",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(ctx context.Context, n *certchain.Node) error {
				report, err := n.Chain().VerifyIntegrity(ctx)
				if err != nil {
					return fmt.Errorf("chain verification failed: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"blocks":       report.Blocks,
					"events":       report.Events,
					"owner":        report.Owner,
					"genesis_hash": report.Genesis,
					"tip_block":    report.Tip.BlockNumber,
					"tip_hash":     report.Tip.BlockHash,
				})
			})
		},
	}
	return cmd
}

func tokenCommand() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a caller address",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			if cfg.JWTSecret == "" {
				return errors.New("no JWT secret configured")
			}
			caller, err := callerFlag(cmd)
			if err != nil {
				return err
			}
			token, err := api.NewIdentity(cfg.JWTSecret, cfg.JWTIssuer).
				IssueToken(caller, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("caller", "", "address the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
