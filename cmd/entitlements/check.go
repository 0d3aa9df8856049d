package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbeaudouin05/entitlements/api/bootstrap"
	"github.com/tbeaudouin05/entitlements/api/config"
	"github.com/tbeaudouin05/entitlements/api/logging"
	"github.com/tbeaudouin05/entitlements/api/services/entitlement"
)

var (
	checkUser    string
	checkFeature string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Synchronize a user's entitlements and print the guard decision for a feature",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := entitlement.ParseFeature(checkFeature)
		if err != nil {
			return err
		}
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		config.AppConfig = cfg
		logging.Setup(cfg.LogLevel)
		if err := bootstrap.Ensure(); err != nil {
			return err
		}
		return runCheck(cmd.Context(), cmd, checkUser, f)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkUser, "user", "", "user id to sign in as (empty checks a signed-out session)")
	checkCmd.Flags().StringVar(&checkFeature, "feature", "", "feature key: scan, listing or forum")
	_ = checkCmd.MarkFlagRequired("feature")
}

func runCheck(ctx context.Context, cmd *cobra.Command, userID string, f entitlement.Feature) error {
	sessions := bootstrap.GetSessions()
	sess := sessions.Create(ctx)
	defer sessions.End(sess.ID)

	snap := sess.Resync(ctx)
	if userID != "" {
		snap, _ = sess.SetIdentity(ctx, userID, true)
	}

	out := struct {
		Snapshot entitlement.Snapshot `json:"snapshot"`
		Decision entitlement.Decision `json:"decision"`
	}{snap, sess.Check(f)}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
