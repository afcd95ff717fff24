package cmd

import (
	"errors"
	"fmt"

	"github.com/mossy-p/consult-signaling/config"
	"github.com/mossy-p/consult-signaling/internal/auth"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print an access token for local testing",
	Example: `  signaling token --user patient-1 --role patient --name "Jane Doe"
  signaling token --user doctor-9 --role doctor`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().String("user", "", "participant id (user_id claim)")
	tokenCmd.Flags().String("role", string(auth.RolePatient), "patient or doctor")
	tokenCmd.Flags().String("name", "", "display name")
	_ = tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.IsProduction() {
		return errors.New("token: refusing to mint tokens in production")
	}

	user, _ := cmd.Flags().GetString("user")
	role, _ := cmd.Flags().GetString("role")
	name, _ := cmd.Flags().GetString("name")

	if !auth.Role(role).Valid() {
		return fmt.Errorf("token: unknown role %q", role)
	}

	token, err := auth.NewTokens(cfg.JWT.Secret, cfg.JWT.TTL).Issue(auth.Identity{
		ParticipantID: user,
		Role:          auth.Role(role),
		Name:          name,
	})
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
