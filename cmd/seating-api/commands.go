package main

import (
	"fmt"
	"os"
	"time"

	"github.com/MarcoPoloResearchLab/seating/internal/auth"
	"github.com/MarcoPoloResearchLab/seating/internal/export"
	"github.com/MarcoPoloResearchLab/seating/internal/users"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newGrantAdminCommand() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "grant-admin",
		Short: "Grant the admin role to a TAuth user",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()
			roles, err := rt.roleService()
			if err != nil {
				return err
			}
			if err := roles.GrantRole(cmd.Context(), userID, users.RoleAdmin); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted admin to %s\n", userID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "TAuth user identifier")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newRevokeAdminCommand() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "revoke-admin",
		Short: "Revoke the admin role from a TAuth user",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()
			roles, err := rt.roleService()
			if err != nil {
				return err
			}
			revoked, err := roles.RevokeRole(cmd.Context(), userID, users.RoleAdmin)
			if err != nil {
				return err
			}
			if !revoked {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not an admin\n", userID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked admin from %s\n", userID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "TAuth user identifier")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newIssueTokenCommand() *cobra.Command {
	var (
		userID      string
		email       string
		displayName string
	)
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint a session token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(rt.config.TAuthSigningKey),
				Issuer:        rt.config.TAuthIssuer,
				TokenTTL:      rt.config.TokenTTL,
				Clock:         time.Now,
			})
			if err != nil {
				return err
			}
			roles, err := rt.roleService()
			if err != nil {
				return err
			}
			isAdmin, err := roles.IsAdmin(cmd.Context(), userID)
			if err != nil {
				return err
			}
			identity := auth.SessionIdentity{UserID: userID, Email: email, DisplayName: displayName}
			if isAdmin {
				identity.Roles = []string{string(users.RoleAdmin)}
			}
			token, expiresIn, err := issuer.IssueSessionToken(cmd.Context(), identity)
			if err != nil {
				return err
			}
			rt.logger.Info("session token issued", zap.String("user_id", userID), zap.Int64("expires_in", expiresIn))
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "TAuth user identifier")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&displayName, "name", "", "Display name claim")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newExportCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the seating chart workbook to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.close()
			service, err := rt.seatingService()
			if err != nil {
				return err
			}
			chart, err := service.SeatingChart(cmd.Context())
			if err != nil {
				return err
			}
			file, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := export.WriteSeatingChart(file, chart); err != nil {
				_ = file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d tables and %d unseated guests to %s\n", len(chart.Tables), len(chart.Unseated), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "seating.xlsx", "Destination workbook path")
	return cmd
}
