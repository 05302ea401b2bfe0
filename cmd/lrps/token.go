package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agile-athletes/lrps/internal/runtime"
)

func tokenCMD(a *app) *cobra.Command {
	var user, session string
	var ttl time.Duration
	token := &cobra.Command{
		Use:   "token",
		Short: "Issue a JWT for calling the API or an n8n webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := runtime.LoadJWTSecret(a.cfg)
			if err != nil {
				return err
			}
			if session == "" {
				session = uuid.NewString()
			}
			if ttl <= 0 {
				ttl = a.cfg.Auth.TokenTTL
			}
			signed, err := runtime.SignJWT(user, session, secret, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), signed)
			return err
		},
	}
	token.Flags().StringVar(&user, "user", "", "user id put into sub and user_id")
	token.Flags().StringVar(&session, "session", "", "session id (random when empty)")
	token.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.token_ttl)")
	_ = token.MarkFlagRequired("user")
	return token
}
