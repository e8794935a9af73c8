package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gapcards-backend/internal/middleware"
)

func init() {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint an access token for local testing",
		Args:  cobra.ExactArgs(1),
		Run:   runToken,
	}

	cmd.Flags().String("secret", "", "Signing secret (default: $JWT_SECRET)")
	cmd.Flags().Duration("ttl", 15*time.Minute, "Token lifetime")

	RootCmd.AddCommand(cmd)
}

func runToken(cmd *cobra.Command, args []string) {
	userID, err := uuid.Parse(args[0])
	if err != nil {
		exitErr("user id", err)
	}
	secret, _ := cmd.Flags().GetString("secret")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		exitErr("token", errors.New("--secret or JWT_SECRET is required"))
	}

	token, err := middleware.NewJWTAuth(secret).GenerateAccessToken(userID, ttl)
	if err != nil {
		exitErr("sign token", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
}
