package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sigweihq/traceledger/pkg/types"
)

var (
	usersCmd = &cobra.Command{
		Use:   "users",
		Short: "Manage backend user records (requires login)",
	}

	usersListCmd = &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE:  doUsersList,
	}

	usersGetCmd = &cobra.Command{
		Use:   "get <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE:  doUsersGet,
	}

	usersCreateCmd = &cobra.Command{
		Use:   "create <user-name>",
		Short: "Create a user bound to a wallet",
		Args:  cobra.ExactArgs(1),
		RunE:  doUsersCreate,
	}

	usersDeleteCmd = &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE:  doUsersDelete,
	}
)

func init() {
	usersCreateCmd.Flags().String("password", "", "initial password")
	cobra.CheckErr(usersCreateCmd.MarkFlagRequired("password"))
	usersCreateCmd.Flags().String("full-name", "", "full name")
	usersCreateCmd.Flags().String("email", "", "email address")
	usersCreateCmd.Flags().String("role", "", "role")
	usersCreateCmd.Flags().String("wallet", "", "wallet address the user connects with")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersGetCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersDeleteCmd)
}

func doUsersList(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	users, err := e.backend.Users.List(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(e.out, users)
}

func doUsersGet(cmd *cobra.Command, args []string) error {
	id, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	user, err := e.backend.Users.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printJSON(e.out, user)
}

func doUsersCreate(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	user := &types.User{UserName: args[0]}
	user.Password, _ = cmd.Flags().GetString("password")
	user.FullName, _ = cmd.Flags().GetString("full-name")
	user.Email, _ = cmd.Flags().GetString("email")
	user.Role, _ = cmd.Flags().GetString("role")
	user.WalletAddress, _ = cmd.Flags().GetString("wallet")

	created, err := e.backend.Users.Create(cmd.Context(), user)
	if err != nil {
		return err
	}
	return printJSON(e.out, created)
}

func doUsersDelete(cmd *cobra.Command, args []string) error {
	id, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	if err := e.backend.Users.Delete(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Deleted user %d\n", id)
	return nil
}

func parseUserID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID %q: %w", raw, err)
	}
	return id, nil
}
