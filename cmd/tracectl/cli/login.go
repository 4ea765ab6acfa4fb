package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Log in to the user backend and store the session token",
		Args:  cobra.NoArgs,
		RunE:  doLogin,
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE:  doLogout,
	}
)

func init() {
	loginCmd.Flags().String("user", "", "user name")
	cobra.CheckErr(loginCmd.MarkFlagRequired("user"))

	loginCmd.Flags().String("password", "", "password (or TRACECTL_BACKEND_PASSWORD)")
	cobra.CheckErr(viper.BindPFlag("backend.password", loginCmd.Flags().Lookup("password")))
}

func doLogin(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	user, err := cmd.Flags().GetString("user")
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}
	if e.cfg.Backend.Password == "" {
		return errors.New("password is required (--password or TRACECTL_BACKEND_PASSWORD)")
	}

	resp, err := e.backend.Auth.Login(cmd.Context(), user, e.cfg.Backend.Password)
	if err != nil {
		return err
	}
	if err := writeToken(e.cfg.Backend.TokenFile, resp.Token); err != nil {
		return fmt.Errorf("saving session token: %w", err)
	}

	name := resp.UserName
	if name == "" {
		name = user
	}
	fmt.Fprintf(e.out, "Logged in as %s\n", name)
	return nil
}

func doLogout(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := os.Remove(cfg.Backend.TokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}
