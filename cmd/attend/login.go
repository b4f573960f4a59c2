package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-attend/pkg/auth"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store a bearer token",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := auth.NewLoginClient(cfg.APIURL, auth.NewFileStore(cfg.TokenFile), nil)
		if err := client.Logout(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringP("username", "u", "", "Username")
	loginCmd.Flags().StringP("password", "p", "", "Password (default $ATTEND_PASSWORD, else read from stdin)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	username := mustGetString(cmd, "username")
	if username == "" {
		return errors.New("--username is required")
	}

	password := mustGetString(cmd, "password")
	if password == "" {
		password = os.Getenv("ATTEND_PASSWORD")
	}
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	store := auth.NewFileStore(cfg.TokenFile)
	sess, err := auth.NewLoginClient(cfg.APIURL, store, nil).Login(cmd.Context(), username, password)
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s (role %s). Token saved to %s\n", username, sess.Role, store.Path())
	return nil
}
