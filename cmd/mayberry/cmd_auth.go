package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/user/mayberry/pkg/medapi"
)

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, registerCmd, whoamiCmd)
	loginCmd.Flags().String("email", "", "account email")
	registerCmd.Flags().String("email", "", "account email")
	registerCmd.Flags().String("name", "", "full name")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		in := bufio.NewScanner(os.Stdin)

		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			email = prompt(in, "Email", "")
		}
		password, err := readPassword(in, "Password")
		if err != nil {
			return err
		}

		if err := a.session.Login(cmd.Context(), email, password); err != nil {
			return err
		}
		printSession(os.Stdout, a.session.Current())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		a.session.Logout(cmd.Context())
		fmt.Println("Logged out.")
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		in := bufio.NewScanner(os.Stdin)

		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			email = prompt(in, "Email", "")
		}
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = prompt(in, "Full name", "")
		}
		password, err := readPassword(in, "Password")
		if err != nil {
			return err
		}
		confirm, err := readPassword(in, "Confirm password")
		if err != nil {
			return err
		}
		if password != confirm {
			return errors.New("passwords do not match")
		}

		req := medapi.RegisterRequest{FullName: name, Email: email, Password: password}
		if err := a.session.Register(cmd.Context(), req); err != nil {
			return err
		}
		green.Println("Account created. Run 'mayberry login' to sign in.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.session.Restore(cmd.Context()); err != nil && a.session.Token() != "" {
			return err
		}
		cur := a.session.Current()
		printSession(os.Stdout, cur)
		if exp, ok := a.session.TokenExpiry(); ok {
			left := time.Until(exp).Round(time.Second)
			if left > 0 {
				fmt.Printf("Token expires %s (in %s)\n", exp.Local().Format(time.RFC1123), left)
			}
		}
		return nil
	},
}

// readPassword reads without echo from a terminal, or a plain line when
// stdin is piped.
func readPassword(scanner *bufio.Scanner, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(scanner, label, ""), nil
	}
	fmt.Printf("%s: ", label)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
