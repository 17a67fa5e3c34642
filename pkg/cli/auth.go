package cli

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/urfave/cli/v2"
	"github.com/zalando/go-keyring"
)

const (
	passwordFileName = "db_password"
	keyringService   = "churnctl"
	keyringUser      = "postgres"

	dbPasswordEnvVar = "CHURNCTL_DB_PASSWORD"
)

var (
	authCmd = &cli.Command{
		Name:            "auth",
		HideHelpCommand: true,
		Usage:           "Store the Postgres password in the OS keychain",
		Action:          cmdSetDBPassword,
	}
)

func cmdSetDBPassword(c *cli.Context) error {
	fmt.Print("Enter Postgres password: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading user input: %w", err)
	}

	password := strings.TrimSpace(line)
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if err := saveDBPassword(password); err != nil {
		return fmt.Errorf("saving password: %w", err)
	}

	fmt.Println("Password saved to OS keychain")
	return nil
}

func saveDBPassword(password string) error {
	if err := keyring.Set(keyringService, keyringUser, password); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return saveDBPasswordFile(password)
	}

	// Clean up legacy file if it exists
	legacyPath := path.Join(getHomeDir(), passwordFileName)
	os.Remove(legacyPath)

	return nil
}

// getDBPassword resolves the Postgres password: env var, then keychain,
// then the fallback file. Empty result is valid for trust-auth servers.
func getDBPassword() (string, error) {
	if v := os.Getenv(dbPasswordEnvVar); v != "" {
		return v, nil
	}

	password, err := keyring.Get(keyringService, keyringUser)
	if err == nil && password != "" {
		return password, nil
	}

	password, err = getDBPasswordFile()
	if err != nil {
		slog.Debug("no stored database password", "error", err)
		return "", nil
	}

	// Migrate to keychain
	if migrateErr := keyring.Set(keyringService, keyringUser, password); migrateErr == nil {
		slog.Info("migrated password from file to OS keychain")
		legacyPath := path.Join(getHomeDir(), passwordFileName)
		os.Remove(legacyPath)
	}

	return password, nil
}

func saveDBPasswordFile(password string) error {
	passwordPath := path.Join(getHomeDir(), passwordFileName)
	return os.WriteFile(passwordPath, []byte(password), 0600)
}

func getDBPasswordFile() (string, error) {
	passwordPath := path.Join(getHomeDir(), passwordFileName)
	b, err := os.ReadFile(passwordPath)
	if err != nil {
		return "", fmt.Errorf("reading password file %s: %w", passwordPath, err)
	}
	return string(b), nil
}
