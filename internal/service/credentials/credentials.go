package credentials

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/AidanHarveyNelson/factorio-headless/internal/config"
	"github.com/AidanHarveyNelson/factorio-headless/internal/domain/stage"
	"github.com/AidanHarveyNelson/factorio-headless/internal/logger"
)

const (
	// passwordLength is the generated RCON password length.
	passwordLength = 15

	// passwordCharset is the printable set passwords are drawn from.
	passwordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// EnsureRconPassword returns the instance's RCON password, generating and
// persisting one on first run. A pre-provisioned password is reused verbatim
// and never regenerated, so credentials stay stable for as long as the
// persistent volume survives.
func EnsureRconPassword(ctx context.Context, path string) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: read credentials file: %w", stage.ErrFilesystem, err)
	}

	if password := strings.TrimSpace(string(contents)); password != "" {
		logger.InfoKV(ctx, "Reusing existing RCON password", "path", path)
		return password, nil
	}

	password, err := generatePassword()
	if err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}

	if err = os.WriteFile(path, []byte(password), config.SecretFilePermissions); err != nil {
		return "", fmt.Errorf("%w: write credentials file: %w", stage.ErrFilesystem, err)
	}

	logger.InfoKV(ctx, "Provisioned new RCON password", "path", path)

	return password, nil
}

// generatePassword draws a fixed-length password from the printable charset
// using crypto/rand.
func generatePassword() (string, error) {
	var builder strings.Builder

	charsetSize := big.NewInt(int64(len(passwordCharset)))

	for i := 0; i < passwordLength; i++ {
		index, err := rand.Int(rand.Reader, charsetSize)
		if err != nil {
			return "", err
		}

		builder.WriteByte(passwordCharset[index.Int64()])
	}

	return builder.String(), nil
}
