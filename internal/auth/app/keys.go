package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/wastetrail/wastetrail/pkg/jwtx"
)

// InitSigningKey loads the RS256 private key from disk and builds the signer
// and the session verifier around it. The key file is mandatory: without it
// the service can neither mint ID tokens nor verify platform sessions, so a
// missing or malformed key fails the boot.
func InitSigningKey(cfg Config, logger *slog.Logger) (jwtx.Signer, jwtx.Verifier, error) {
	pemKey, err := os.ReadFile(cfg.SigningKeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read signing key %s: %w", cfg.SigningKeyFile, err)
	}

	signer, err := jwtx.NewSignerRS256(cfg.SigningKeyID, pemKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse signing key %s: %w", cfg.SigningKeyFile, err)
	}

	verifier, err := jwtx.VerifierForSigner(signer, cfg.Issuer)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("signing key loaded",
		"kid", signer.KID(),
		"alg", signer.Alg(),
		"issuer", cfg.Issuer,
	)

	return signer, verifier, nil
}
