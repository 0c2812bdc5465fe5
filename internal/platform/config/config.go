package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// OwnerAddress holds the registry owner's ledger address; owner-only
	// operations compare against it.
	OwnerAddress string

	// CreationFee is the fixed native fee charged per exam creation, in
	// native base units.
	CreationFee uint64

	// CredentialBaseURI is handed to every deployed exam instance.
	CredentialBaseURI string

	// DBDriver is "sqlite", "postgres", or empty for the in-memory store.
	DBDriver string
	DBDSN    string

	// RedisURL enables the certificate-view cache when set.
	RedisURL string

	// KafkaBrokers enables the kafka event publisher when set.
	KafkaBrokers []string
	KafkaTopic   string

	// GenesisNative and GenesisToken seed the in-process ledgers at startup
	// so value-moving operations have funded accounts to draw on. Format:
	// "addr=amount,addr=amount". Ignored when an external rail is wired in.
	GenesisNative map[string]uint64
	GenesisToken  map[string]uint64
}

// CertificateCacheTTL bounds how long a verified certificate view may be
// served from cache.
var CertificateCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("EXAMLEDGER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	owner := os.Getenv("EXAMLEDGER_OWNER")
	if owner == "" {
		owner = "owner:root"
	}

	fee := uint64(1)
	if raw := os.Getenv("EXAMLEDGER_CREATION_FEE"); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			fee = parsed
		}
	}

	baseURI := os.Getenv("EXAMLEDGER_CREDENTIAL_URI")
	if baseURI == "" {
		baseURI = "https://credentials.examledger.local/meta"
	}

	topic := os.Getenv("EXAMLEDGER_KAFKA_TOPIC")
	if topic == "" {
		topic = "examledger.events"
	}

	var brokers []string
	if raw := os.Getenv("EXAMLEDGER_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return Server{
		GenesisNative:     parseGenesis(os.Getenv("EXAMLEDGER_GENESIS_NATIVE")),
		GenesisToken:      parseGenesis(os.Getenv("EXAMLEDGER_GENESIS_TOKEN")),
		Addr:              addr,
		JWTSigningKey:     jwtSigningKey,
		OwnerAddress:      owner,
		CreationFee:       fee,
		CredentialBaseURI: baseURI,
		DBDriver:          os.Getenv("EXAMLEDGER_DB_DRIVER"),
		DBDSN:             os.Getenv("EXAMLEDGER_DB_DSN"),
		RedisURL:          os.Getenv("EXAMLEDGER_REDIS_URL"),
		KafkaBrokers:      brokers,
		KafkaTopic:        topic,
	}
}

// parseGenesis reads "addr=amount,addr=amount" allocations. Addresses may
// contain colons, so '=' separates the amount. Malformed pairs are skipped.
func parseGenesis(raw string) map[string]uint64 {
	if raw == "" {
		return nil
	}
	alloc := make(map[string]uint64)
	for _, pair := range strings.Split(raw, ",") {
		addr, amount, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || addr == "" {
			continue
		}
		parsed, err := strconv.ParseUint(amount, 10, 64)
		if err != nil {
			continue
		}
		alloc[addr] += parsed
	}
	if len(alloc) == 0 {
		return nil
	}
	return alloc
}
