package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// ErrEmptyPassword is returned when Hash receives an empty password.
var ErrEmptyPassword = errors.New("password must not be empty")

// Config holds the Argon2id cost parameters used for new hashes.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Digest is a salted password hash as it is persisted: the encoded hash and
// its salt travel in separate columns.
type Digest struct {
	Hash string
	Salt string
}

// Argon2 derives and checks [Digest] values.
//
// Argon2 is immutable after construction and safe for concurrent use.
type Argon2 struct {
	config Config
}

type parsedHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	hash        []byte
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Argon2{config: cfg}, nil
}

// Hash draws a fresh random salt and derives the Argon2id key for password.
// Password bytes are used exactly as given, with no Unicode normalization.
func (a *Argon2) Hash(password string) (Digest, error) {
	if password == "" {
		return Digest{}, ErrEmptyPassword
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return Digest{}, err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)

	return Digest{
		Hash: fmt.Sprintf(
			"$%s$v=%d$m=%d,t=%d,p=%d$%s",
			algorithmID,
			argon2.Version,
			a.config.Memory,
			a.config.Time,
			a.config.Parallelism,
			base64.StdEncoding.EncodeToString(key),
		),
		Salt: base64.StdEncoding.EncodeToString(salt),
	}, nil
}

// Verify recomputes the key for password with the digest's own parameters and
// compares it in constant time. A malformed digest is an error, a mismatch is
// (false, nil).
func (a *Argon2) Verify(password string, digest Digest) (bool, error) {
	parsed, err := parseHash(digest.Hash)
	if err != nil {
		return false, err
	}

	salt, err := base64.StdEncoding.DecodeString(digest.Salt)
	if err != nil {
		return false, errors.New("invalid salt encoding")
	}
	if len(salt) < int(minSaltLength) {
		return false, errors.New("invalid salt length")
	}

	computed := argon2.IDKey(
		[]byte(password),
		salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.hash)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// NeedsUpgrade reports whether digest was produced with weaker parameters
// than the hasher's current configuration.
func (a *Argon2) NeedsUpgrade(digest Digest) (bool, error) {
	parsed, err := parseHash(digest.Hash)
	if err != nil {
		return false, err
	}

	return a.config.Memory > parsed.memory ||
		a.config.Time > parsed.time ||
		a.config.Parallelism > parsed.parallelism ||
		a.config.KeyLength != uint32(len(parsed.hash)), nil
}

func parseHash(encoded string) (*parsedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" {
		return nil, errors.New("invalid hash format")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	out, err := parseParams(parts[3])
	if err != nil {
		return nil, err
	}

	out.hash, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, errors.New("invalid hash encoding")
	}
	if len(out.hash) < int(minKeyLength) {
		return nil, errors.New("invalid hash length")
	}

	return out, nil
}

func parseParams(part string) (*parsedHash, error) {
	var (
		out  parsedHash
		seen int
	)

	for _, pair := range strings.Split(part, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.New("invalid parameter entry")
		}

		switch name {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return nil, errors.New("invalid memory parameter")
			}
			out.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return nil, errors.New("invalid time parameter")
			}
			out.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return nil, errors.New("invalid parallelism parameter")
			}
			out.parallelism = uint8(v)
		default:
			return nil, errors.New("unsupported parameter")
		}
		seen++
	}

	if seen != 3 || out.memory == 0 || out.time == 0 || out.parallelism == 0 {
		return nil, errors.New("missing parameters")
	}

	return &out, nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}

	return nil
}
