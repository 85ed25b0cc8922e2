package protocol

import (
	"bytes"
	"crypto/sha256"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/rotisserie/eris"
)

// DiscriminatorSize is the length of the type prefix on every program account and instruction.
const DiscriminatorSize = 8

const (
	accountNamespace = "account"

	configAccountName      = "Config"
	epochResultAccountName = "EpochResult"
)

// WeightModel is how the program weighs pool entries when resolving an epoch.
type WeightModel uint8

const (
	WeightModelEqual WeightModel = iota
	WeightModelStake
	WeightModelTime
)

func (w WeightModel) String() string {
	switch w {
	case WeightModelEqual:
		return "equal"
	case WeightModelStake:
		return "stake"
	case WeightModelTime:
		return "time"
	default:
		return unknownString
	}
}

// ResolutionType is who produces the outcome of an epoch.
type ResolutionType uint8

const (
	ResolutionOracle ResolutionType = iota
	ResolutionAdmin
)

func (r ResolutionType) String() string {
	switch r {
	case ResolutionOracle:
		return "oracle"
	case ResolutionAdmin:
		return "admin"
	default:
		return unknownString
	}
}

// Config is the program's singleton configuration account.
type Config struct {
	Authority      solana.PublicKey `json:"authority"`
	CurrentEpoch   uint64           `json:"currentEpoch"`
	EpochDuration  int64            `json:"epochDuration"`
	WeightModel    WeightModel      `json:"weightModel"`
	ResolutionType ResolutionType   `json:"resolutionType"`
	Bump           uint8            `json:"bump"`
}

// EpochResult is the per-epoch account holding the deadline and resolution state.
type EpochResult struct {
	Epoch     uint64
	StartAt   int64
	EndAt     int64
	State     EpochResultState
	PoolCount uint8
	Bump      uint8
}

// DecodeConfig decodes raw account bytes into a Config.
func DecodeConfig(data []byte) (Config, error) {
	var cfg Config
	if err := decodeAccount(data, &cfg); err != nil {
		return Config{}, eris.Wrap(err, "failed to decode config account")
	}
	return cfg, nil
}

// DecodeEpochResult decodes raw account bytes into an EpochResult. Unknown state variants are
// rejected rather than defaulted.
func DecodeEpochResult(data []byte) (EpochResult, error) {
	var result EpochResult
	if err := decodeAccount(data, &result); err != nil {
		return EpochResult{}, eris.Wrap(err, "failed to decode epoch result account")
	}
	if !result.State.Valid() {
		return EpochResult{}, eris.Errorf("epoch result account has unknown state variant %d", uint8(result.State))
	}
	return result, nil
}

// The discriminator prefix belongs to the program's account framework and is not checked here.
func decodeAccount(data []byte, v any) error {
	if len(data) < DiscriminatorSize {
		return eris.Errorf("account data is %d bytes, shorter than its discriminator", len(data))
	}
	if err := bin.NewBorshDecoder(data[DiscriminatorSize:]).Decode(v); err != nil {
		return eris.Wrap(err, "borsh decode")
	}
	return nil
}

// MarshalAccount encodes the config the way the program stores it, discriminator included.
func (c Config) MarshalAccount() ([]byte, error) {
	return encodeAccount(configAccountName, c)
}

// MarshalAccount encodes the epoch result the way the program stores it, discriminator included.
func (r EpochResult) MarshalAccount() ([]byte, error) {
	return encodeAccount(epochResultAccountName, r)
}

func encodeAccount(name string, v any) ([]byte, error) {
	disc := Discriminator(accountNamespace, name)
	buf := bytes.NewBuffer(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, eris.Wrapf(err, "failed to encode %s account", name)
	}
	return buf.Bytes(), nil
}

// Discriminator is the 8 byte type prefix the program framework uses: the first bytes of
// sha256("<namespace>:<name>").
func Discriminator(namespace, name string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var disc [DiscriminatorSize]byte
	copy(disc[:], sum[:DiscriminatorSize])
	return disc
}
