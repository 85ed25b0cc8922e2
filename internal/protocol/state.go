// Package protocol describes the on-chain contract of the epoch resolution program: its account
// layouts, the addresses it derives and the instructions it accepts. Everything in here must match
// the program bit for bit, so nothing in this package talks to the network.
package protocol

import (
	"github.com/gagliardetto/solana-go"
	"github.com/rotisserie/eris"
)

// EpochResultState is the resolution state of an epoch as recorded by the program. The keeper never
// moves an epoch between states itself; it submits a request and observes the result.
type EpochResultState uint8

const (
	// StateActive means the epoch is running or waiting for someone to request resolution.
	StateActive EpochResultState = iota
	// StatePending means resolution was requested and an oracle callback is outstanding.
	StatePending
	// StateResolved means the outcome is final and the next epoch can be initialized.
	StateResolved
)

const (
	activeString   = "active"
	pendingString  = "pending"
	resolvedString = "resolved"
	unknownString  = "unknown"
)

func (s EpochResultState) String() string {
	switch s {
	case StateActive:
		return activeString
	case StatePending:
		return pendingString
	case StateResolved:
		return resolvedString
	default:
		return unknownString
	}
}

// Valid reports whether s is one of the variants the program defines.
func (s EpochResultState) Valid() bool {
	return s <= StateResolved
}

func (s EpochResultState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, eris.Errorf("invalid epoch result state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *EpochResultState) UnmarshalText(text []byte) error {
	switch string(text) {
	case activeString:
		*s = StateActive
	case pendingString:
		*s = StatePending
	case resolvedString:
		*s = StateResolved
	default:
		return eris.Errorf("unknown epoch result state %q", string(text))
	}
	return nil
}

// Task is the keeper's snapshot of the program: the accounts it acts on and the latest observed
// state of the current epoch. EndAt, State and PoolCount always come from the most recent refresh.
type Task struct {
	ProgramID          solana.PublicKey `json:"programId"`
	ConfigAddress      solana.PublicKey `json:"configAddress"`
	EpochResultAddress solana.PublicKey `json:"epochResultAddress"`
	// OracleQueue is optional; the zero key means the resolve instruction omits it.
	OracleQueue solana.PublicKey `json:"oracleQueue"`

	Epoch     uint64           `json:"epoch"`
	EndAt     int64            `json:"endAt"`
	State     EpochResultState `json:"state"`
	PoolCount uint8            `json:"poolCount"`
}

// HasOracleQueue reports whether an oracle queue account is configured.
func (t Task) HasOracleQueue() bool {
	return t.OracleQueue != solana.PublicKey{}
}

// Apply overwrites the observed fields of the task with a freshly decoded epoch result.
func (t *Task) Apply(address solana.PublicKey, result EpochResult) {
	t.EpochResultAddress = address
	t.EndAt = result.EndAt
	t.State = result.State
	t.PoolCount = result.PoolCount
}
