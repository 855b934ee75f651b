package state

import (
	"errors"
	"fmt"
)

// StateVersion identifies the on-disk schema layout. Increment it whenever a
// stored record changes shape.
const StateVersion uint64 = 1

var (
	stateVersionKey = []byte("state/version")
	// ErrStateVersionMismatch indicates the stored schema version does not
	// match the version supported by the current binary.
	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// EnsureStateVersion stamps a fresh database with StateVersion and rejects a
// database written by an incompatible binary.
func (m *Manager) EnsureStateVersion() error {
	var stored uint64
	ok, err := m.KVGet(stateVersionKey, &stored)
	if err != nil {
		return err
	}
	if !ok {
		return m.KVPut(stateVersionKey, StateVersion)
	}
	if stored != StateVersion {
		return fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, stored, StateVersion)
	}
	return nil
}
