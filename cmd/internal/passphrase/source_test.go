package passphrase

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSource(env map[string]string, tty bool, typed string, opts ...Option) (*Source, *int) {
	reads := 0
	s := NewSource("FLASH_TEST_PASS", "test keystore", opts...)
	s.lookup = func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	s.terminal = func() bool { return tty }
	s.read = func() ([]byte, error) {
		reads++
		if typed == "\x00" {
			return nil, errors.New("tty closed")
		}
		return []byte(typed), nil
	}
	s.prompt = &bytes.Buffer{}
	return s, &reads
}

func TestEnvironmentWins(t *testing.T) {
	s, reads := testSource(map[string]string{"FLASH_TEST_PASS": "hunter2"}, true, "typed")
	got, err := s.Get()
	require.NoError(t, err)
	require.Equal(t, "hunter2", got)
	require.Zero(t, *reads)
}

func TestEmptyPassphrase(t *testing.T) {
	s, _ := testSource(map[string]string{"FLASH_TEST_PASS": " "}, false, "")
	_, err := s.Get()
	require.Error(t, err)

	s, _ = testSource(map[string]string{"FLASH_TEST_PASS": ""}, false, "", AllowEmpty())
	got, err := s.Get()
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestPromptIsCached(t *testing.T) {
	s, reads := testSource(nil, true, "typed")
	for i := 0; i < 2; i++ {
		got, err := s.Get()
		require.NoError(t, err)
		require.Equal(t, "typed", got)
	}
	require.Equal(t, 1, *reads)
}

func TestNoTerminal(t *testing.T) {
	s, _ := testSource(nil, false, "")
	_, err := s.Get()
	require.ErrorContains(t, err, "FLASH_TEST_PASS")

	s, _ = testSource(nil, true, "\x00")
	_, err = s.Get()
	require.ErrorContains(t, err, "tty closed")
}
