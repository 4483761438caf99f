package kafka

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTerminalClassification(t *testing.T) {
	plain := errors.New("broker unavailable")
	require.False(t, IsTerminal(plain))

	terminal := Terminal(errors.New("malformed payload"))
	require.True(t, IsTerminal(terminal))
	require.Contains(t, terminal.Error(), "malformed payload")
}

func TestTerminalNil(t *testing.T) {
	require.NoError(t, Terminal(nil))
}

func TestTerminalSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("handling message: %w", Terminal(errors.New("bad schema")))
	require.True(t, IsTerminal(err))

	cause := errors.New("bad schema")
	require.True(t, errors.Is(Terminal(cause), cause))
}
