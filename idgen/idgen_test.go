package idgen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUserIDNonZero(t *testing.T) {
	a := NewUserID()
	b := NewUserID()
	require.NotZero(t, a)
	require.NotZero(t, b)
}

func TestConversationIDOrderIndependent(t *testing.T) {
	require.Equal(t, ConversationID(5, 9), ConversationID(9, 5))
	require.Equal(t, "5_9", ConversationID(9, 5))
}

func TestConversationIDSameUserIsStable(t *testing.T) {
	require.Equal(t, "3_3", ConversationID(3, 3))
}
