package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallbackUserDemoAccountDisabled(t *testing.T) {
	s := &Service{demoAccount: false}
	require.Nil(t, s.fallbackUser())
}

func TestFallbackUserDemoAccountEnabled(t *testing.T) {
	s := &Service{demoAccount: true}
	user := s.fallbackUser()
	require.NotNil(t, user)
	require.Equal(t, demoUserID, user.ID)
}
