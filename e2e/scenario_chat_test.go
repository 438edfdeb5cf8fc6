package e2e

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type testChatSuite struct {
	BaseRelaySuite
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, &testChatSuite{})
}

// uniqueName keeps runs against a shared relay apart.
func uniqueName(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (s *testChatSuite) TestFullChatFlow() {
	alice := s.Connect(uniqueName("alice"))
	bob := s.Connect(uniqueName("bob"))

	s.Run("Step 1: Both clients register", func() {
		alice.Register()
		bob.Register()
	})

	s.Run("Step 2: Messages are relayed without echo", func() {
		alice.Say("hello from alice")
		got := bob.Read()
		s.Require().Equal("hello from alice", got.Content)
		s.Require().Equal(alice.name, *got.DisplayName)
		s.Require().NotNil(got.SenderID)
		alice.ExpectSilence(300 * time.Millisecond)
	})

	s.Run("Step 3: A departed client does not disturb the others", func() {
		alice.Close()
		carol := s.Connect(uniqueName("carol"))
		carol.Register()
		bob.Say("anyone there?")
		s.Require().Equal("anyone there?", carol.Read().Content)
	})
}

func (s *testChatSuite) TestRegistrationRules() {
	dave := s.Connect(uniqueName("dave"))
	s.Require().Equal("Server", *dave.Read().DisplayName)

	for _, name := range []string{"", "SERVER", strings.Repeat("z", 21)} {
		dave.Say(name)
		notice := dave.Read()
		s.Require().True(notice.IsServerNotice())
		s.Require().True(strings.HasPrefix(notice.Content, "Invalid username"))
	}

	dave.Say(dave.name)
	s.Require().True(strings.HasPrefix(dave.Read().Content, "Username set to: "+dave.name))
}
