package telegram

import "sync"

// conversation states for multi-step flows
type state string

const (
	stateNone state = ""

	stateOnboardingName   state = "onboarding:name"
	stateOnboardingRegion state = "onboarding:region"
	stateOnboardingEmail  state = "onboarding:email"

	stateAdminGreeting     state = "admin:greeting"
	stateAdminWindow       state = "admin:window"
	stateAdminInterval     state = "admin:interval"
	stateAdminMaxResponses state = "admin:max_responses"
	stateAdminEditTitle    state = "admin:edit_title"
	stateAdminEditText     state = "admin:edit_text"
	stateAdminEditMedia    state = "admin:edit_media"
	stateAdminCreateTitle  state = "admin:create_title"
	stateAdminCreateText   state = "admin:create_text"
	stateAdminCreateMedia  state = "admin:create_media"
	stateAdminBroadcast    state = "admin:broadcast"
)

// sessions holds per-chat conversation state in memory, the way the
// original kept its FSM: a restart simply drops half-finished dialogs.
type sessions struct {
	mu sync.Mutex
	m  map[int64]*session
}

type session struct {
	state state
	// scratch values carried between steps
	postID int64
	title  string
	text   string
}

func newSessions() *sessions {
	return &sessions{m: map[int64]*session{}}
}

func (s *sessions) get(chatID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[chatID]
	if !ok {
		sess = &session{}
		s.m[chatID] = sess
	}
	return sess
}

func (s *sessions) set(chatID int64, st state) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[chatID]
	if !ok {
		sess = &session{}
		s.m[chatID] = sess
	}
	sess.state = st
	return sess
}

func (s *sessions) clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, chatID)
}

func (s *sessions) current(chatID int64) state {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.m[chatID]; ok {
		return sess.state
	}
	return stateNone
}
