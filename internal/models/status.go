package models

// Status describes where a user currently is in the rundezvous lifecycle.
type Status string

const (
	// StatusNone - user is signed in but not participating.
	StatusNone Status = "NONE"
	// StatusLooking - user is waiting to be matched with a partner.
	StatusLooking Status = "LOOKING"
	// StatusChatting - user is paired and in the time-boxed chat phase.
	StatusChatting Status = "CHATTING"
	// StatusRunning - meetup started, user is traveling to the landmark.
	StatusRunning Status = "RUNNING"
	// StatusReview - user arrived (or the session ended) and reviews the partner.
	StatusReview Status = "REVIEW"
)

// statusTransitions is the full transition table. A status may only change
// along one of these edges.
var statusTransitions = map[Status][]Status{
	StatusNone:     {StatusLooking},
	StatusLooking:  {StatusChatting, StatusNone},
	StatusChatting: {StatusRunning, StatusReview, StatusNone},
	StatusRunning:  {StatusReview, StatusNone},
	StatusReview:   {StatusNone, StatusLooking},
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusLooking, StatusChatting, StatusRunning, StatusReview:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is a defined
// lifecycle transition.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
