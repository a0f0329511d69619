package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

type State string

const (
	StateIdle                 State = "IDLE"
	StateGreeting             State = "GREETING"
	StateListeningName        State = "LISTENING_NAME"
	StateConfirmingName       State = "CONFIRMING_NAME"
	StateListeningDestination State = "LISTENING_DESTINATION"
	StateRedirecting          State = "REDIRECTING"
)

type EventType string

const (
	EventStart             EventType = "start"
	EventSpoken            EventType = "spoken"
	EventTranscript        EventType = "transcript"
	EventSpeechError       EventType = "speech_error"
	EventSpeechUnsupported EventType = "speech_unsupported"
)

// Event is something the client reports: a button press, the end of a
// spoken prompt, recognised or typed text, or a recognition failure.
type Event struct {
	Type EventType `json:"type" binding:"required"`
	Text string    `json:"text"`
}

// Reply tells the client what to do next.
type Reply struct {
	SessionID   string `json:"session_id"`
	State       State  `json:"state"`
	Say         string `json:"say,omitempty"`
	Listen      bool   `json:"listen"`
	ManualInput bool   `json:"manual_input"`
	Message     string `json:"message,omitempty"`
	Name        string `json:"name,omitempty"`
	Destination string `json:"destination,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

var ErrUnexpectedEvent = errors.New("event not expected in current state")

const DefaultCampusName = "Central Innovation Campus"

const (
	retryMessage  = "Sorry, I didn't catch that. Please try again."
	manualMessage = "I'm having trouble hearing you. Please type your answer instead."
)

// Dialogue is one visitor's conversation with the assistant.
type Dialogue struct {
	ID     string
	campus string
	ex     Extractor

	mu          sync.Mutex
	state       State
	name        string
	destination string
	failures    int
	manual      bool
	lastSeen    time.Time
}

func NewDialogue(id, campusName string, ex Extractor) *Dialogue {
	if campusName == "" {
		campusName = DefaultCampusName
	}
	if ex == nil {
		ex = Passthrough{}
	}
	return &Dialogue{ID: id, campus: campusName, ex: ex, state: StateIdle}
}

// Current returns the current reply without changing anything.
func (d *Dialogue) Current() Reply {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reply("")
}

// Handle advances the dialogue by one event.
func (d *Dialogue) Handle(ctx context.Context, ev Event) (Reply, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch ev.Type {
	case EventStart:
		if d.state != StateIdle {
			return d.reply(""), nil
		}
		d.state = StateGreeting
		return d.reply(d.greeting()), nil

	case EventSpoken:
		switch d.state {
		case StateGreeting:
			d.state = StateListeningName
		case StateConfirmingName:
			d.state = StateListeningDestination
		case StateRedirecting:
		default:
			return d.reply(""), fmt.Errorf("%w: %s in %s", ErrUnexpectedEvent, ev.Type, d.state)
		}
		return d.reply(""), nil

	case EventTranscript:
		if !d.listening() {
			return d.reply(""), fmt.Errorf("%w: %s in %s", ErrUnexpectedEvent, ev.Type, d.state)
		}
		if strings.TrimSpace(ev.Text) == "" {
			return d.failed(), nil
		}
		d.failures = 0
		if d.state == StateListeningName {
			d.name = Refine(ctx, d.ex, ev.Text, ContextName)
			d.state = StateConfirmingName
			return d.reply(fmt.Sprintf("Nice to meet you, %s. Where would you like to go?", d.name)), nil
		}
		d.destination = Refine(ctx, d.ex, ev.Text, ContextDestination)
		d.state = StateRedirecting
		return d.reply(fmt.Sprintf("Okay, taking you to %s.", d.destination)), nil

	case EventSpeechError:
		if !d.listening() {
			return d.reply(""), fmt.Errorf("%w: %s in %s", ErrUnexpectedEvent, ev.Type, d.state)
		}
		return d.failed(), nil

	case EventSpeechUnsupported:
		d.manual = true
		return d.reply(""), nil

	default:
		return d.reply(""), fmt.Errorf("%w: unknown event %q", ErrUnexpectedEvent, ev.Type)
	}
}

func (d *Dialogue) greeting() string {
	return fmt.Sprintf("Hi there! Welcome to %s. I’m your navigation assistant. What’s your name?", d.campus)
}

func (d *Dialogue) listening() bool {
	return d.state == StateListeningName || d.state == StateListeningDestination
}

// failed counts a recognition failure. The first one retries, later ones
// switch the visitor to typing.
func (d *Dialogue) failed() Reply {
	d.failures++
	if d.failures >= 2 {
		d.manual = true
		r := d.reply("")
		r.Message = manualMessage
		return r
	}
	r := d.reply("")
	r.Message = retryMessage
	return r
}

func (d *Dialogue) reply(say string) Reply {
	r := Reply{
		SessionID:   d.ID,
		State:       d.state,
		Say:         say,
		Listen:      d.listening() && !d.manual,
		ManualInput: d.manual,
		Name:        d.name,
		Destination: d.destination,
	}
	if d.state == StateRedirecting {
		r.RedirectURL = RedirectURL(d.destination, d.name)
	}
	return r
}

// RedirectURL is the navigation page link for a destination.
func RedirectURL(destination, name string) string {
	q := url.Values{}
	q.Set("destination", destination)
	if name != "" {
		q.Set("user", name)
	}
	return "/navigate?" + q.Encode()
}
