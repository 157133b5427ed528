// Package fsm defines the conversation floor-holding state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle           State = "idle"
	StateListening      State = "listening"
	StateTranscribing   State = "transcribing"
	StateGenerating     State = "generating"
	StateSpeaking       State = "speaking"
	StateSpeakingPaused State = "speaking_paused"
)

const (
	// EventStart opens a conversation and begins continuous capture.
	EventStart Event = "start"
	// EventSegmentReady fires when a closed segment carries audio bytes.
	EventSegmentReady Event = "segment_ready"
	// EventSegmentEmpty fires when a closed segment carried no bytes.
	EventSegmentEmpty Event = "segment_empty"
	// EventTranscript fires on transcription success with non-empty text.
	EventTranscript Event = "transcript"
	// EventTranscriptEmpty fires on transcription success with empty text.
	EventTranscriptEmpty Event = "transcript_empty"
	// EventTranscriptFailed fires on any transcription failure.
	EventTranscriptFailed Event = "transcript_failed"
	// EventReply fires on generation success.
	EventReply Event = "reply"
	// EventReplyFailed fires on any generation failure.
	EventReplyFailed Event = "reply_failed"
	// EventBargeIn fires the instant a new capture segment opens while the
	// assistant holds the floor.
	EventBargeIn Event = "barge_in"
	// EventResume fires when the scheduled resume timer un-pauses playback.
	EventResume Event = "resume"
	// EventPlaybackDone fires when the assistant utterance finishes.
	EventPlaybackDone Event = "playback_done"
	// EventPlaybackFailed fires when speech playback errors out.
	EventPlaybackFailed Event = "playback_failed"
	// EventStop ends the conversation from any state.
	EventStop Event = "stop"
)

// Transition applies one event to the current state and returns the next
// state. Invalid pairings return the unchanged state and an error; EventStop
// is accepted everywhere.
func Transition(current State, event Event) (State, error) {
	if event == EventStop {
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventSegmentReady:
			return StateTranscribing, nil
		case EventSegmentEmpty:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateTranscribing:
		switch event {
		case EventTranscript:
			return StateGenerating, nil
		case EventTranscriptEmpty, EventTranscriptFailed:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateGenerating:
		switch event {
		case EventReply:
			return StateSpeaking, nil
		case EventReplyFailed:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSpeaking:
		switch event {
		case EventBargeIn:
			return StateSpeakingPaused, nil
		case EventPlaybackDone, EventPlaybackFailed:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSpeakingPaused:
		switch event {
		case EventBargeIn:
			return StateSpeakingPaused, nil
		case EventResume:
			return StateSpeaking, nil
		case EventPlaybackDone, EventPlaybackFailed:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Active reports whether a conversation currently holds the microphone.
func Active(state State) bool {
	return state != StateIdle
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
