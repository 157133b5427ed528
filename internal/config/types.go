// Package config resolves, parses, validates, and defaults parley configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by parley.
type Config struct {
	Audio      AudioConfig
	Segment    SegmentConfig
	Transcribe TranscribeConfig
	Generate   GenerateConfig
	Speech     SpeechConfig
	Indicator  IndicatorConfig
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// SegmentConfig controls the fixed listening window length.
type SegmentConfig struct {
	DurationMS int
}

// TranscribeConfig points at the speech-to-text API.
type TranscribeConfig struct {
	Endpoint string
	Model    string
}

// GenerateConfig points at the chat completions API and shapes its requests.
type GenerateConfig struct {
	Endpoint     string
	Model        string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
}

// SpeechConfig controls the local TTS engine and barge-in resume behavior.
type SpeechConfig struct {
	Synth         CommandConfig
	ResumeDelayMS int
}

// IndicatorConfig controls desktop notification and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	NotifyCmd      CommandConfig
	SoundEnable    bool
	ErrorTimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SegmentDuration returns the listening window length as a duration.
func (c Config) SegmentDuration() time.Duration {
	return time.Duration(c.Segment.DurationMS) * time.Millisecond
}

// ResumeDelay returns the barge-in resume timer as a duration.
func (c Config) ResumeDelay() time.Duration {
	return time.Duration(c.Speech.ResumeDelayMS) * time.Millisecond
}

// ErrorTimeout returns how long an error notification dispatch may take.
func (c IndicatorConfig) ErrorTimeout() time.Duration {
	return time.Duration(c.ErrorTimeoutMS) * time.Millisecond
}
