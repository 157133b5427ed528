package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Segment.DurationMS <= 0 {
		return nil, fmt.Errorf("segment.duration_ms must be > 0")
	}
	if cfg.Segment.DurationMS < 1000 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("segment.duration_ms=%d is very short; expect choppy transcription", cfg.Segment.DurationMS)})
	}

	if strings.TrimSpace(cfg.Transcribe.Endpoint) == "" {
		return nil, fmt.Errorf("transcribe.endpoint must not be empty")
	}
	if strings.TrimSpace(cfg.Transcribe.Model) == "" {
		return nil, fmt.Errorf("transcribe.model must not be empty")
	}

	if strings.TrimSpace(cfg.Generate.Endpoint) == "" {
		return nil, fmt.Errorf("generate.endpoint must not be empty")
	}
	if strings.TrimSpace(cfg.Generate.Model) == "" {
		return nil, fmt.Errorf("generate.model must not be empty")
	}
	if cfg.Generate.MaxTokens <= 0 {
		return nil, fmt.Errorf("generate.max_tokens must be > 0")
	}
	if cfg.Generate.Temperature < 0 || cfg.Generate.Temperature > 2 {
		return nil, fmt.Errorf("generate.temperature must be between 0 and 2")
	}
	if strings.TrimSpace(cfg.Generate.SystemPrompt) == "" {
		return nil, fmt.Errorf("generate.system_prompt must not be empty")
	}

	if len(cfg.Speech.Synth.Argv) == 0 {
		return nil, fmt.Errorf("speech.synth_cmd must not be empty")
	}
	if cfg.Speech.ResumeDelayMS <= 0 {
		return nil, fmt.Errorf("speech.resume_delay_ms must be > 0")
	}

	if cfg.Indicator.Enable && len(cfg.Indicator.NotifyCmd.Argv) == 0 {
		return nil, fmt.Errorf("indicator.notify_cmd must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	return warnings, nil
}
