package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	synth := "espeak-ng --stdout -v en-us -s 175"
	notify := "notify-send -a parley"

	return Config{
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Segment: SegmentConfig{DurationMS: 5000},
		Transcribe: TranscribeConfig{
			Endpoint: "https://api.openai.com/v1/audio/transcriptions",
			Model:    "whisper-1",
		},
		Generate: GenerateConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o",
			MaxTokens:    150,
			Temperature:  0.7,
			SystemPrompt: "You are a helpful, friendly AI assistant. Respond concisely and conversationally.",
		},
		Speech: SpeechConfig{
			Synth:         CommandConfig{Raw: synth, Argv: mustParseArgv(synth)},
			ResumeDelayMS: 5000,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			NotifyCmd:      CommandConfig{Raw: notify, Argv: mustParseArgv(notify)},
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
	}
}
