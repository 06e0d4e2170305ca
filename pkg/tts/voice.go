package tts

import "fmt"

// Gender selects the eSpeak voice variant.
type Gender string

const (
	Female Gender = "female"
	Male   Gender = "male"
)

const (
	MinRate = 80
	MaxRate = 300

	DefaultRate   = 150
	DefaultVolume = 1.0
)

// Voice holds the speech settings a user can adjust.
type Voice struct {
	// Rate is in words per minute.
	Rate int `toml:"rate" json:"rate"`

	// Volume ranges over 0.0..1.0.
	Volume float64 `toml:"volume" json:"volume"`

	Gender Gender `toml:"voice_gender" json:"voice_gender"`
}

// DefaultVoice returns the default voice settings.
func DefaultVoice() Voice {
	return Voice{Rate: DefaultRate, Volume: DefaultVolume, Gender: Female}
}

// Validate checks the voice settings are within range.
func (v Voice) Validate() error {
	if v.Rate < MinRate || v.Rate > MaxRate {
		return fmt.Errorf("rate must be within %d..%d words per minute, got %d", MinRate, MaxRate, v.Rate)
	}
	if !(v.Volume >= 0 && v.Volume <= 1) {
		return fmt.Errorf("volume must be within 0..1, got %g", v.Volume)
	}
	switch v.Gender {
	case Female, Male:
	default:
		return fmt.Errorf("voice gender must be %q or %q, got %q", Female, Male, v.Gender)
	}
	return nil
}

// espeakVoice maps the gender to an English eSpeak voice variant.
func (v Voice) espeakVoice() string {
	if v.Gender == Male {
		return "en+m3"
	}
	return "en+f3"
}

// amplitude maps volume onto eSpeak's -a scale, where 100 is the default loudness.
func (v Voice) amplitude() int {
	return int(v.Volume*100 + 0.5)
}
