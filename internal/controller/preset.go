package controller

// Preset is one of the canned follow-up questions offered after an assessment.
type Preset int

const (
	PresetElaborate Preset = iota
	PresetImprovements
	PresetFuture
)

var presetTexts = [...]string{
	PresetElaborate:    "Motivera djupare",
	PresetImprovements: "Vilka områden kan eleven utveckla enligt matrisen?",
	PresetFuture:       "Vad bör eleven tänka på inför framtiden?",
}

// Text returns the question for p, or false if p is not a known preset.
func (p Preset) Text() (string, bool) {
	if p < 0 || int(p) >= len(presetTexts) {
		return "", false
	}
	return presetTexts[p], true
}

// Presets lists the preset questions in button order.
func Presets() []string {
	out := make([]string, len(presetTexts))
	copy(out, presetTexts[:])
	return out
}
