package schema

import "strings"

// InferName guesses a dataset schema name from a filename stem using
// substring markers. Training-essay files map to the primary competition
// schema unless the name mentions prompts; DAIGT files map to the
// additional-data schema. Returns false when nothing matches.
func (r *Registry) InferName(filename string) (string, bool) {
	name := strings.ToLower(filename)

	switch {
	case strings.Contains(name, "train_essay") || strings.Contains(name, "train_"):
		if strings.Contains(name, "prompt") {
			return TrainPrompts, true
		}
		return PrimaryCompetitionData, true
	case strings.Contains(name, "daigt"):
		return DaigtV2AdditionalData, true
	}
	return "", false
}
