package news

const (
	titleThreshold        = 0.7
	partialTitleThreshold = 0.5
	descriptionThreshold  = 0.5
)

// IsDuplicate reports whether c repeats the story of kept.
func IsDuplicate(c, kept Candidate) bool {
	titleSim := Similarity(c.Title, kept.Title)
	if titleSim > titleThreshold {
		return true
	}

	descSim := 0.0
	if c.Description != "" && kept.Description != "" {
		descSim = Similarity(c.Description, kept.Description)
	}
	return titleSim > partialTitleThreshold && descSim > descriptionThreshold
}

// Deduplicate keeps the first-seen candidate of every story and drops later
// ones that IsDuplicate of an already kept candidate. Relative order of the
// kept candidates is preserved.
func Deduplicate(candidates []Candidate) []Candidate {
	kept := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		dup := false
		for _, k := range kept {
			if IsDuplicate(c, k) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
		}
	}

	return kept
}
