package session

import "time"

// PhaseDetail is the display projection of one phase.
type PhaseDetail struct {
	ID            string
	Name          string
	Status        PhaseStatus
	DependsOn     string
	HasAudio      bool
	HasTranscript bool
	HasExtracted  bool
	SourcePages   string
	NextAction    string
}

// Detail is the display projection of a session.
type Detail struct {
	Name            string
	TemplateName    string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SourceTemplates []string
	DonePhases      int
	TotalPhases     int
	Documents       []DocumentRecord
	Phases          []PhaseDetail
}

// Detail builds the display projection, with phases in template order
// and a suggested next action per phase.
func (s *Session) Detail() Detail {
	d := Detail{
		Name:            s.Name,
		TemplateName:    s.TemplateName,
		Status:          s.Status,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		SourceTemplates: s.SourceTemplates,
		DonePhases:      s.DoneCount(),
		TotalPhases:     len(s.Phases),
		Documents:       s.Documents,
	}

	for _, p := range s.Template().Phases {
		ps, ok := s.Phases[p.ID]
		if !ok {
			continue
		}
		d.Phases = append(d.Phases, PhaseDetail{
			ID:            p.ID,
			Name:          p.Name,
			Status:        ps.Status,
			DependsOn:     p.DependsOn,
			HasAudio:      ps.AudioFile != "",
			HasTranscript: ps.TranscriptFile != "",
			HasExtracted:  ps.ExtractedFile != "",
			SourcePages:   ps.SourcePages,
			NextAction:    nextAction(ps),
		})
	}
	return d
}

func nextAction(ps *PhaseState) string {
	switch ps.Status {
	case PhasePending:
		return "capture"
	case PhaseCaptured:
		return "transcribe"
	case PhaseTranscribed:
		return "extract"
	case PhaseExtracted:
		return "complete"
	default:
		return ""
	}
}
