package metadata

// FrameStage is the phase of a single frame. Stages only move forward.
type FrameStage int

const (
	FrameStageShadow FrameStage = iota
	FrameStageForward
	FrameStagePostProcess
	FrameStageResolve
	FrameStageAssemble
	FrameStageSubmitted
)

// FrameStages lists the stages that own a render pass, in execution order.
var FrameStages = []FrameStage{
	FrameStageShadow,
	FrameStageForward,
	FrameStagePostProcess,
	FrameStageResolve,
	FrameStageAssemble,
}

// Next returns the following stage. Submitted is terminal and returns itself.
func (s FrameStage) Next() FrameStage {
	if s >= FrameStageSubmitted {
		return FrameStageSubmitted
	}
	return s + 1
}

func (s FrameStage) IsTerminal() bool {
	return s == FrameStageSubmitted
}

func (s FrameStage) String() string {
	switch s {
	case FrameStageShadow:
		return "shadow"
	case FrameStageForward:
		return "forward"
	case FrameStagePostProcess:
		return "post_process"
	case FrameStageResolve:
		return "resolve"
	case FrameStageAssemble:
		return "assemble"
	case FrameStageSubmitted:
		return "submitted"
	}
	return "unknown"
}

// ParseFrameStage is the inverse of FrameStage.String for the five pass stages.
func ParseFrameStage(s string) (FrameStage, bool) {
	for _, st := range FrameStages {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}
