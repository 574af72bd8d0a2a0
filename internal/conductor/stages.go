package conductor

import "github.com/dyluth/warren/pkg/pipeline"

// stageGraph is the fixed legal-edge set of the pipeline. It is static
// configuration, never inferred from data.
//
// The graph is mostly linear with one fan-in: visuals_locked is reachable
// from both screens_defined and screens_generated, because a run whose
// screen index needs no per-screen expansion skips screens_generated.
var stageGraph = map[pipeline.Stage][]pipeline.Stage{
	pipeline.StageIdea:             {pipeline.StageBasePromptReady},
	pipeline.StageBasePromptReady:  {pipeline.StagePlanning},
	pipeline.StagePlanning:         {pipeline.StageScreensDefined},
	pipeline.StageScreensDefined:   {pipeline.StageScreensGenerated, pipeline.StageVisualsLocked},
	pipeline.StageScreensGenerated: {pipeline.StageVisualsLocked},
	pipeline.StageVisualsLocked:    {pipeline.StageComplete},
	pipeline.StageComplete:         {},
}

// InitialStage is the stage every run starts in.
const InitialStage = pipeline.StageIdea

// TerminalStage is the pipeline's final stage.
const TerminalStage = pipeline.StageComplete

// LegalTransition reports whether from -> to is an edge in the stage graph.
func LegalTransition(from, to pipeline.Stage) bool {
	for _, next := range stageGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Successors returns the legal successor stages of a stage.
// Returns an empty slice for the terminal stage.
func Successors(s pipeline.Stage) []pipeline.Stage {
	next := stageGraph[s]
	out := make([]pipeline.Stage, len(next))
	copy(out, next)
	return out
}
