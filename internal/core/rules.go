package core

import "shoalcore/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewTreatmentWindowRule())
	engine.Register(NewScoreBoundsRule())
	engine.Register(NewFollowupConsistencyRule())
	engine.Register(NewOvercrowdingRule())
	return engine
}
