package core

// NewDefaultRulesEngine builds a rules engine with the ledger invariant rules
// for a grid of the given parameters.
func NewDefaultRulesEngine(params Params) *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewRecordBoundsRule(params.GridWidth, params.GridHeight))
	engine.Register(NewHoleIntegrityRule())
	engine.Register(NewRecordImmutabilityRule())
	return engine
}
