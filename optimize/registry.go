package optimize

var registry = map[string]Rule{}

func register(r SingleReplacementRule) {
	registry[r.Name()] = AsRule(r)
}

// registerRule registers a rule that already implements the general
// Rule interface directly (e.g. one that can propose more than one
// replacement pair per Apply), bypassing the SingleReplacementRule
// adapter.
func registerRule(r Rule) {
	registry[r.Name()] = r
}

func init() {
	register(filterMerge{})
	register(projectMerge{})
	register(removePassthroughProject{})
	register(expressionReduction{})
	register(filterProjectTranspose{})
	register(unionMerge{})
	register(identityJoin{})
	register(aggregateRemove{})

	register(filterJoinTranspose{})
	register(filterAggregateTranspose{})
	register(filterApplyTranspose{})
	register(aggregateProjectTranspose{})
	register(joinProjectTranspose{})

	register(filterNormalization{})
	register(projectNormalization{})

	register(aggregatePruning{})
	register(joinPruning{})
	registerRule(unionPruning{})
	register(applyPruning{})
	register(pruneAggregateInput{})

	register(aggregateSimplifier{})
	register(outerToInnerJoin{})
	register(equalityPropagation{})
	registerRule(commonAggregateDiscovery{})
	register(cteDiscovery{})
	register(topProjection{})
}

// RuleByName returns the registered rule with the given name.
func RuleByName(name string) (Rule, bool) {
	r, ok := registry[name]
	return r, ok
}

// DefaultRules returns the rules run when a Config doesn't name an
// explicit rule list, in the order the teacher's own optimize()
// pipeline favors: cheap normalization first, then transposition
// (which exposes more merge opportunities), then structural merges and
// simplifications, then pruning (which wants the shape settled so it doesn't prune columns a
// later merge would have needed anyway), then the rules that depend on
// whole-graph or derived properties and so want everything above them
// already simplified, with TopProjection and a final
// ExpressionReduction pass bookending the list.
func DefaultRules() []Rule {
	return []Rule{
		registry["TopProjection"],
		registry["ExpressionReduction"],
		registry["FilterNormalization"],
		registry["ProjectNormalization"],
		registry["CteDiscovery"],
		registry["EqualityPropagation"],

		registry["FilterProjectTranspose"],
		registry["FilterJoinTranspose"],
		registry["FilterAggregateTranspose"],
		registry["FilterApplyTranspose"],
		registry["AggregateProjectTranspose"],
		registry["JoinProjectTranspose"],

		registry["FilterMerge"],
		registry["ProjectMerge"],
		registry["RemovePassthroughProject"],
		registry["UnionMerge"],
		registry["IdentityJoin"],
		registry["OuterToInnerJoin"],
		registry["AggregateRemove"],
		registry["AggregateSimplifier"],

		registry["AggregatePruning"],
		registry["JoinPruning"],
		registry["UnionPruning"],
		registry["PruneAggregateInput"],
		registry["ApplyPruning"],

		registry["CommonAggregateDiscovery"],

		registry["ExpressionReduction"],
	}
}
