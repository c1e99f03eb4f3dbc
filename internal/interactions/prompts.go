package interactions

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"weave/internal/storage"
)

const (
	maxMembersPerModule  = 8
	maxSymbolsPerEdge    = 6
	maxDescriptionLength = 140
	maxSymbolSamples     = 5
)

// kindPriority orders members for prompt rendering: behavior first, data last
var kindPriority = map[string]int{
	storage.KindFunction:  0,
	storage.KindClass:     1,
	storage.KindMethod:    2,
	storage.KindInterface: 3,
	storage.KindType:      4,
	storage.KindEnum:      5,
	storage.KindVariable:  6,
}

const batchSemanticSystemPrompt = `You annotate module-level call graph edges in a codebase.
For each numbered edge, write one short sentence describing what the calling module uses the called module for.
Be concrete: name the capability, not the mechanism. No speculation beyond the listed symbols.
Respond with a fenced CSV block with columns: from_module,to_module,semantic
One row per edge, module paths copied exactly from the input.`

// buildBatchSemanticPrompt renders a batch of enriched call edges as
// numbered blocks for semantic annotation.
func buildBatchSemanticPrompt(edges []storage.EnrichedCallEdge, descriptions map[int64]string) string {
	var b strings.Builder
	b.WriteString("Annotate these module call edges:\n\n")

	for i, edge := range edges {
		fmt.Fprintf(&b, "%d. %s -> %s [%s, %d calls]\n", i+1, edge.FromModulePath, edge.ToModulePath, edge.EdgePattern, edge.Weight)

		symbols := edge.CalledSymbols
		overflow := 0
		if len(symbols) > maxSymbolsPerEdge {
			overflow = len(symbols) - maxSymbolsPerEdge
			symbols = symbols[:maxSymbolsPerEdge]
		}
		parts := make([]string, 0, len(symbols))
		for _, s := range symbols {
			parts = append(parts, fmt.Sprintf("%s (%s, x%d)", s.Name, s.Kind, s.Count))
		}
		fmt.Fprintf(&b, "   calls: %s", strings.Join(parts, ", "))
		if overflow > 0 {
			fmt.Fprintf(&b, " (+%d more)", overflow)
		}
		b.WriteString("\n")

		if desc := truncate(descriptions[edge.FromModuleID], maxDescriptionLength); desc != "" {
			fmt.Fprintf(&b, "   from: %s\n", desc)
		}
		if desc := truncate(descriptions[edge.ToModuleID], maxDescriptionLength); desc != "" {
			fmt.Fprintf(&b, "   to: %s\n", desc)
		}
		b.WriteString("\n")
	}

	b.WriteString("Respond with a fenced CSV block: from_module,to_module,semantic\n")
	return b.String()
}

const crossProcessSystemPrompt = `You identify runtime connections (HTTP, RPC, IPC, CLI invocation, message queues) between modules that run in separate processes of the same codebase.
Rules:
- Only report connections you have medium or high confidence in. Never report low confidence guesses.
- Never connect modules within the same process group; static analysis already covers those.
- Exclude utility modules and modules that only hold shared types.
- In client/server topologies the client initiates the request: direction goes client -> server.
- Never connect production modules to dev-time-only utilities such as CLI scripts, seed scripts, or migration scripts; those have no runtime callers.
- If your answer would connect most modules in one group to a single target, stop: that pattern is almost always wrong. Report nothing instead.
Respond with a fenced CSV block with columns: from_module_path,to_module_path,reason,confidence
confidence is one of: high, medium.`

// buildCrossProcessPrompt renders one group pair for cross-process inference
func buildCrossProcessPrompt(pair GroupPair, members map[int64][]storage.Definition, astEdges []string) string {
	var b strings.Builder
	b.WriteString("Two process groups from the same codebase, with no static import connectivity between them:\n\n")

	b.WriteString("## Group A\n")
	writeGroupModules(&b, pair.A, members)
	b.WriteString("\n## Group B\n")
	writeGroupModules(&b, pair.B, members)

	b.WriteString("\n## Likely boundary modules\n")
	writeBoundaryHints(&b, "Group A", pair.A, members)
	writeBoundaryHints(&b, "Group B", pair.B, members)

	b.WriteString("\n## AST-detected cross-group edges\n")
	if len(astEdges) == 0 {
		b.WriteString("(None detected)\n")
	} else {
		for _, e := range astEdges {
			b.WriteString("- " + e + "\n")
		}
	}

	b.WriteString("\nPropose directed runtime connections between the groups, or an empty CSV if none are plausible.\n")
	return b.String()
}

func writeGroupModules(b *strings.Builder, modules []storage.Module, members map[int64][]storage.Definition) {
	for _, m := range modules {
		fmt.Fprintf(b, "- %s", m.FullPath)
		if desc := truncate(m.Description, maxDescriptionLength); desc != "" {
			fmt.Fprintf(b, ": %s", desc)
		}
		b.WriteString("\n")

		rep, overflow := representativeMembers(members[m.ID], maxMembersPerModule)
		if len(rep) > 0 {
			names := make([]string, 0, len(rep))
			for _, d := range rep {
				names = append(names, fmt.Sprintf("%s (%s)", d.Name, d.Kind))
			}
			fmt.Fprintf(b, "  members: %s", strings.Join(names, ", "))
			if overflow > 0 {
				fmt.Fprintf(b, " (+%d more)", overflow)
			}
			b.WriteString("\n")
		}
	}
}

func writeBoundaryHints(b *strings.Builder, label string, modules []storage.Module, members map[int64][]storage.Definition) {
	var hints []string
	for _, m := range modules {
		if isBoundaryModule(m, members[m.ID]) {
			hints = append(hints, m.FullPath)
		}
	}
	if len(hints) == 0 {
		fmt.Fprintf(b, "%s: (none matched)\n", label)
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(hints, ", "))
}

// representativeMembers picks up to limit members, behavior-shaped kinds
// first, and returns the overflow count.
func representativeMembers(defs []storage.Definition, limit int) ([]storage.Definition, int) {
	sorted := make([]storage.Definition, len(defs))
	copy(sorted, defs)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := memberPriority(sorted[i].Kind), memberPriority(sorted[j].Kind)
		if pi != pj {
			return pi < pj
		}
		return sorted[i].Name < sorted[j].Name
	})
	if len(sorted) <= limit {
		return sorted, 0
	}
	return sorted[:limit], len(sorted) - limit
}

func memberPriority(kind string) int {
	if p, ok := kindPriority[kind]; ok {
		return p
	}
	return len(kindPriority)
}

const targetedSystemPrompt = `You review candidate module interactions that static analysis could not confirm.
For each numbered candidate decide CONFIRM or SKIP:
- CONFIRM only when the evidence shown (imports, sampled symbol references, module roles) supports a real runtime or call dependency in the stated direction.
- SKIP when the dependency runs the other way (reverse import or reverse AST edge present), when there is no static evidence and no plausible runtime channel, or when either side is a type-only or utility module.
- When in doubt, SKIP. A missing interaction is recoverable; a fabricated one is not.
Respond with a fenced CSV block with columns: from_module_path,to_module_path,action,reason
action is CONFIRM or SKIP.`

// TargetedCandidate is one uncovered pair routed to the stricter LLM pass
type TargetedCandidate struct {
	Pair          storage.UncoveredPair
	FromModule    storage.Module
	ToModule      storage.Module
	CrossProcess  bool
	ForwardImport bool
	ReverseImport bool
	ReverseAST    bool
	SymbolSamples []storage.SymbolPair
}

// buildTargetedPrompt renders the confirm/skip pass for uncovered pairs
func buildTargetedPrompt(candidates []TargetedCandidate) string {
	var b strings.Builder
	b.WriteString("Candidate module interactions lacking confirmed coverage:\n\n")

	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s -> %s (%d unresolved relationships)\n",
			i+1, c.Pair.FromModulePath, c.Pair.ToModulePath, c.Pair.RelationshipCount)

		if desc := truncate(c.FromModule.Description, maxDescriptionLength); desc != "" {
			fmt.Fprintf(&b, "   from: %s\n", desc)
		}
		if desc := truncate(c.ToModule.Description, maxDescriptionLength); desc != "" {
			fmt.Fprintf(&b, "   to: %s\n", desc)
		}

		if c.CrossProcess {
			b.WriteString("   process: modules run in different process groups (no shared imports)\n")
		} else {
			b.WriteString("   process: modules run in the same process group\n")
		}
		fmt.Fprintf(&b, "   evidence: forward-import=%t reverse-import=%t reverse-ast-edge=%t\n",
			c.ForwardImport, c.ReverseImport, c.ReverseAST)

		if len(c.SymbolSamples) > 0 {
			parts := make([]string, 0, len(c.SymbolSamples))
			for _, s := range c.SymbolSamples {
				parts = append(parts, fmt.Sprintf("%s -> %s", s.FromName, s.ToName))
			}
			fmt.Fprintf(&b, "   sampled references: %s\n", strings.Join(parts, "; "))
		}
		b.WriteString("\n")
	}

	b.WriteString("Respond with a fenced CSV block: from_module_path,to_module_path,action,reason\n")
	return b.String()
}

// truncate caps s at max bytes, backing off to a rune boundary so a
// multi-byte character is never split.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
