package storage

import "time"

// Interaction source constants
const (
	SourceAST         = "ast"
	SourceASTImport   = "ast-import"
	SourceLLMInferred = "llm-inferred"
)

// Interaction pattern constants
const (
	PatternBusiness     = "business"
	PatternUtility      = "utility"
	PatternTestInternal = "test-internal"
)

// Interaction direction constants
const (
	DirectionUni = "uni"
	DirectionBi  = "bi"
)

// Interaction confidence constants (meaningful only for llm-inferred rows)
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Definition kind constants
const (
	KindFunction  = "function"
	KindClass     = "class"
	KindInterface = "interface"
	KindType      = "type"
	KindEnum      = "enum"
	KindVariable  = "variable"
	KindMethod    = "method"
)

// Module is a named node in the rooted module tree
type Module struct {
	ID          int64
	ParentID    *int64
	Name        string
	FullPath    string
	Depth       int
	Description string
	IsTest      bool
}

// Definition is a parsed code symbol, optionally assigned to a module
type Definition struct {
	ID         int64
	ModuleID   *int64
	Name       string
	Kind       string
	FilePath   string
	StartLine  int
	EndLine    int
	IsExported bool
}

// Relationship is a definition-level dependency fact from the parser
type Relationship struct {
	ID               int64
	FromDefinitionID int64
	ToDefinitionID   int64
	Kind             string
	Count            int
}

// ModuleImport is a file-level import aggregate between two modules
type ModuleImport struct {
	FromModuleID int64
	ToModuleID   int64
	ImportCount  int
	IsTypeOnly   bool
}

// ImportedSymbol is a symbol-level import fact between two modules
type ImportedSymbol struct {
	FromModuleID int64
	ToModuleID   int64
	SymbolName   string
	IsType       bool
}

// Interaction is a directed, persisted edge between two modules
type Interaction struct {
	ID           int64
	FromModuleID int64
	ToModuleID   int64
	Pattern      string // business | utility | test-internal, may be empty
	Weight       int
	Symbols      []string
	Semantic     string
	Direction    string // uni | bi
	Source       string // ast | ast-import | llm-inferred
	Confidence   string // high | medium, llm-inferred only
	CreatedAt    time.Time
}

// CalledSymbol is one symbol on an aggregated call-graph edge
type CalledSymbol struct {
	Name  string
	Kind  string
	Count int
}

// CallGraphEdge is a bare module-to-module call edge
type CallGraphEdge struct {
	FromModuleID int64
	ToModuleID   int64
}

// EnrichedCallEdge is an aggregated module call edge with symbol detail
type EnrichedCallEdge struct {
	FromModuleID   int64
	ToModuleID     int64
	FromModulePath string
	ToModulePath   string
	Weight         int
	EdgePattern    string // utility | business
	CalledSymbols  []CalledSymbol
}

// ModuleWithMembers is a module plus its assigned definitions
type ModuleWithMembers struct {
	Module  Module
	Members []Definition
}

// RelationshipCoverage is the computed coverage statistic
type RelationshipCoverage struct {
	TotalRelationships int
	CrossModule        int
	SameModule         int
	Contributing       int
	CoveragePercent    float64
	OrphanedCount      int
	UncoveredPairCount int
}

// UncoveredPair is a cross-module relationship pair with no forward interaction
type UncoveredPair struct {
	FromModuleID      int64
	ToModuleID        int64
	FromModulePath    string
	ToModulePath      string
	RelationshipCount int
}

// SymbolPair is a sampled (from symbol, to symbol) relationship pair
type SymbolPair struct {
	FromName string
	ToName   string
}

// FanInStat compares inbound llm-inferred and AST-confirmed edge counts
type FanInStat struct {
	ModuleID      int64
	ModulePath    string
	InferredCount int
	ASTCount      int
}
