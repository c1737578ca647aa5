// Package assembler builds token-bounded context windows from ranked
// retrieval candidates. For each memory module it fetches candidates from
// the vector index, ranks them with a five-factor relevance score, and
// trims the result to per-module and global token budgets.
//
// Trimming order is fixed (the module priority table), so repeated calls
// with identical inputs and index state yield identical output.
package assembler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/mnemo-ai/mnemo-go-sdk/memory"
)

// baseCandidates is the per-module fetch floor; focus adds two more per
// level.
const baseCandidates = 5

// Candidate is one scored retrieval result.
type Candidate struct {
	Record memory.Record
	Score  Score
}

// Block is one module's accepted candidates with their token cost.
type Block struct {
	Module     memory.Module
	Candidates []Candidate
	Tokens     int
}

// Context is an assembled, budget-trimmed context window. Blocks appear
// in module priority order.
type Context struct {
	Query       string
	SubjectID   string
	Blocks      []Block
	TotalTokens int
}

// Assembler ranks and assembles retrieval candidates.
type Assembler struct {
	store    memory.VectorStore
	embedder memory.Embedder
	cfg      *memory.IndexConfig
}

// New creates an assembler. cfg supplies the per-module token budget and
// which modules are enabled.
func New(store memory.VectorStore, embedder memory.Embedder, cfg *memory.IndexConfig) *Assembler {
	if cfg == nil {
		cfg = memory.DefaultIndexConfig()
	}
	return &Assembler{store: store, embedder: embedder, cfg: cfg}
}

// AssembleContext fetches up to 5+2*focusLevel candidates per enabled
// module, scores them against the query, and greedily accepts the best
// into each module's block until the module token budget would be
// exceeded. A module whose query fails is logged and skipped; it never
// aborts the others. Modules with no accepted candidates produce no
// block.
func (a *Assembler) AssembleContext(ctx context.Context, query, subjectID, location string, focusLevel int) (*Context, error) {
	queryVec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if focusLevel < 0 {
		focusLevel = 0
	}
	limit := baseCandidates + 2*focusLevel
	now := time.Now()
	result := &Context{Query: query, SubjectID: subjectID}

	for _, module := range memory.AllModules {
		mc := a.cfg.Module(module)
		if !mc.Enabled {
			continue
		}

		hits, err := a.store.Query(ctx, mc.TableName, queryVec, nil, limit)
		if err != nil {
			log.Printf("[ASSEMBLER] Query for module %s failed: %v (skipping)", module, err)
			continue
		}
		if len(hits) == 0 {
			continue
		}

		candidates := make([]Candidate, 0, len(hits))
		for _, hit := range hits {
			candidates = append(candidates, Candidate{
				Record: hit.Record,
				Score:  scoreHit(hit, location, now),
			})
		}
		sortCandidates(candidates)

		block := Block{Module: module}
		for _, c := range candidates {
			cost := memory.EstimateTokens(c.Record.Content)
			if block.Tokens+cost > a.cfg.MaxTokensPerModule {
				break
			}
			block.Candidates = append(block.Candidates, c)
			block.Tokens += cost
		}
		if len(block.Candidates) == 0 {
			continue
		}

		result.Blocks = append(result.Blocks, block)
		result.TotalTokens += block.Tokens
	}

	return result, nil
}

// ApplyGlobalBudget re-trims an assembled context to a global token cap.
// Modules are revisited in priority order; each keeps its highest-scored
// candidates that still fit, and a module that cannot fit even one
// candidate is dropped whole rather than truncated mid-record.
func ApplyGlobalBudget(c *Context, maxTokens int) *Context {
	if c == nil || c.TotalTokens <= maxTokens {
		return c
	}

	trimmed := &Context{Query: c.Query, SubjectID: c.SubjectID}
	remaining := maxTokens

	for _, block := range c.Blocks {
		kept := Block{Module: block.Module}
		for _, cand := range block.Candidates {
			cost := memory.EstimateTokens(cand.Record.Content)
			if kept.Tokens+cost > remaining {
				break
			}
			kept.Candidates = append(kept.Candidates, cand)
			kept.Tokens += cost
		}
		if len(kept.Candidates) == 0 {
			continue
		}
		trimmed.Blocks = append(trimmed.Blocks, kept)
		trimmed.TotalTokens += kept.Tokens
		remaining -= kept.Tokens
	}

	return trimmed
}

// Synthesize renders the context deterministically: one titled block per
// populated module, one line per candidate in that module's display
// convention. Empty contexts render as an empty string.
func Synthesize(c *Context) string {
	if c == nil || len(c.Blocks) == 0 {
		return ""
	}

	var parts []string
	for _, block := range c.Blocks {
		var b strings.Builder
		b.WriteString(fmt.Sprintf("=== %s ===\n", blockTitle(block.Module)))
		for _, cand := range block.Candidates {
			b.WriteString(formatCandidate(block.Module, cand))
			b.WriteString("\n")
		}
		parts = append(parts, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(parts, "\n\n")
}

func sortCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score.Aggregate != candidates[j].Score.Aggregate {
			return candidates[i].Score.Aggregate > candidates[j].Score.Aggregate
		}
		return candidates[i].Record.ID < candidates[j].Record.ID
	})
}

func blockTitle(module memory.Module) string {
	switch module {
	case memory.ModuleCore:
		return "CORE IDENTITY"
	case memory.ModuleActive:
		return "ACTIVE FOCUS"
	case memory.ModuleNotes:
		return "NOTES"
	case memory.ModuleEpisodic:
		return "EPISODIC MEMORY"
	case memory.ModuleSemantic:
		return "SEMANTIC MEMORY"
	case memory.ModuleDocuments:
		return "DOCUMENTS"
	case memory.ModulePeople:
		return "PEOPLE"
	case memory.ModuleTranscripts:
		return "CONVERSATION HISTORY"
	case memory.ModuleLinks:
		return "ASSOCIATIVE LINKS"
	default:
		return strings.ToUpper(string(module))
	}
}

func formatCandidate(module memory.Module, cand Candidate) string {
	content := strings.TrimSpace(cand.Record.Content)
	switch module {
	case memory.ModuleNotes:
		if cand.Record.Emotion != "" {
			return fmt.Sprintf("[%s] %s", cand.Record.Emotion, content)
		}
		return content
	case memory.ModuleActive, memory.ModulePeople, memory.ModuleLinks:
		return "- " + content
	default:
		return content
	}
}
