package research

import (
	"fmt"
	"strings"
)

// PromptSet carries the system prompts for every pipeline stage. One engine
// differs from another only by its prompt set and tool registry.
type PromptSet struct {
	ReportStructure   string
	FirstSearch       string
	FirstSummary      string
	Reflection        string
	ReflectionSummary string
	ReportFormatting  string
}

const structurePromptTmpl = `You are %s. Given a query, plan a data-driven report with at most 5 core sections.

Each section needs a title and a short description of the content it should cover. The descriptions drive the data mining that follows, so make them concrete.

Return ONLY a JSON array matching:
[{"title": "...", "content": "..."}]
No explanations or extra text.`

const firstSearchPromptTmpl = `You are %s. You will receive one report section as a JSON object with "title" and "content".

You can call the following search tools:
%s

Pick the tool that best fills this section with real data, design its parameters, and explain your choice. Required parameters must always be provided.

Return ONLY a JSON object with keys:
  "search_query": the query text,
  "search_tool": one of the tool names above,
  "reasoning": why this tool and these parameters,
plus the tool's parameters as additional top-level keys.
No explanations or extra text outside the JSON object.`

const firstSummaryPromptTmpl = `You are %s. You will receive a JSON object with "title", "content", "search_query" and "search_results" for one report section.

Write a dense, data-rich section draft. Cite concrete numbers from the results, describe trends, compare periods and close with practical takeaways. Do not pad with generic statements the data cannot support.

Return ONLY a JSON object matching:
{"paragraph_latest_state": "..."}
No explanations or extra text.`

const reflectionPromptTmpl = `You are %s deepening an existing report section. You will receive a JSON object with "title", "content" and "paragraph_latest_state" (the current draft).

You can call the following search tools:
%s

Identify what the draft is still missing and design one follow-up search to fill that gap. Required parameters must always be provided.

Return ONLY a JSON object with keys:
  "search_query": the query text,
  "search_tool": one of the tool names above,
  "reasoning": what gap this search closes,
plus the tool's parameters as additional top-level keys.
No explanations or extra text outside the JSON object.`

const reflectionSummaryPromptTmpl = `You are %s. You will receive a JSON object with "title", "content", "search_query", "search_results" and "paragraph_latest_state" (the current draft).

Merge the new results into the draft: keep everything that is still correct, enrich it with the new data, and fix anything the new data contradicts. The updated draft must stand alone.

Return ONLY a JSON object matching:
{"updated_paragraph_latest_state": "..."}
No explanations or extra text.`

const reportFormattingPromptTmpl = `You are %s assembling the final report. You will receive a JSON array of sections, each with "title" and "paragraph_latest_state".

Produce a polished Markdown report: a top-level title, one section per entry in the given order, smooth transitions, no content invented beyond the drafts.

Return the Markdown document directly, without any JSON wrapper.`

// TrainingAnalysis builds the prompt set for the training-database engine.
// toolLines describe the registered tools, one line each.
func TrainingAnalysis(toolLines []string) PromptSet {
	return promptSet("a running coach and training data analyst", toolLines)
}

// WebResearch builds the prompt set for the public-web engine.
func WebResearch(toolLines []string) PromptSet {
	return promptSet("a research analyst", toolLines)
}

func promptSet(role string, toolLines []string) PromptSet {
	tools := strings.Join(toolLines, "\n")
	return PromptSet{
		ReportStructure:   fmt.Sprintf(structurePromptTmpl, role),
		FirstSearch:       fmt.Sprintf(firstSearchPromptTmpl, role, tools),
		FirstSummary:      fmt.Sprintf(firstSummaryPromptTmpl, role),
		Reflection:        fmt.Sprintf(reflectionPromptTmpl, role, tools),
		ReflectionSummary: fmt.Sprintf(reflectionSummaryPromptTmpl, role),
		ReportFormatting:  fmt.Sprintf(reportFormattingPromptTmpl, role),
	}
}
