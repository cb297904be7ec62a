// Package prompt turns a task request into the instruction sent to the model as the user turn.
//
// All five task categories share one table-driven builder. Each category owns a template and
// the ordered list of fields it substitutes; wording is fixed and inputs are embedded verbatim.
package prompt

import (
	"fmt"
	"strings"
)

// Category identifies an institutional-intelligence task. The value doubles as the Zeebe
// task type of the worker serving it.
type Category string

const (
	CategoryLegalDraft    Category = "legal-draft"
	CategoryRegOps        Category = "regops-analysis"
	CategoryLPQuery       Category = "lp-query"
	CategoryESGAudit      Category = "esg-audit"
	CategoryGovernanceSim Category = "governance-sim"
)

// Field names used in TaskRequest.Fields and in job variables.
const (
	FieldDocType  = "docType"
	FieldContext  = "context"
	FieldQuestion = "question"
	FieldRegion   = "region"
)

// Prompt is the final instruction string.
type Prompt string

func (p Prompt) String() string { return string(p) }

// DocumentTypes and Regions are the choices offered to users. The builder accepts any string.
var (
	DocumentTypes = []string{"NDA", "LPA", "Side Letter", "Board Resolution"}
	Regions       = []string{"US", "EU", "Middle East", "Asia", "LATAM"}
)

// FieldSpec describes one input of a category.
type FieldSpec struct {
	Name        string
	Description string
	Hints       []string
}

// Schema is the per-category field schema plus its template.
type Schema struct {
	Category    Category
	DisplayName string
	Description string
	Fields      []FieldSpec
	template    string
}

// FieldNames returns the schema's field names in declaration order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

var schemas = []Schema{
	{
		Category:    CategoryLegalDraft,
		DisplayName: "Legal Drafter",
		Description: "Generates an institutional fund legal document of the requested type.",
		Fields: []FieldSpec{
			{Name: FieldDocType, Description: "Document type to draft", Hints: DocumentTypes},
			{Name: FieldContext, Description: "Deal or fund context the draft is based on"},
		},
		template: "Generate a {docType} suitable for institutional fund use based on: {context}",
	},
	{
		Category:    CategoryRegOps,
		DisplayName: "Cross-border RegOps",
		Description: "Recommends a jurisdictional compliance strategy for a regulatory exposure summary.",
		Fields: []FieldSpec{
			{Name: FieldContext, Description: "Fund's regulatory exposure summary"},
		},
		template: "Analyze this regulatory context and recommend jurisdictional compliance strategy: {context}",
	},
	{
		Category:    CategoryLPQuery,
		DisplayName: "LP Multilingual",
		Description: "Answers a limited partner's question in a tone appropriate to the LP's region.",
		Fields: []FieldSpec{
			{Name: FieldQuestion, Description: "Question asked by the LP"},
			{Name: FieldRegion, Description: "Region the LP is based in", Hints: Regions},
		},
		template: "An LP from {region} asks: {question}\nRespond clearly, accurately, and formally in the LP's region-appropriate tone.",
	},
	{
		Category:    CategoryESGAudit,
		DisplayName: "ESG Auditor",
		Description: "Scores ESG compliance readiness across the EU, US and APAC blocs.",
		Fields: []FieldSpec{
			{Name: FieldContext, Description: "ESG initiative or policy description"},
		},
		template: "Review this ESG strategy and give a compliance readiness score (EU, US, APAC): {context}",
	},
	{
		Category:    CategoryGovernanceSim,
		DisplayName: "Board Governance",
		Description: "Simulates a fund governance decision from board votes and side letter conditions.",
		Fields: []FieldSpec{
			{Name: FieldContext, Description: "Board voting scenario and side letter conditions"},
		},
		template: "Simulate a fund governance decision based on board votes and the following side letter conditions: {context}",
	},
}

var schemaByCategory = func() map[Category]Schema {
	m := make(map[Category]Schema, len(schemas))
	for _, s := range schemas {
		m[s.Category] = s
	}
	return m
}()

// Categories lists every category in a stable order.
func Categories() []Category {
	out := make([]Category, len(schemas))
	for i, s := range schemas {
		out[i] = s.Category
	}
	return out
}

// Lookup returns the schema for category.
func Lookup(category Category) (Schema, bool) {
	s, ok := schemaByCategory[category]
	return s, ok
}

// ParseCategory validates a raw category string.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.TrimSpace(raw))
	if _, ok := schemaByCategory[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
	}
	return c, nil
}
