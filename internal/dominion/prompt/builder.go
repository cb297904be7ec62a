package prompt

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownCategory = errors.New("unknown task category")
	ErrMissingField    = errors.New("missing task field")
)

// TaskRequest is the structured input for one task. Fields holds one entry per schema field;
// empty values are allowed and produce a degenerate prompt.
type TaskRequest struct {
	Category Category          `json:"category"`
	Fields   map[string]string `json:"fields"`
}

func LegalDraft(docType, context string) TaskRequest {
	return TaskRequest{Category: CategoryLegalDraft, Fields: map[string]string{FieldDocType: docType, FieldContext: context}}
}

func RegOps(context string) TaskRequest {
	return TaskRequest{Category: CategoryRegOps, Fields: map[string]string{FieldContext: context}}
}

func LPQuery(question, region string) TaskRequest {
	return TaskRequest{Category: CategoryLPQuery, Fields: map[string]string{FieldQuestion: question, FieldRegion: region}}
}

func ESGAudit(context string) TaskRequest {
	return TaskRequest{Category: CategoryESGAudit, Fields: map[string]string{FieldContext: context}}
}

func GovernanceSim(context string) TaskRequest {
	return TaskRequest{Category: CategoryGovernanceSim, Fields: map[string]string{FieldContext: context}}
}

// Build renders the prompt for req. It fails only when the category is unknown or a schema
// field is absent from req.Fields.
func Build(req TaskRequest) (Prompt, error) {
	schema, ok := Lookup(req.Category)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, req.Category)
	}

	pairs := make([]string, 0, 2*len(schema.Fields))
	for _, f := range schema.Fields {
		v, ok := req.Fields[f.Name]
		if !ok {
			return "", fmt.Errorf("%w: %s requires %q", ErrMissingField, req.Category, f.Name)
		}
		pairs = append(pairs, "{"+f.Name+"}", v)
	}

	// strings.Replacer substitutes in a single pass, so placeholders inside inputs stay literal.
	return Prompt(strings.NewReplacer(pairs...).Replace(schema.template)), nil
}

func mustBuild(req TaskRequest) Prompt {
	p, err := Build(req)
	if err != nil {
		// constructors always populate every schema field
		panic(err)
	}
	return p
}

// BuildLegalDraftPrompt asks for a docType document for institutional fund use grounded in context.
func BuildLegalDraftPrompt(docType, context string) Prompt {
	return mustBuild(LegalDraft(docType, context))
}

func BuildRegOpsPrompt(context string) Prompt {
	return mustBuild(RegOps(context))
}

// BuildLPQueryPrompt embeds the LP's question and region and asks for a formal, region-appropriate reply.
func BuildLPQueryPrompt(question, region string) Prompt {
	return mustBuild(LPQuery(question, region))
}

// BuildESGAuditPrompt always names the EU, US and APAC blocs regardless of context.
func BuildESGAuditPrompt(context string) Prompt {
	return mustBuild(ESGAudit(context))
}

func BuildGovernanceSimPrompt(context string) Prompt {
	return mustBuild(GovernanceSim(context))
}
