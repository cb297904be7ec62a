package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Template Wording Tests
// ==========================

func TestBuilders_ExactWording(t *testing.T) {
	tests := []struct {
		name     string
		got      Prompt
		expected string
	}{
		{
			name:     "legal draft",
			got:      BuildLegalDraftPrompt("NDA", "Series B fund, Delaware"),
			expected: "Generate a NDA suitable for institutional fund use based on: Series B fund, Delaware",
		},
		{
			name:     "regops",
			got:      BuildRegOpsPrompt("AIFMD marketing into DE and FR"),
			expected: "Analyze this regulatory context and recommend jurisdictional compliance strategy: AIFMD marketing into DE and FR",
		},
		{
			name:     "lp query",
			got:      BuildLPQueryPrompt("What is the lock-up period?", "EU"),
			expected: "An LP from EU asks: What is the lock-up period?\nRespond clearly, accurately, and formally in the LP's region-appropriate tone.",
		},
		{
			name:     "esg audit",
			got:      BuildESGAuditPrompt("SFDR Article 8 fund"),
			expected: "Review this ESG strategy and give a compliance readiness score (EU, US, APAC): SFDR Article 8 fund",
		},
		{
			name:     "governance sim",
			got:      BuildGovernanceSimPrompt("3 of 5 directors approve; MFN clause"),
			expected: "Simulate a fund governance decision based on board votes and the following side letter conditions: 3 of 5 directors approve; MFN clause",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got.String())
		})
	}
}

// ==========================
// Containment Properties
// ==========================

func TestBuilders_ContainInputsVerbatim(t *testing.T) {
	inputs := []string{
		"",
		" ",
		"Side Letter",
		"multi\nline\ncontext",
		"unicode: 株式会社 € ¥",
		"{context} {region} placeholders",
		strings.Repeat("long context ", 5000),
	}

	for _, a := range inputs {
		for _, b := range inputs {
			builds := map[string]Prompt{
				"legal-draft":    BuildLegalDraftPrompt(a, b),
				"regops":         BuildRegOpsPrompt(a),
				"lp-query":       BuildLPQueryPrompt(a, b),
				"esg-audit":      BuildESGAuditPrompt(a),
				"governance-sim": BuildGovernanceSimPrompt(a),
			}
			for name, p := range builds {
				assert.NotEmpty(t, p, name)
				assert.Contains(t, string(p), a, name)
			}
			assert.Contains(t, string(builds["legal-draft"]), b)
			assert.Contains(t, string(builds["lp-query"]), b)
		}
	}
}

func TestBuildLPQueryPrompt_QuestionAndRegion(t *testing.T) {
	p := BuildLPQueryPrompt("What is the lock-up period?", "EU")

	assert.Contains(t, string(p), "What is the lock-up period?")
	assert.Contains(t, string(p), "EU")
}

func TestBuildESGAuditPrompt_AlwaysNamesBlocs(t *testing.T) {
	for _, ctx := range []string{"", "carbon neutral by 2030", "EU only"} {
		p := string(BuildESGAuditPrompt(ctx))
		for _, token := range []string{"EU", "US", "APAC"} {
			assert.Contains(t, p, token)
		}
	}
}

func TestBuild_PlaceholdersInInputsAreNotExpanded(t *testing.T) {
	p := BuildLPQueryPrompt("{region}", "LATAM")

	assert.Equal(t, "An LP from LATAM asks: {region}\nRespond clearly, accurately, and formally in the LP's region-appropriate tone.", string(p))
}

// ==========================
// Generic Builder
// ==========================

func TestBuild_Errors(t *testing.T) {
	_, err := Build(TaskRequest{Category: "tax-memo", Fields: map[string]string{"context": "x"}})
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = Build(TaskRequest{Category: CategoryLPQuery, Fields: map[string]string{FieldQuestion: "q"}})
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), FieldRegion)
}

func TestBuild_EmptyValuesAreNotErrors(t *testing.T) {
	for _, c := range Categories() {
		schema, ok := Lookup(c)
		require.True(t, ok)

		fields := map[string]string{}
		for _, name := range schema.FieldNames() {
			fields[name] = ""
		}

		p, err := Build(TaskRequest{Category: c, Fields: fields})
		require.NoError(t, err, c)
		assert.NotEmpty(t, p, c)
	}
}

func TestBuild_MatchesNamedBuilders(t *testing.T) {
	p, err := Build(LegalDraft("LPA", "Fund III"))
	require.NoError(t, err)
	assert.Equal(t, BuildLegalDraftPrompt("LPA", "Fund III"), p)

	p, err = Build(ESGAudit("x"))
	require.NoError(t, err)
	assert.Equal(t, BuildESGAuditPrompt("x"), p)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" esg-audit ")
	require.NoError(t, err)
	assert.Equal(t, CategoryESGAudit, c)

	_, err = ParseCategory("ESG")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestCategories_StableOrder(t *testing.T) {
	assert.Equal(t, []Category{
		CategoryLegalDraft,
		CategoryRegOps,
		CategoryLPQuery,
		CategoryESGAudit,
		CategoryGovernanceSim,
	}, Categories())

	schema, _ := Lookup(CategoryLegalDraft)
	assert.Equal(t, []string{FieldDocType, FieldContext}, schema.FieldNames())
	assert.Equal(t, DocumentTypes, schema.Fields[0].Hints)
}
