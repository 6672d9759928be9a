package prompt

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/meera-os/meera/pkg/model"
)

//go:embed templates/system.md
var systemPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

// Builder assembles the dynamic system prompt from identity, memories and
// knowledge entries. It is a pure renderer: no network, no store access.
type Builder struct{}

// New creates a prompt builder
func New() *Builder {
	return &Builder{}
}

// Build renders the base prompt from identity and memory sections, then
// appends a hive knowledge block when entries are present. Every supplied
// entry's title and content appear verbatim in the output.
func (b *Builder) Build(identity *model.UserIdentity, personal, shared []*model.Memory, knowledge []*model.Knowledge, query string) (string, error) {
	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, map[string]any{
		"Identity": identity,
		"Personal": personal,
		"Shared":   shared,
		"Query":    query,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute system prompt template")
	}

	if len(knowledge) == 0 {
		return buf.String(), nil
	}

	lines := make([]string, 0, len(knowledge))
	for _, entry := range knowledge {
		title := entry.Title
		if title == "" {
			title = "Entry"
		}
		lines = append(lines, "- "+title+": "+entry.Content)
	}

	block := "\n[Hive Knowledge]\n" +
		"The following internal knowledge entries are available to you. " +
		"They are trusted internal data for this user. " +
		"If the user's question is answered by these entries, prefer them " +
		"over generic knowledge.\n" +
		strings.Join(lines, "\n") +
		"\n"

	return buf.String() + block, nil
}
