// Package prompt renders the built-in prompt templates. Placeholders use
// {{name}} syntax so user overrides in the config file stay readable.
package prompt

import (
	"fmt"
	"strings"
)

const editSystem = `You are a code editing assistant working inside a text editor.
You are given a file with numbered lines and an instruction. Respond ONLY with edits in this exact format, nothing else:

<ct_lines_to_update>
START-END
<ct_updated_code>
replacement lines
</ct_updated_code>
</ct_lines_to_update>

START-END is the 1-based inclusive line range of the ORIGINAL file to replace. Use the original numbering for every edit, even when an earlier edit changes the line count. Emit one block per contiguous change and do not repeat unchanged lines.`

const editUser = `File type: {{filetype}}

{{content}}

The user selected lines {{start_line}} to {{end_line}}.

Instruction: {{instruction}}`

const appendSystem = `You are a code completion assistant working inside a text editor.
Continue the given file from where it ends. Respond ONLY with one block in this exact format:

<ct_updated_code>
new lines
</ct_updated_code>

Do not repeat existing lines and do not add commentary outside the block.`

const appendUser = `File type: {{filetype}}

{{content}}

Instruction: {{instruction}}`

const querySystem = `You write tree-sitter queries. Given a language and a description, respond with ONLY the query s-expression, no prose and no code fences. Use standard capture names like @function.name or @match.`

const queryUser = `Language: {{lang}}

Write a tree-sitter query that matches: {{request}}`

// Templates holds the six prompt templates, one system/user pair per feature.
type Templates struct {
	EditSystem   string
	EditUser     string
	AppendSystem string
	AppendUser   string
	QuerySystem  string
	QueryUser    string
}

func Defaults() Templates {
	return Templates{
		EditSystem:   editSystem,
		EditUser:     editUser,
		AppendSystem: appendSystem,
		AppendUser:   appendUser,
		QuerySystem:  querySystem,
		QueryUser:    queryUser,
	}
}

// Merge overlays non-empty override fields onto t.
func (t Templates) Merge(o Templates) Templates {
	if o.EditSystem != "" {
		t.EditSystem = o.EditSystem
	}
	if o.EditUser != "" {
		t.EditUser = o.EditUser
	}
	if o.AppendSystem != "" {
		t.AppendSystem = o.AppendSystem
	}
	if o.AppendUser != "" {
		t.AppendUser = o.AppendUser
	}
	if o.QuerySystem != "" {
		t.QuerySystem = o.QuerySystem
	}
	if o.QueryUser != "" {
		t.QueryUser = o.QueryUser
	}
	return t
}

// Interpolate replaces every {{name}} placeholder with its value. Unknown
// placeholders are left intact so template typos stay visible.
func Interpolate(tpl string, vars map[string]string) string {
	replacements := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		replacements = append(replacements, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(replacements...).Replace(tpl)
}

// NumberLines renders lines with 1-based numbers starting at first, in the
// "N: content" form the edit template tells the model to reference.
func NumberLines(lines []string, first int) string {
	var sb strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&sb, "%d: %s\n", first+i, line)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// Edit renders the system and user prompts for an edit request over the
// whole buffer, with the selection called out by line range.
func (t Templates) Edit(filetype, instruction string, lines []string, selStart, selEnd int) (string, string) {
	user := Interpolate(t.EditUser, map[string]string{
		"filetype":    filetype,
		"content":     NumberLines(lines, 1),
		"start_line":  fmt.Sprintf("%d", selStart),
		"end_line":    fmt.Sprintf("%d", selEnd),
		"instruction": instruction,
	})
	return t.EditSystem, user
}

// Append renders the prompts for continuing the buffer below the cursor.
func (t Templates) Append(filetype, instruction string, before []string) (string, string) {
	user := Interpolate(t.AppendUser, map[string]string{
		"filetype":    filetype,
		"content":     strings.Join(before, "\n"),
		"instruction": instruction,
	})
	return t.AppendSystem, user
}

// Query renders the prompts for generating a tree-sitter query from a
// natural-language description.
func (t Templates) Query(lang, request string) (string, string) {
	user := Interpolate(t.QueryUser, map[string]string{
		"lang":    lang,
		"request": request,
	})
	return t.QuerySystem, user
}
