// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package filetests

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimTrailingMultilineWhitespace(t *testing.T) {
	for _, testcase := range []struct {
		give, want string
	}{
		{
			give: `we want sql`,
			want: `we want sql`,
		},
		{
			give: `we want sql `,
			want: `we want sql`,
		},
		{
			give: `we want sql	`,
			want: `we want sql`,
		},
		{
			give: `we want sql
`,
			want: `we want sql`,
		},
		{
			give: `
we 
want	
sql  `,
			want: `
we
want
sql`,
		},
		{
			give: `
we

  want	
	sql

`,
			want: `
we

  want
	sql`,
		},
	} {
		assert.Equal(t, testcase.want, TrimTrailingMultilineWhitespace(testcase.give))
	}
}

func TestSplitTemplates(t *testing.T) {
	templates, order := SplitTemplates("{% include 'a.sql' %}\n--- a.sql\nA\n--- b/c.sql\n{{ x }}\n")
	assert.Equal(t, []string{MainTemplateName, "a.sql", "b/c.sql"}, order)
	assert.Equal(t, map[string]string{
		MainTemplateName: "{% include 'a.sql' %}",
		"a.sql":          "A",
		"b/c.sql":        "{{ x }}",
	}, templates)

	templates, order = SplitTemplates("plain")
	assert.Equal(t, []string{MainTemplateName}, order)
	assert.Equal(t, "plain", templates[MainTemplateName])
}
