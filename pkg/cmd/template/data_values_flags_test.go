// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"os"
	"path/filepath"
	"testing"

	"carvel.dev/jtt/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataValuesPrecedence(t *testing.T) {
	dir := t.TempDir()
	valuesPath := filepath.Join(dir, "values.toml")
	require.NoError(t, os.WriteFile(valuesPath, []byte("[db]\nhost = \"file\"\nport = 1\n"), 0600))
	certPath := filepath.Join(dir, "cert.pem")
	require.NoError(t, os.WriteFile(certPath, []byte("CERT"), 0600))

	flags := DataValuesFlags{
		Files:          []string{valuesPath},
		EnvFromStrings: []string{"DVS"},
		EnvFromYAML:    []string{"DVY"},
		KVsFromStrings: []string{"db.host=kv"},
		KVsFromFiles:   []string{"tls.cert=" + certPath},
		envFunc: func() []string {
			return []string{"DVS_db__host=env", "DVS_db__user=admin", "DVY_db__port=5432", "OTHER=x"}
		},
	}

	vals, err := flags.Values()
	require.NoError(t, err)
	assert.Equal(t, "{'db': {'host': 'kv', 'port': 5432, 'user': 'admin'}, 'tls': {'cert': 'CERT'}}",
		value.FromMap(vals).Repr())
}

func TestDataValuesErrors(t *testing.T) {
	cases := []struct {
		desc   string
		flags  DataValuesFlags
		errMsg string
	}{
		{"missing equals", DataValuesFlags{KVsFromStrings: []string{"key"}}, "Expected format key=value"},
		{"bad yaml", DataValuesFlags{KVsFromYAML: []string{"key=[1"}}, "Deserializing value for key 'key'"},
		{"conflict", DataValuesFlags{KVsFromStrings: []string{"a=1", "a.b=2"}}, "Expected key 'a.b' to not conflict with other data values at piece 'a'"},
		{"missing file", DataValuesFlags{KVsFromFiles: []string{"a=/does/not/exist"}}, "Reading file '/does/not/exist'"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := tc.flags.Values()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
