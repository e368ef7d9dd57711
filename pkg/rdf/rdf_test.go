package rdf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestURIToID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "pairtree_uri",
			uri:      "http://localhost:8984/rest/prod/6t/05/3f/96/6t053f96k",
			expected: "6t053f96k",
		},
		{
			name:     "trailing_component_only",
			uri:      "6t053f96k",
			expected: "6t053f96k",
		},
		{
			name:     "empty",
			uri:      "",
			expected: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, URIToID(test.uri))
		})
	}
}

func TestURIsToIDs(t *testing.T) {
	ids := URIsToIDs([]string{
		"http://localhost:8984/rest/prod/j6/73/13/76/j67313767",
		"http://localhost:8984/rest/prod/6t/05/3f/96/6t053f96k",
	})
	require.Equal(t, []string{"j67313767", "6t053f96k"}, ids)
}

func TestGroupFragment(t *testing.T) {
	tests := []struct {
		name     string
		agent    string
		expected string
	}{
		{
			name:     "public_group",
			agent:    "http://projecthydra.org/ns/auth/group#public",
			expected: "public",
		},
		{
			name:     "registered_group",
			agent:    "http://projecthydra.org/ns/auth/group#registered",
			expected: "registered",
		},
		{
			name:     "no_fragment",
			agent:    "http://example.org/agents/staff",
			expected: "staff",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, GroupFragment(test.agent))
		})
	}
}

func TestIsGroupAgent(t *testing.T) {
	require.True(t, IsGroupAgent("http://projecthydra.org/ns/auth/group#public"))
	require.False(t, IsGroupAgent("mailto:someone@example.org"))
}
