package types_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dmruntime/dmruntime/pkg/mocks"
	"github.com/dmruntime/dmruntime/pkg/types"
)

func TestDescriptorEntryLookups(t *testing.T) {
	entry := &types.DescriptorEntry{
		Kind: types.EntryKindComponent,
		Lines: []types.KeyValue{
			{Key: "impl", Value: "A", Line: 2},
			{Key: "provide", Value: "S1", Line: 3},
			{Key: "property.lang", Value: "en", Line: 4},
			{Key: "provide", Value: "S2", Line: 5},
			{Key: "impl", Value: "B", Line: 6},
			{Key: "property.", Value: "ignored", Line: 7},
		},
	}

	impl, ok := entry.Get("impl")
	assert.True(t, ok)
	assert.Equal(t, "B", impl, "the last value wins")

	_, ok = entry.Get("name")
	assert.False(t, ok)

	assert.Equal(t, []string{"S1", "S2"}, entry.All("provide"))
	assert.Nil(t, entry.All("dependency"))

	assert.Equal(t, map[string]string{"lang": "en"}, entry.WithPrefix("property."))
	assert.Empty(t, entry.WithPrefix("missing."))
}

func TestIsFragment(t *testing.T) {
	assert.False(t, types.IsFragment(nil))
	assert.False(t, types.IsFragment(mocks.NewMockModule("host")))
	assert.True(t, types.IsFragment(mocks.NewMockFragment("frag", "host")))
}

func TestDescriptorLocationString(t *testing.T) {
	mod := mocks.NewMockModule("greeter")

	tests := []struct {
		name string
		loc  types.DescriptorLocation
		want string
	}{
		{"url wins", types.DescriptorLocation{Module: mod, Path: "a.txt", URL: "file:///m/a.txt"}, "file:///m/a.txt"},
		{"module relative", types.DescriptorLocation{Module: mod, Path: "dm/a.txt"}, "greeter!/dm/a.txt"},
		{"bare path", types.DescriptorLocation{Path: "a.txt"}, "a.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.loc.String())
		})
	}
}

func TestComponentDefinitionDisplayName(t *testing.T) {
	def := &types.ComponentDefinition{Impl: "org.example.Greeter"}
	assert.Equal(t, "org.example.Greeter", def.DisplayName())

	def.Name = "greeter"
	assert.Equal(t, "greeter", def.DisplayName())
}

func TestComponentDefinitionEncoding(t *testing.T) {
	def := &types.ComponentDefinition{
		Kind:     types.EntryKindAspect,
		Impl:     "org.example.LoggingAspect",
		Service:  "org.example.Greeting",
		Ranking:  10,
		Provides: []string{"org.example.Greeting"},
		Source:   types.Source{Module: "greeter", Resource: "dm/a.txt", Line: 3},
	}

	data, err := json.Marshal(def)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "Aspect", fields["kind"])
	assert.Equal(t, float64(10), fields["ranking"])
	assert.NotContains(t, fields, "adapteeService")
	assert.NotContains(t, fields, "properties")

	out, err := yaml.Marshal(def)
	require.NoError(t, err)
	assert.Contains(t, string(out), "service: org.example.Greeting")
	assert.Contains(t, string(out), "resource: dm/a.txt")
	assert.NotContains(t, string(out), "stateMask")
}

func TestKnownEntryKinds(t *testing.T) {
	kinds := types.KnownEntryKinds()
	assert.Len(t, kinds, 6)
	assert.Equal(t, types.EntryKindComponent, kinds[0])

	kinds[0] = "Mutated"
	assert.Equal(t, types.EntryKindComponent, types.KnownEntryKinds()[0])
}
