package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elonfeng/paperdigest/internal/store"
)

func TestMatches(t *testing.T) {
	item := &store.Item{
		Title:    "Attention Is All You Need: the Transformer Architecture",
		Abstract: "We propose a network based solely on attention mechanisms.",
		Keywords: []string{"cs.CL", "cs.LG"},
	}

	tests := []struct {
		name    string
		profile store.Profile
		want    bool
	}{
		{
			name:    "category intersection",
			profile: store.Profile{Categories: []string{"cs.CL"}},
			want:    true,
		},
		{
			name:    "category case insensitive",
			profile: store.Profile{Categories: []string{"CS.cl"}},
			want:    true,
		},
		{
			name:    "keyword substring in title, case insensitive",
			profile: store.Profile{Keywords: []string{"transformer"}},
			want:    true,
		},
		{
			name:    "keyword substring in abstract",
			profile: store.Profile{Keywords: []string{"attention mechanisms"}},
			want:    true,
		},
		{
			name:    "keyword with surrounding whitespace",
			profile: store.Profile{Keywords: []string{"  Transformer  "}},
			want:    true,
		},
		{
			name:    "no overlap",
			profile: store.Profile{Categories: []string{"cs.RO"}, Keywords: []string{"diffusion"}},
			want:    false,
		},
		{
			name:    "empty profile matches nothing",
			profile: store.Profile{},
			want:    false,
		},
		{
			name:    "blank keyword matches nothing",
			profile: store.Profile{Keywords: []string{"   "}},
			want:    false,
		},
		{
			name:    "keyword substring in item tags",
			profile: store.Profile{Keywords: []string{"cs.cl"}},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(item, &tt.profile))
			// The predicate is pure; a second call agrees with the first.
			assert.Equal(t, tt.want, Matches(item, &tt.profile))
		})
	}
}

func TestMatchesDoesNotCrossFieldBoundaries(t *testing.T) {
	profile := store.Profile{Keywords: []string{"graph attention"}}

	// Title ends with one word, abstract starts with the other.
	split := &store.Item{Title: "Learning on a graph", Abstract: "attention is applied per node"}
	assert.False(t, Matches(split, &profile))

	// Same for adjacent keyword tags.
	tags := &store.Item{Keywords: []string{"graph", "attention"}}
	assert.False(t, Matches(tags, &profile))

	whole := &store.Item{Abstract: "We propose a graph attention network."}
	assert.True(t, Matches(whole, &profile))
}

func TestAnyProfile(t *testing.T) {
	item := &store.Item{Title: "Scaling Laws for Neural Language Models"}
	profiles := []store.Profile{
		{Name: "robotics", Keywords: []string{"manipulation"}},
		{Name: "nlp", Keywords: []string{"language model"}},
	}

	assert.True(t, AnyProfile(item, profiles))
	assert.False(t, AnyProfile(item, profiles[:1]))
	assert.False(t, AnyProfile(item, nil))
}

func TestFilterByNames(t *testing.T) {
	profiles := []store.Profile{
		{Name: "machine_learning"},
		{Name: "nlp"},
		{Name: "computer_vision"},
	}

	got := FilterByNames(profiles, []string{"computer_vision", "nlp"})
	assert.Equal(t, []string{"nlp", "computer_vision"}, []string{got[0].Name, got[1].Name})

	assert.Empty(t, FilterByNames(profiles, []string{"unknown"}))
	assert.Empty(t, FilterByNames(profiles, nil))
}
