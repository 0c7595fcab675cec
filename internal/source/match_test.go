package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medinaflav/manga-tracker/internal/domain"
)

func TestBestMatch(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		candidates []Candidate
		wantTitle  string
		wantOK     bool
	}{
		{
			name:  "exact match preferred over substring",
			query: "One Piece",
			candidates: []Candidate{
				{Title: "One Piece: Stampede", Chapter: mustCh("999")},
				{Title: "one piece", Chapter: mustCh("1")},
			},
			wantTitle: "one piece",
			wantOK:    true,
		},
		{
			name:  "case-insensitive exact",
			query: "BERSERK",
			candidates: []Candidate{
				{Title: "Berserk", Chapter: mustCh("364")},
			},
			wantTitle: "Berserk",
			wantOK:    true,
		},
		{
			name:  "substring in either direction",
			query: "Frieren: Beyond Journey's End",
			candidates: []Candidate{
				{Title: "Frieren", Chapter: mustCh("120")},
			},
			wantTitle: "Frieren",
			wantOK:    true,
		},
		{
			name:  "ambiguity resolved by highest chapter",
			query: "Naruto",
			candidates: []Candidate{
				{Title: "Naruto Gaiden", Chapter: mustCh("10")},
				{Title: "Boruto: Naruto Next Generations", Chapter: mustCh("85")},
			},
			wantTitle: "Boruto: Naruto Next Generations",
			wantOK:    true,
		},
		{
			name:  "no overlap at all",
			query: "Vagabond",
			candidates: []Candidate{
				{Title: "Vinland Saga", Chapter: mustCh("200")},
			},
			wantOK: false,
		},
		{
			name:       "empty candidate list",
			query:      "Vagabond",
			candidates: nil,
			wantOK:     false,
		},
		{
			name:  "blank query never matches",
			query: "   ",
			candidates: []Candidate{
				{Title: "Anything", Chapter: mustCh("1")},
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BestMatch(tt.query, tt.candidates)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantTitle, got.Title)
			}
		})
	}
}

func TestBestMatch_ExactTieTakesHighestChapter(t *testing.T) {
	// Two entries with the same folded title (catalog duplicates).
	got, ok := BestMatch("Dorohedoro", []Candidate{
		{Title: "Dorohedoro", Chapter: mustCh("100")},
		{Title: "DOROHEDORO", Chapter: mustCh("167")},
	})
	require.True(t, ok)
	assert.Equal(t, mustCh("167"), got.Chapter)
}

func mustCh(s string) domain.Chapter {
	c, err := domain.ParseChapter(s)
	if err != nil {
		panic(err)
	}
	return c
}
