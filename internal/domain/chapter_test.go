package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChapter(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		millis  int64
		wantErr bool
	}{
		{"integer", "12", 12000, false},
		{"half chapter", "10.5", 10500, false},
		{"quarter chapter", "10.75", 10750, false},
		{"three fractional digits", "3.125", 3125, false},
		{"zero", "0", 0, false},
		{"surrounding whitespace", " 42 ", 42000, false},
		{"trailing zero equals plain", "10.50", 10500, false},
		{"empty", "", 0, true},
		{"negative", "-1", 0, true},
		{"letters", "ch12", 0, true},
		{"bare dot", ".", 0, true},
		{"missing whole part", ".5", 0, true},
		{"too many fractional digits", "1.0001", 0, true},
		{"two dots", "1.2.3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseChapter(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrBadChapter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.millis, c.Millis())
		})
	}
}

func TestChapter_Ordering(t *testing.T) {
	ten, err := ParseChapter("10")
	require.NoError(t, err)
	tenHalf, err := ParseChapter("10.5")
	require.NoError(t, err)
	tenHalfPadded, err := ParseChapter("10.50")
	require.NoError(t, err)

	assert.True(t, ten.Less(tenHalf))
	assert.False(t, tenHalf.Less(ten))
	assert.True(t, tenHalf.Equal(tenHalfPadded))
	assert.False(t, tenHalf.Less(tenHalfPadded))
}

func TestChapter_String(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"12", "12"},
		{"10.5", "10.5"},
		{"10.50", "10.5"},
		{"3.125", "3.125"},
		{"0", "0"},
	}

	for _, tt := range tests {
		c, err := ParseChapter(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, c.String())
	}
}

func TestChapterFromMillis_ClampsNegative(t *testing.T) {
	assert.True(t, ChapterFromMillis(-5).IsZero())
}
