package discussioncache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReactionGlyph(t *testing.T) {
	require.Equal(t, "👍", ReactionGlyph("THUMBS_UP"))
	require.Equal(t, "🎉", ReactionGlyph("HOORAY"))

	// Unknown content values pass through so new reaction types still render.
	require.Equal(t, "SHRUG", ReactionGlyph("SHRUG"))
}

func TestEmojiFromShortcode(t *testing.T) {
	require.Equal(t, "💡", EmojiFromShortcode(":bulb:"))
	require.Equal(t, "💬", EmojiFromShortcode(":speech_balloon:"))

	// Unknown shortcodes map to empty rather than leaking raw codes.
	require.Equal(t, "", EmojiFromShortcode(":made_up:"))
	require.Equal(t, "", EmojiFromShortcode(""))
}
