package discussioncache

// reactionGlyphs maps GraphQL reaction content values to display glyphs.
var reactionGlyphs = map[string]string{
	"THUMBS_UP":   "👍",
	"THUMBS_DOWN": "👎",
	"LAUGH":       "😄",
	"HOORAY":      "🎉",
	"CONFUSED":    "😕",
	"HEART":       "❤️",
	"ROCKET":      "🚀",
	"EYES":        "👀",
}

// ReactionGlyph returns the display glyph for a reaction content value.
// Unknown values are returned unchanged so new upstream reaction types
// still render as something.
func ReactionGlyph(content string) string {
	if g, ok := reactionGlyphs[content]; ok {
		return g
	}
	return content
}

// emojiShortcodes maps the category emoji shortcodes GitHub uses to their
// glyphs. The GraphQL path returns glyphs directly; the REST path returns
// shortcodes, which the fallback adapter translates through this table.
var emojiShortcodes = map[string]string{
	":bulb:":          "💡",
	":speech_balloon:": "💬",
	":mega:":          "📣",
	":raised_hands:":  "🙌",
	":pray:":          "🙏",
	":question:":      "❓",
	":ballot_box:":    "🗳️",
	":hash:":          "#️⃣",
	":books:":         "📚",
	":dart:":          "🎯",
	":rocket:":        "🚀",
	":tada:":          "🎉",
	":bug:":           "🐛",
	":gear:":          "⚙️",
	":eyes:":          "👀",
	":heart:":         "❤️",
	":fire:":          "🔥",
	":sparkles:":      "✨",
	":memo:":          "📝",
	":bell:":          "🔔",
}

// EmojiFromShortcode translates a :shortcode: to its glyph. Unknown
// shortcodes map to the empty string rather than leaking raw codes into
// rendered pages.
func EmojiFromShortcode(code string) string {
	return emojiShortcodes[code]
}
