package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		expected string
	}{
		{"entities", "Tom &amp; Jerry&#039;s &gt;&gt;game", "Tom & Jerry's >>game"},
		{"line breaks", "one<br>two<br/>three<br><br>four", "one\ntwo\nthree\n\nfour"},
		{"quote link", `<a href="#p123" class="quotelink">&gt;&gt;123</a> nice`, ">>123 nice"},
		{"span", `<span class="quote">&gt;implying</span><br>text`, ">implying\ntext"},
		{"word break", "really<wbr>long", "reallylong"},
		{"backslash", `\:\: Foo \:\:`, "::Foo::"},
		{"delimiter runs", "::: Foo :::: Bar", "::Foo::Bar"},
		{"space around breaks", "a <br> b\t<br>c", "a\nb\nc"},
		{"single colon kept", "time: 3pm", "time: 3pm"},
		{"raw newline", "a \n b", "a\nb"},
		{"broken markup", "::Foo::<b>body", "::Foo::body"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, Normalize(c.in))
		})
	}
}

func TestSplitRecap(t *testing.T) {
	t.Run("title and body", func(t *testing.T) {
		title, rename, body, ok := SplitRecap("::Foo::\nprogress")
		require.True(t, ok)
		assert.Equal(t, "Foo", title)
		assert.Equal(t, "", rename)
		assert.Equal(t, "\nprogress", body)
	})
	t.Run("rename", func(t *testing.T) {
		title, rename, body, ok := SplitRecap("::OldName::NewName::body")
		require.True(t, ok)
		assert.Equal(t, "OldName", title)
		assert.Equal(t, "NewName", rename)
		assert.Equal(t, "body", body)
	})
	t.Run("rename needs a body", func(t *testing.T) {
		title, rename, body, ok := SplitRecap("::Foo::Bar::")
		require.True(t, ok)
		assert.Equal(t, "Foo", title)
		assert.Equal(t, "", rename)
		assert.Equal(t, "Bar::", body)
	})
	t.Run("rename stops at a line break", func(t *testing.T) {
		title, rename, body, ok := SplitRecap("::Foo::first line\nsecond::line")
		require.True(t, ok)
		assert.Equal(t, "Foo", title)
		assert.Equal(t, "", rename)
		assert.Equal(t, "first line\nsecond::line", body)
	})
	t.Run("shortest rename", func(t *testing.T) {
		_, rename, body, ok := SplitRecap("::A::B::C::D")
		require.True(t, ok)
		assert.Equal(t, "B", rename)
		assert.Equal(t, "C::D", body)
	})
	t.Run("text before the title", func(t *testing.T) {
		title, _, body, ok := SplitRecap("wow\n::Foo::bar")
		require.True(t, ok)
		assert.Equal(t, "Foo", title)
		assert.Equal(t, "bar", body)
	})
	t.Run("title cannot span lines", func(t *testing.T) {
		title, _, body, ok := SplitRecap("::not\na title::\n::Real::body")
		require.True(t, ok)
		assert.Equal(t, "Real", title)
		assert.Equal(t, "body", body)
	})
	t.Run("no match", func(t *testing.T) {
		for _, s := range []string{
			"",
			"just chatting",
			"::Foo",
			"::Foo::",
			"::::",
			"::\n::body",
		} {
			_, _, _, ok := SplitRecap(s)
			assert.False(t, ok, "%q should not match", s)
		}
	})
}

func TestExtractFields(t *testing.T) {
	t.Run("fields and progress", func(t *testing.T) {
		fields, rest := ExtractFields("\ndev::Bar\ntools::Baz\nprogress text")
		assert.Equal(t, map[string]string{"dev": "Bar", "tools": "Baz"}, fields)
		assert.Equal(t, "\nprogress text", rest)
	})
	t.Run("case-insensitive keys", func(t *testing.T) {
		fields, _ := ExtractFields("\nDev::Bar\nWEB::https://example.com")
		assert.Equal(t, map[string]string{"dev": "Bar", "web": "https://example.com"}, fields)
	})
	t.Run("multiple breaks before a field", func(t *testing.T) {
		fields, rest := ExtractFields("\n\n\ntools::Godot\n\nmade a boss")
		assert.Equal(t, map[string]string{"tools": "Godot"}, fields)
		assert.Equal(t, "\n\nmade a boss", rest)
	})
	t.Run("field must start a line", func(t *testing.T) {
		fields, rest := ExtractFields("I am the dev::lead")
		assert.Empty(t, fields)
		assert.Equal(t, "I am the dev::lead", rest)
	})
	t.Run("later fields win", func(t *testing.T) {
		fields, _ := ExtractFields("\ndev::A\ndev::B")
		assert.Equal(t, map[string]string{"dev": "B"}, fields)
	})
	t.Run("invalid utf-8 is skipped", func(t *testing.T) {
		fields, rest := ExtractFields("\ndev::\xff\xfe\ntools::Raylib\nprogress")
		assert.Equal(t, map[string]string{"tools": "Raylib"}, fields)
		assert.Equal(t, "\nprogress", rest)
	})
	t.Run("empty value", func(t *testing.T) {
		fields, rest := ExtractFields("\ndev::\nprogress")
		assert.Empty(t, fields)
		assert.Equal(t, "\nprogress", rest)
	})
	t.Run("blank template", func(t *testing.T) {
		fields, rest := ExtractFields("\ndev::\ntools:: Godot\nweb::\nprogress")
		assert.Equal(t, map[string]string{"tools": "Godot"}, fields)
		assert.Equal(t, "\nprogress", rest)
	})
}

func TestExtractProgress(t *testing.T) {
	assert.Equal(t, "progress text", ExtractProgress("\n\nprogress text"))
	assert.Equal(t, "line one\nline two", ExtractProgress("\nline one\nline two\n"))
	assert.Equal(t, "", ExtractProgress("\n\n"))

	t.Run("unknown keys are dropped", func(t *testing.T) {
		assert.Equal(t, "progress", ExtractProgress("\ntwitter::me\nprogress"))
		assert.Equal(t, "progress", ExtractProgress("\ntwitter::me\n\nitch::me.itch.io\n\nprogress"))
	})
	t.Run("delimiters inside the text are kept", func(t *testing.T) {
		assert.Equal(t, "got std::vector working", ExtractProgress("\ngot std::vector working"))
		assert.Equal(t, "twitter::me", ExtractProgress("\ntwitter::me"), "a lone line is progress")
		assert.Equal(t, "first\nnote::later", ExtractProgress("\nfirst\nnote::later"))
	})
}

func TestParseRecap(t *testing.T) {
	t.Run("full recap", func(t *testing.T) {
		r := ParseRecap(":: Foo ::\ndev::Bar<br>tools::Baz<br>progress text", 1587240724, "1587240724142.png")
		require.NotNil(t, r)
		assert.Equal(t, "Foo", r.Title)
		assert.Equal(t, "", r.Rename)
		assert.Equal(t, map[string]string{"dev": "Bar", "tools": "Baz"}, r.Fields)
		assert.Equal(t, "progress text", r.Progress)
		assert.EqualValues(t, 1587240724, r.Time)
		assert.Equal(t, "1587240724142.png", r.Filename)
	})
	t.Run("board markup", func(t *testing.T) {
		r := ParseRecap(
			`<a href="#p1" class="quotelink">&gt;&gt;1</a><br>:: Super Crate Box :: <br>dev :: vlambeer<br>web:: https://example.com<br><br>added a &quot;boss&quot;`,
			1587240724, "")
		require.NotNil(t, r)
		assert.Equal(t, "Super Crate Box", r.Title)
		assert.Equal(t, map[string]string{"dev": "vlambeer", "web": "https://example.com"}, r.Fields)
		assert.Equal(t, `added a "boss"`, r.Progress)
	})
	t.Run("rename", func(t *testing.T) {
		r := ParseRecap(":: OldName :: NewName :: body", 1, "")
		require.NotNil(t, r)
		assert.Equal(t, "OldName", r.Title)
		assert.Equal(t, "NewName", r.Rename)
		assert.Equal(t, "body", r.Progress)
	})
	t.Run("no delimiters", func(t *testing.T) {
		assert.Nil(t, ParseRecap("anyone else making a roguelike?", 1, ""))
	})
	t.Run("blank template fields", func(t *testing.T) {
		r := ParseRecap(":: Game ::<br>dev::<br>progress", 1, "")
		require.NotNil(t, r)
		assert.Empty(t, r.Fields)
		assert.Equal(t, "progress", r.Progress)
	})
	t.Run("unknown field", func(t *testing.T) {
		r := ParseRecap(":: Game ::<br>twitter:: me<br>progress", 1, "")
		require.NotNil(t, r)
		assert.Empty(t, r.Fields)
		assert.Equal(t, "progress", r.Progress)
	})
	t.Run("fields only", func(t *testing.T) {
		r := ParseRecap("::Foo::<br>dev::Bar", 1, "")
		require.NotNil(t, r)
		assert.Equal(t, "", r.Progress)
	})
}

func TestEffectiveTitle(t *testing.T) {
	r := &Recap{Title: "OldName", Rename: "NewName"}
	assert.Equal(t, "NewName", r.EffectiveTitle(func(string) bool { return false }))
	assert.Equal(t, "OldName", r.EffectiveTitle(func(title string) bool { return title == "NewName" }))

	plain := &Recap{Title: "Foo"}
	assert.Equal(t, "Foo", plain.EffectiveTitle(func(string) bool { return true }))
}
