package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGameFields(t *testing.T) {
	var g Game

	assert.True(t, g.SetField("DEV", "Bar"))
	assert.True(t, g.SetField("tools", "Godot"))
	assert.False(t, g.SetField("progress", "nope"))

	dev, ok := g.Field("dev")
	assert.True(t, ok)
	assert.Equal(t, "Bar", dev)

	_, ok = g.Field("web")
	assert.False(t, ok)

	assert.True(t, g.SetField("dev", "Baz"))
	assert.Equal(t, "Baz", *g.Dev, "later values overwrite")
}
