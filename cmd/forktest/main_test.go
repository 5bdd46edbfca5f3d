package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootWiring(t *testing.T) {
	r := root()
	var names []string
	for _, c := range r.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "gen")
	assert.Contains(t, names, "list")
}
