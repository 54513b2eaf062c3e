package chunker_test

import (
	"errors"
	"strings"
	"testing"

	"docsmith/internal/chunker"
	"docsmith/internal/chunker/languages"
	"docsmith/internal/scanner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(path, content string) scanner.FileRecord {
	return scanner.FileRecord{
		Path:      path,
		Language:  scanner.LanguageOf(path),
		Content:   content,
		LineCount: scanner.CountLines(content),
	}
}

func chunkPython(t *testing.T, content string) []chunker.Chunk {
	t.Helper()
	c := chunker.New(languages.Default())
	chunks, err := c.Chunk(record("mod.py", content))
	require.NoError(t, err)
	return chunks
}

func ids(chunks []chunker.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.ID
	}
	return out
}

func byID(t *testing.T, chunks []chunker.Chunk, id string) chunker.Chunk {
	t.Helper()
	for _, c := range chunks {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("chunk %q not found in %v", id, ids(chunks))
	return chunker.Chunk{}
}

func TestChunk_ClassMethodFunction(t *testing.T) {
	src := `class Foo:
    def bar(self):
        x = 1
        return x
    y = 2

def baz():
    z = 3
    return z
`
	chunks := chunkPython(t, src)
	require.Equal(t, []string{"Foo", "Foo.bar", "baz"}, ids(chunks))

	foo := chunks[0]
	assert.Equal(t, chunker.KindClass, foo.Kind)
	assert.Equal(t, 1, foo.StartLine)
	assert.Equal(t, 5, foo.EndLine)
	assert.Equal(t, "", foo.Parent)

	bar := chunks[1]
	assert.Equal(t, chunker.KindMethod, bar.Kind)
	assert.Equal(t, 2, bar.StartLine)
	assert.Equal(t, 4, bar.EndLine)
	assert.Equal(t, "Foo", bar.Parent)
	assert.Equal(t, "    def bar(self):\n        x = 1\n        return x", bar.Code)

	baz := chunks[2]
	assert.Equal(t, chunker.KindFunction, baz.Kind)
	assert.Equal(t, 7, baz.StartLine)
	assert.Equal(t, 9, baz.EndLine)
	assert.Equal(t, "mod.py", baz.FilePath)
	assert.Equal(t, "python", baz.Language)

	for _, c := range chunks {
		assert.LessOrEqual(t, c.StartLine, c.EndLine)
		assert.Equal(t, c.StartLine, c.HeaderEndLine)
		assert.False(t, c.Inline)
	}
}

func TestChunk_SiblingClassesRestoreScope(t *testing.T) {
	src := `class A:
    def a(self):
        pass

class B:
    def b(self):
        pass

def c():
    pass
`
	chunks := chunkPython(t, src)
	assert.Equal(t, []string{"A", "A.a", "B", "B.b", "c"}, ids(chunks))
	assert.Equal(t, chunker.KindFunction, byID(t, chunks, "c").Kind)
	assert.Equal(t, "B", byID(t, chunks, "B.b").Parent)
}

func TestChunk_NestedFunctionsAreAtomic(t *testing.T) {
	src := `def outer():
    def inner():
        return 1

    class Local:
        pass
    return inner()
`
	chunks := chunkPython(t, src)
	require.Equal(t, []string{"outer"}, ids(chunks))
	assert.Contains(t, chunks[0].Code, "def inner():")
	assert.Equal(t, 7, chunks[0].EndLine)
}

func TestChunk_NestedClassesUseDottedPaths(t *testing.T) {
	src := `class Outer:
    class Inner:
        def deep(self):
            pass

    def top(self):
        pass
`
	chunks := chunkPython(t, src)
	require.Equal(t, []string{"Outer", "Outer.Inner", "Outer.Inner.deep", "Outer.top"}, ids(chunks))

	inner := byID(t, chunks, "Outer.Inner")
	assert.Equal(t, chunker.KindClass, inner.Kind)
	assert.Equal(t, "Outer", inner.Parent)

	deep := byID(t, chunks, "Outer.Inner.deep")
	assert.Equal(t, chunker.KindMethod, deep.Kind)
	assert.Equal(t, "Outer.Inner", deep.Parent)
}

func TestChunk_ImportsAccumulate(t *testing.T) {
	src := `import os
import numpy as np

def a():
    import json
    return 1

from collections import OrderedDict
from . import sibling
from .pkg.mod import thing

class B:
    import re

    def m(self):
        pass
`
	chunks := chunkPython(t, src)
	require.Equal(t, []string{"a", "B", "B.m"}, ids(chunks))

	assert.Equal(t, []string{"numpy", "os"}, byID(t, chunks, "a").Imports)
	assert.Equal(t, []string{"collections", "numpy", "os", "pkg.mod"}, byID(t, chunks, "B").Imports)
	assert.Equal(t, []string{"collections", "numpy", "os", "pkg.mod", "re"}, byID(t, chunks, "B.m").Imports)
}

func TestChunk_DecoratedAndAsync(t *testing.T) {
	src := `import functools


@functools.lru_cache
def cached(x):
    return x


class Svc:
    @staticmethod
    async def fetch():
        return 1
`
	chunks := chunkPython(t, src)
	require.Equal(t, []string{"cached", "Svc", "Svc.fetch"}, ids(chunks))

	cached := byID(t, chunks, "cached")
	assert.Equal(t, 5, cached.StartLine, "chunk starts at the def line, not the decorator")
	assert.Equal(t, 6, cached.EndLine)

	fetch := byID(t, chunks, "Svc.fetch")
	assert.Equal(t, chunker.KindMethod, fetch.Kind)
	assert.Equal(t, 11, fetch.StartLine)
	assert.True(t, strings.HasPrefix(fetch.Code, "    async def fetch():"))
}

func TestChunk_FunctionsInsideConditionals(t *testing.T) {
	src := `import sys

if sys.version_info >= (3, 8):
    def compat():
        return True
else:
    def compat():
        return False
`
	chunks := chunkPython(t, src)
	require.Len(t, chunks, 2)
	assert.Equal(t, 4, chunks[0].StartLine)
	assert.Equal(t, 7, chunks[1].StartLine)
	assert.Equal(t, []string{"sys"}, chunks[0].Imports)
}

func TestChunk_MultiLineHeaderAndInlineBody(t *testing.T) {
	src := `def long(
    a,
    b,
):
    return a + b


def short(): return 1
`
	chunks := chunkPython(t, src)
	require.Equal(t, []string{"long", "short"}, ids(chunks))

	long := chunks[0]
	assert.Equal(t, 1, long.StartLine)
	assert.Equal(t, 4, long.HeaderEndLine)
	assert.Equal(t, 5, long.EndLine)
	assert.False(t, long.Inline)

	short := chunks[1]
	assert.Equal(t, 8, short.StartLine)
	assert.Equal(t, 8, short.HeaderEndLine)
	assert.True(t, short.Inline)
}

func TestChunk_CRLF(t *testing.T) {
	chunks := chunkPython(t, "def f():\r\n    return 1\r\n")
	require.Len(t, chunks, 1)
	assert.Equal(t, "def f():\n    return 1", chunks[0].Code)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 2, chunks[0].EndLine)
}

func TestChunk_SyntaxError(t *testing.T) {
	c := chunker.New(languages.Default())
	chunks, err := c.Chunk(record("broken.py", "def ok():\n    pass\n\ndef broken(:\n    pass\n"))
	assert.Nil(t, chunks)

	var synErr *chunker.SyntaxError
	require.True(t, errors.As(err, &synErr))
	assert.Equal(t, "broken.py", synErr.Path)
	assert.GreaterOrEqual(t, synErr.Line, 1)
}

func TestChunk_UnsupportedLanguage(t *testing.T) {
	c := chunker.New(languages.Default())
	_, err := c.Chunk(record("main.go", "package main\n"))
	assert.ErrorIs(t, err, chunker.ErrUnsupported)
}

func TestChunkForIndex_Go(t *testing.T) {
	src := `package p

type Server struct{}

func (s *Server) Start() error { return nil }

func helper() {}
`
	c := chunker.New(languages.Default())
	chunks, err := c.ChunkForIndex(record("server.go", src))
	require.NoError(t, err)
	require.Equal(t, []string{"Server", "Start", "helper"}, ids(chunks))

	assert.Equal(t, chunker.KindType, chunks[0].Kind)
	assert.Equal(t, chunker.KindMethod, chunks[1].Kind)
	assert.Equal(t, chunker.KindFunction, chunks[2].Kind)
	assert.Equal(t, 7, chunks[2].StartLine)
	assert.Equal(t, "func helper() {}", chunks[2].Code)
}

func TestRegistry(t *testing.T) {
	r := languages.Default()
	assert.Equal(t, "python", r.LanguageName("a/b.py"))
	assert.Equal(t, "typescript", r.LanguageName("a/b.tsx"))
	assert.Equal(t, "unknown", r.LanguageName("README.md"))
	assert.Contains(t, r.Extensions(), ".java")
}
